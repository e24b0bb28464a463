package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vsub/internal/config"
)

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy reruns op while SQLite reports the database as locked, which
// happens when runs on different inputs write history at the same moment.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open connects to the ledger configured in cfg. It returns a nil store when
// no ledger path is configured.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LedgerPath) == "" {
		return nil, nil
	}
	return OpenPath(cfg.Paths.LedgerPath)
}

// OpenPath initializes or connects to the ledger database at path.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a running row for source and returns it with a fresh ID.
// Earlier rows for the same identity still marked running belong to processes
// that died without finishing; the caller holds the workspace lock, so they
// are marked interrupted.
func (s *Store) StartRun(ctx context.Context, sourcePath, identity, engine string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Identity:   identity,
		Engine:     engine,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if s == nil {
		return run, nil
	}
	now := formatTime(run.StartedAt)
	if _, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ?
         WHERE identity = ? AND status = ?`,
		StatusInterrupted, now, "process exited before the run finished", identity, StatusRunning,
	); err != nil {
		return nil, fmt.Errorf("mark interrupted runs: %w", err)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO runs (id, source_path, identity, engine, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, sourcePath, identity, engine, StatusRunning, now,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordStage appends a stage event to a run.
func (s *Store) RecordStage(ctx context.Context, runID string, event StageEvent) error {
	if s == nil {
		return nil
	}
	created := event.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := s.exec(ctx,
		`INSERT INTO stage_events (run_id, stage, result, detail, duration_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, event.Stage, event.Result, nullableString(event.Detail), event.Duration.Milliseconds(), formatTime(created),
	); err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	return nil
}

// FinishRun closes a run as succeeded, or failed when outcome carries an
// error. A cancelled run is recorded as interrupted.
func (s *Store) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	if s == nil {
		return nil
	}
	status := StatusSucceeded
	var message any
	if outcome.Err != nil {
		status = StatusFailed
		if errors.Is(outcome.Err, context.Canceled) {
			status = StatusInterrupted
		}
		message = outcome.Err.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, segment_count = ?, merged_count = ?, subtitle_path = ?,
             error_message = ?, finished_at = ?
         WHERE id = ?`,
		status, outcome.SegmentCount, outcome.MergedCount, nullableString(outcome.SubtitlePath),
		message, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

const runColumns = "id, source_path, identity, engine, status, segment_count, merged_count, subtitle_path, error_message, started_at, finished_at"

// Recent returns the newest runs, newest first. Stage events are not loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Get loads a run with its stage events. A missing run returns nil, nil.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	if s == nil {
		return nil, nil
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := s.loadStages(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestForIdentity returns the newest run for identity with its stage events,
// or nil when the input has never been processed.
func (s *Store) LatestForIdentity(ctx context.Context, identity string) (*Run, error) {
	if s == nil {
		return nil, nil
	}
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE identity = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, identity,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) loadStages(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, result, detail, duration_ms, created_at FROM stage_events WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return fmt.Errorf("query stage events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ev         StageEvent
			detail     sql.NullString
			durationMS int64
			createdRaw string
		)
		if err := rows.Scan(&ev.Stage, &ev.Result, &detail, &durationMS, &createdRaw); err != nil {
			return fmt.Errorf("scan stage event: %w", err)
		}
		ev.Detail = detail.String
		ev.Duration = time.Duration(durationMS) * time.Millisecond
		if created, err := parseTime(createdRaw); err == nil {
			ev.CreatedAt = created
		}
		run.Stages = append(run.Stages, ev)
	}
	return rows.Err()
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, nil
	}
	res, err := s.exec(ctx, `DELETE FROM runs WHERE started_at < ? AND status != ?`, formatTime(cutoff), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
