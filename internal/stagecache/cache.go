package stagecache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"vsub/internal/config"
	"vsub/internal/logging"
	"vsub/internal/services"
)

const lockFileName = ".lock"

// Cache maps source videos to workspaces under a root directory.
type Cache struct {
	root    string
	keyMode string
	logger  *slog.Logger
}

// EntrySummary describes one workspace for listing.
type EntrySummary struct {
	Identity   string    `json:"identity"`
	Directory  string    `json:"directory"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	Segments   int       `json:"segments"`
	Merged     bool      `json:"merged"`
}

// New builds a cache rooted at cfg.Paths.WorkDir.
func New(cfg *config.Config, logger *slog.Logger) *Cache {
	c := &Cache{}
	if cfg != nil {
		c.root = strings.TrimSpace(cfg.Paths.WorkDir)
		c.keyMode = cfg.Cache.Key
	}
	c.SetLogger(logger)
	return c
}

// SetLogger refreshes the cache's logging destination.
func (c *Cache) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "stagecache")
}

// Root returns the directory holding all workspaces.
func (c *Cache) Root() string { return c.root }

// Identity derives the workspace key for source using the configured mode.
func (c *Cache) Identity(source string) (string, error) {
	return Identity(source, c.keyMode)
}

// Workspace returns the artifact layout for identity. Nothing is created on
// disk until Prepare is called.
func (c *Cache) Workspace(identity string) *Workspace {
	return &Workspace{
		Identity:   identity,
		Dir:        filepath.Join(c.root, identity),
		inProgress: make(map[Stage]bool),
	}
}

// Lock is a held workspace lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Unlock releases the lock. Calling it on a nil Lock is a no-op.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Lock takes the exclusive advisory lock for identity without blocking. A lock
// held by another process is reported as services.ErrBusy.
func (c *Cache) Lock(identity string) (*Lock, error) {
	ws := c.Workspace(identity)
	if err := os.MkdirAll(ws.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	path := filepath.Join(ws.Dir, lockFileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "cache", "lock workspace", fmt.Sprintf("%s is in use by another vsub process", identity), nil)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Clean removes every artifact in identity's workspace. The lock file is left
// in place so a caller holding the lock keeps it across the clean.
func (c *Cache) Clean(identity string) (int, error) {
	ws := c.Workspace(identity)
	entries, err := os.ReadDir(ws.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(ws.Dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed++
	}
	c.logger.Info("workspace cleaned",
		logging.String("identity", identity),
		logging.Int("removed_entries", removed),
	)
	return removed, nil
}

// List summarizes every workspace under the root, most recently modified first.
func (c *Cache) List() ([]EntrySummary, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read work dir: %w", err)
	}
	var out []EntrySummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ws := c.Workspace(entry.Name())
		size, modified, err := dirStats(ws.Dir)
		if err != nil {
			return nil, err
		}
		summary := EntrySummary{
			Identity:   ws.Identity,
			Directory:  ws.Dir,
			SizeBytes:  size,
			ModifiedAt: modified,
			Merged:     ws.Probe(StageMerge) == StatePresent,
		}
		if manifest, err := ws.readManifest(); err == nil {
			summary.Segments = len(manifest.Segments)
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out, nil
}

func dirStats(root string) (int64, time.Time, error) {
	var size int64
	var modified time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(modified) {
			modified = info.ModTime()
		}
		if !d.IsDir() {
			size += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("scan %s: %w", root, err)
	}
	return size, modified, nil
}
