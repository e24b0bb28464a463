package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/engine"
	"vsub/internal/language"
	"vsub/internal/ledger"
	"vsub/internal/logging"
	"vsub/internal/media/ffprobe"
	"vsub/internal/preflight"
	"vsub/internal/services"
	"vsub/internal/stagecache"
	"vsub/internal/transcript"
)

// EngineFactory builds the transcription backend once the source language
// is known.
type EngineFactory func(cfg *config.Config, language string) (engine.Engine, error)

// PreflightFunc runs environment checks before any stage work.
type PreflightFunc func(ctx context.Context, cfg *config.Config, audioSeconds float64) []preflight.Result

// Pipeline runs sources through split, transcribe, merge, and format.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     *stagecache.Cache
	ledger    *ledger.Store
	extractor *audio.Extractor
	probe     ffprobe.Runner
	engines   EngineFactory
	preflight PreflightFunc
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLedger records runs in store. A nil store disables history.
func WithLedger(store *ledger.Store) Option {
	return func(p *Pipeline) { p.ledger = store }
}

// WithEngine uses e for every run instead of the configured backend.
func WithEngine(e engine.Engine) Option {
	return func(p *Pipeline) {
		p.engines = func(*config.Config, string) (engine.Engine, error) { return e, nil }
	}
}

// WithEngineFactory overrides backend construction.
func WithEngineFactory(factory EngineFactory) Option {
	return func(p *Pipeline) { p.engines = factory }
}

// WithExtractRunner replaces the ffmpeg invocation (for testing).
func WithExtractRunner(runner audio.CommandRunner) Option {
	return func(p *Pipeline) { p.extractor.WithCommandRunner(runner) }
}

// WithProbeRunner replaces the ffprobe invocation (for testing).
func WithProbeRunner(runner ffprobe.Runner) Option {
	return func(p *Pipeline) { p.probe = runner }
}

// WithPreflight replaces the environment checks. Nil skips them.
func WithPreflight(fn PreflightFunc) Option {
	return func(p *Pipeline) { p.preflight = fn }
}

// New constructs a pipeline for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config is nil", nil)
	}
	p := &Pipeline{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		cache:     stagecache.New(cfg, logger),
		extractor: audio.NewExtractor(cfg.FFmpegBinary()),
		engines:   engine.New,
		preflight: preflight.RunAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Cache exposes the workspace cache used by the pipeline.
func (p *Pipeline) Cache() *stagecache.Cache { return p.cache }

// StageReport is the outcome of one stage in a run.
type StageReport struct {
	Stage    string
	Result   string
	Detail   string
	Duration time.Duration
}

// Result summarizes a completed run.
type Result struct {
	RunID        string
	Identity     string
	Workspace    string
	AudioPath    string
	SubtitlePath string
	Language     string
	Segments     int
	Chunks       int
	Entries      int
	Stages       []StageReport
}

// run carries per-invocation state between stages.
type run struct {
	req       resolved
	ws        *stagecache.Workspace
	runID     string
	logger    *slog.Logger
	probe     ffprobe.Result
	language  string
	segments  []audio.Segment
	unmerged  []transcript.Chunk
	merged    []transcript.Chunk
	result    *Result
}

// Run processes one source. Stages whose artifacts are already published are
// reused; everything else is computed and published atomically.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	r, err := resolveRequest(req)
	if err != nil {
		return nil, err
	}

	info, err := ffprobe.Validate(ctx, p.probe, p.cfg.FFprobeBinary(), r.source)
	if err != nil {
		return nil, err
	}

	if p.preflight != nil {
		if failed := preflight.Failed(p.preflight(ctx, p.cfg, info.DurationSeconds())); len(failed) > 0 {
			parts := make([]string, 0, len(failed))
			for _, f := range failed {
				parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Detail))
			}
			return nil, services.Wrap(services.ErrExternalTool, "preflight", "check environment", strings.Join(parts, "; "), nil)
		}
	}

	identity, err := p.cache.Identity(r.source)
	if err != nil {
		return nil, err
	}
	lock, err := p.cache.Lock(identity)
	if err != nil {
		return nil, err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			p.logger.Warn("failed to release workspace lock",
				logging.String("lock", lock.Path()),
				logging.Error(unlockErr),
				logging.String(logging.FieldEventType, "lock_release_failed"),
			)
		}
	}()

	record, err := p.ledger.StartRun(ctx, r.source, identity, p.cfg.Transcription.Engine)
	if err != nil {
		logging.WarnWithContext(p.logger, "run history unavailable", "ledger_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will not appear in vsub history"),
		)
		record = &ledger.Run{ID: "local"}
	}
	ctx = services.WithRunID(ctx, record.ID)

	st := &run{
		req:      r,
		ws:       p.cache.Workspace(identity),
		runID:    record.ID,
		logger:   logging.WithContext(ctx, p.logger).With(logging.String("source", r.source)),
		probe:    info,
		language: language.Resolve(p.cfg.Transcription.Language, primaryTags(info)),
		result: &Result{
			RunID:        record.ID,
			Identity:     identity,
			SubtitlePath: r.subtitlePath,
		},
	}
	st.result.Workspace = st.ws.Dir
	st.result.Language = st.language

	runErr := p.execute(ctx, st)
	outcome := ledger.Outcome{
		SegmentCount: st.result.Segments,
		MergedCount:  st.result.Entries,
		Err:          runErr,
	}
	if runErr == nil {
		outcome.SubtitlePath = r.subtitlePath
	}
	// The run is finished even if ctx was cancelled.
	if err := p.ledger.FinishRun(context.WithoutCancel(ctx), record.ID, outcome); err != nil {
		st.logger.Warn("failed to record run outcome",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ledger_write_failed"),
		)
	}
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) {
			logging.ErrorWithContext(st.logger, "run failed", "run_failed",
				logging.Error(runErr),
				logging.String(logging.FieldErrorHint, services.Hint(runErr)),
			)
		}
		return nil, runErr
	}
	st.logger.Info("subtitles written",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("subtitle_path", r.subtitlePath),
		logging.Int("segments", st.result.Segments),
		logging.Int("entries", st.result.Entries),
	)
	return st.result, nil
}

func (p *Pipeline) execute(ctx context.Context, st *run) error {
	if st.req.fresh {
		removed, err := p.cache.Clean(st.ws.Identity)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "cache", "clean workspace", st.ws.Dir, err)
		}
		st.logger.Info("workspace discarded",
			logging.Args(logging.DecisionAttrs("fresh_run", "cleaned", fmt.Sprintf("--fresh removed %d entries", removed))...)...)
	}
	if stale, err := st.ws.Prepare(); err != nil {
		return services.Wrap(services.ErrExternalTool, "cache", "prepare workspace", st.ws.Dir, err)
	} else if stale > 0 {
		st.logger.Info("removed partial artifacts from an interrupted run", logging.Int("temp_files", stale))
	}

	// Newest published artifact wins; earlier stages are only needed to
	// rebuild what is missing.
	switch {
	case st.ws.Probe(stagecache.StageMerge) == stagecache.StatePresent:
		p.skip(ctx, st, stagecache.StageSplit, "merged transcript present")
		p.skip(ctx, st, stagecache.StageTranscribe, "merged transcript present")
		if err := p.stage(ctx, st, stagecache.StageMerge, p.loadMerged); err != nil {
			return err
		}
	case st.ws.Probe(stagecache.StageTranscribe) == stagecache.StatePresent:
		p.skip(ctx, st, stagecache.StageSplit, "unmerged transcript present")
		if err := p.stage(ctx, st, stagecache.StageTranscribe, p.loadUnmerged); err != nil {
			return err
		}
		if err := p.stage(ctx, st, stagecache.StageMerge, p.merge); err != nil {
			return err
		}
	default:
		for _, step := range []struct {
			stage stagecache.Stage
			fn    stageFunc
		}{
			{stagecache.StageSplit, p.split},
			{stagecache.StageTranscribe, p.transcribe},
			{stagecache.StageMerge, p.merge},
		} {
			if err := p.stage(ctx, st, step.stage, step.fn); err != nil {
				return err
			}
		}
	}
	return p.stage(ctx, st, stageFormat, p.format)
}

// stageFunc does one stage's work. It reports whether it reused a published
// artifact and a short detail for history.
type stageFunc func(ctx context.Context, st *run) (reused bool, detail string, err error)

const stageFormat stagecache.Stage = "format"

func (p *Pipeline) stage(ctx context.Context, st *run, stage stagecache.Stage, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = services.WithStage(ctx, string(stage))
	logger := logging.WithContext(ctx, p.logger).With(logging.String("source", st.req.source))
	started := time.Now()

	if stage != stageFormat {
		st.ws.Begin(stage)
	}
	reused, detail, err := fn(ctx, st)
	elapsed := time.Since(started)
	if stage != stageFormat {
		if err != nil {
			st.ws.Abort(stage)
		} else {
			st.ws.Publish(stage)
		}
	}

	result := ledger.ResultRan
	switch {
	case err != nil:
		result = ledger.ResultFailed
		detail = err.Error()
	case reused:
		result = ledger.ResultSkipped
	}
	p.report(ctx, st, StageReport{Stage: string(stage), Result: result, Detail: detail, Duration: elapsed})
	if err != nil {
		return err
	}

	if reused {
		logger.Info("stage reused",
			logging.Args(logging.DecisionAttrs("stage_cache", "reused", detail)...)...)
		return nil
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("detail", detail),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (p *Pipeline) skip(ctx context.Context, st *run, stage stagecache.Stage, reason string) {
	ctx = services.WithStage(ctx, string(stage))
	logging.WithContext(ctx, p.logger).Info("stage skipped",
		logging.Args(logging.DecisionAttrs("stage_cache", "skipped", reason)...)...)
	p.report(ctx, st, StageReport{Stage: string(stage), Result: ledger.ResultSkipped, Detail: reason})
}

func (p *Pipeline) report(ctx context.Context, st *run, rep StageReport) {
	st.result.Stages = append(st.result.Stages, rep)
	event := ledger.StageEvent{Stage: rep.Stage, Result: rep.Result, Detail: rep.Detail, Duration: rep.Duration}
	if err := p.ledger.RecordStage(context.WithoutCancel(ctx), st.runID, event); err != nil {
		p.logger.Debug("stage event not recorded", logging.Error(err))
	}
}

func primaryTags(info ffprobe.Result) map[string]string {
	if stream, ok := info.PrimaryAudio(); ok {
		return stream.Tags
	}
	return nil
}
