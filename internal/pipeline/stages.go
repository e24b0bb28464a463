package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vsub/internal/audio"
	"vsub/internal/engine"
	"vsub/internal/fileutil"
	"vsub/internal/logging"
	"vsub/internal/merge"
	"vsub/internal/services"
	"vsub/internal/stagecache"
	"vsub/internal/subtitles"
	"vsub/internal/transcript"
)

const workspaceAudioName = "audio.wav"

func (p *Pipeline) split(ctx context.Context, st *run) (bool, string, error) {
	if st.ws.Probe(stagecache.StageSplit) == stagecache.StatePresent {
		segments, _, err := st.ws.LoadSegments()
		if err != nil {
			return false, "", err
		}
		st.segments = segments
		st.result.Segments = len(segments)
		return true, fmt.Sprintf("%d segments from manifest", len(segments)), nil
	}

	// New segment bounds make any later artifacts meaningless.
	if err := st.ws.Invalidate(stagecache.StageSplit); err != nil {
		return false, "", services.Wrap(services.ErrExternalTool, "split", "invalidate workspace", st.ws.Dir, err)
	}
	if _, err := st.ws.Prepare(); err != nil {
		return false, "", services.Wrap(services.ErrExternalTool, "split", "prepare workspace", st.ws.Dir, err)
	}

	wavPath, err := p.extractAudio(ctx, st)
	if err != nil {
		return false, "", err
	}

	splitter := p.cfg.Splitter
	pauses, totalMS, err := audio.DetectPauses(ctx, wavPath, audio.SilenceOptions{
		ThresholdDBFS: splitter.SilenceThresholdDBFS,
		MinSilenceMS:  int64(splitter.MinSilenceMS),
	})
	if err != nil {
		return false, "", err
	}
	bounds := audio.Plan(pauses, totalMS, audio.SplitOptions{
		MinSegmentMS: int64(splitter.MinSegmentMS),
		MaxSegmentMS: int64(splitter.MaxSegmentMS),
	})
	st.logger.Debug("segment plan",
		logging.Int("pauses", len(pauses)),
		logging.Int("segments", len(bounds)),
		logging.Int64("total_ms", totalMS),
	)

	segments, err := audio.Split(ctx, wavPath, bounds, st.ws.SegmentsDir())
	if err != nil {
		return false, "", err
	}
	if err := st.ws.SaveSegments(st.req.source, totalMS, segments); err != nil {
		return false, "", services.Wrap(services.ErrExternalTool, "split", "write manifest", st.ws.ManifestPath(), err)
	}
	st.segments = segments
	st.result.Segments = len(segments)
	return false, fmt.Sprintf("%d segments from %d pauses", len(segments), len(pauses)), nil
}

// extractAudio produces the 16 kHz WAV used for splitting. It always runs
// when the split stage runs; a file already at the destination may belong to
// an older version of the source.
func (p *Pipeline) extractAudio(ctx context.Context, st *run) (string, error) {
	dest := st.req.audioPath
	if dest == st.req.source {
		dest = filepath.Join(st.ws.Dir, workspaceAudioName)
	}
	st.result.AudioPath = dest

	if n, err := fileutil.RemoveStaleTempsFor(dest); err != nil {
		logging.WarnWithContext(st.logger, "stale audio temps not removed", "audio_temp_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove leftover .partial files next to the audio path"),
		)
	} else if n > 0 {
		st.logger.Info("stale audio temps removed", logging.Int("removed", n))
	}
	started := time.Now()
	if err := p.extractor.Extract(ctx, st.req.source, dest); err != nil {
		return "", err
	}
	st.logger.Info("audio extracted",
		logging.String("audio_path", dest),
		logging.Duration("extract_duration", time.Since(started)),
	)
	return dest, nil
}

func (p *Pipeline) loadUnmerged(_ context.Context, st *run) (bool, string, error) {
	chunks, err := transcript.Load(st.ws.UnmergedPath())
	if err != nil {
		return false, "", err
	}
	st.unmerged = chunks
	st.result.Chunks = len(chunks)
	return true, fmt.Sprintf("%d chunks from unmerged transcript", len(chunks)), nil
}

func (p *Pipeline) loadMerged(_ context.Context, st *run) (bool, string, error) {
	chunks, err := transcript.Load(st.ws.MergedPath())
	if err != nil {
		return false, "", err
	}
	st.merged = chunks
	return true, fmt.Sprintf("%d chunks from merged transcript", len(chunks)), nil
}

// transcribe runs the engine over every segment without saved progress.
// Segment results are collected by index so completion order never reaches
// the merger.
func (p *Pipeline) transcribe(ctx context.Context, st *run) (bool, string, error) {
	segments := st.segments
	results := make([][]transcript.Chunk, len(segments))
	var pending []int
	for i, seg := range segments {
		ok, err := fileutil.Exists(st.ws.SegmentChunksPath(seg.Index))
		if err != nil {
			return false, "", services.Wrap(services.ErrExternalTool, "transcribe", "probe progress", st.ws.SegmentChunksPath(seg.Index), err)
		}
		if !ok {
			pending = append(pending, i)
			continue
		}
		chunks, err := st.ws.LoadSegmentChunks(seg.Index)
		if err != nil {
			return false, "", err
		}
		results[i] = chunks
	}
	resumed := len(segments) - len(pending)
	if resumed > 0 {
		st.logger.Info("resuming transcription",
			logging.Args(logging.DecisionAttrs("segment_progress", "resumed",
				fmt.Sprintf("%d of %d segments already transcribed", resumed, len(segments)))...)...)
	}

	if len(pending) > 0 {
		eng, err := p.engines(p.cfg, st.language)
		if err != nil {
			return false, "", err
		}
		st.logger.Info("transcription engine selected",
			logging.Args(append(logging.DecisionAttrs("engine", eng.Name(), "transcription.engine"),
				logging.String("language", st.language),
				logging.Int("workers", p.workers()),
			)...)...)
		if err := p.runSegments(ctx, st, eng, pending, results); err != nil {
			return false, "", err
		}
	}

	groups := make([][]transcript.Chunk, len(segments))
	for i, seg := range segments {
		shifted := make([]transcript.Chunk, len(results[i]))
		for j, c := range results[i] {
			shifted[j] = c.Shift(seg.StartMS)
		}
		groups[i] = shifted
	}
	unmerged := transcript.Concat(groups...)
	if err := transcript.Save(st.ws.UnmergedPath(), unmerged); err != nil {
		return false, "", saveError("transcribe", st.ws.UnmergedPath(), err)
	}
	st.unmerged = unmerged
	st.result.Chunks = len(unmerged)
	return false, fmt.Sprintf("%d chunks from %d segments (%d resumed)", len(unmerged), len(segments), resumed), nil
}

// saveError keeps a marker the store already attached, such as ErrFormat
// for text it refuses to encode.
func saveError(stage, path string, err error) error {
	if services.Marker(err) != nil {
		return err
	}
	return services.Wrap(services.ErrExternalTool, stage, "save transcript", path, err)
}

func (p *Pipeline) workers() int {
	return max(p.cfg.Transcription.Workers, 1)
}

func (p *Pipeline) runSegments(ctx context.Context, st *run, eng engine.Engine, pending []int, results [][]transcript.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	var (
		mu      sync.Mutex
		done    int
		sampler = logging.NewProgressSampler(10)
	)
	for _, i := range pending {
		seg := st.segments[i]
		g.Go(func() error {
			segCtx := services.WithSegment(gctx, seg.Index)
			chunks, err := eng.Transcribe(segCtx, seg)
			if err != nil {
				if gctx.Err() != nil && errors.Is(err, context.Canceled) {
					return err
				}
				if services.Marker(err) == nil {
					err = services.Wrap(services.ErrEngine, "transcribe", fmt.Sprintf("segment %d", seg.Index), eng.Name(), err)
				}
				return err
			}
			chunks = engine.Normalize(chunks, seg.DurationMS())
			// Progress is durable before the next failure can surface.
			if err := st.ws.SaveSegmentChunks(seg.Index, chunks); err != nil {
				return services.Wrap(services.ErrExternalTool, "transcribe", "save progress", st.ws.SegmentChunksPath(seg.Index), err)
			}
			results[i] = chunks

			mu.Lock()
			done++
			percent := float64(done) / float64(len(pending)) * 100
			if sampler.ShouldLog(percent) {
				logging.WithContext(segCtx, p.logger).Info("transcription progress",
					logging.Float64(logging.FieldProgressPercent, percent),
					logging.Int("completed", done),
					logging.Int("pending", len(pending)),
				)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *Pipeline) merge(_ context.Context, st *run) (bool, string, error) {
	m := merge.Merger{
		ContinuationGapMS: int64(p.cfg.Merge.ContinuationGapMS),
		MaxChars:          p.cfg.Merge.MaxChars,
		MaxDurationMS:     int64(p.cfg.Merge.MaxDurationMS),
	}
	merged := m.Merge(st.unmerged)
	if err := transcript.Save(st.ws.MergedPath(), merged); err != nil {
		return false, "", saveError("merge", st.ws.MergedPath(), err)
	}
	st.merged = merged
	return false, fmt.Sprintf("%d chunks merged into %d", len(st.unmerged), len(merged)), nil
}

// format renders merged chunks to the subtitle file. It always runs; the
// output lives outside the workspace and may have been moved or edited.
func (p *Pipeline) format(_ context.Context, st *run) (bool, string, error) {
	cues := make([]transcript.Chunk, 0, len(st.merged))
	for _, c := range st.merged {
		if !c.Blank() {
			cues = append(cues, c)
		}
	}
	if len(cues) == 0 {
		logging.WarnWithContext(st.logger, "no speech detected", "empty_transcript",
			logging.String(logging.FieldImpact, "subtitle file is empty"),
			logging.String(logging.FieldErrorHint, "check the source audio track and transcription.language"),
		)
	}
	data, err := subtitles.Format(cues, subtitles.Options{
		Encoding:  p.cfg.Subtitles.Encoding,
		LineWidth: p.cfg.Subtitles.LineWidth,
	})
	if err != nil {
		return false, "", err
	}
	if err := subtitles.WriteFile(st.req.subtitlePath, data); err != nil {
		return false, "", services.Wrap(services.ErrExternalTool, "format", "write subtitles", st.req.subtitlePath, err)
	}
	st.result.Entries = len(cues)
	return false, fmt.Sprintf("%d entries", len(cues)), nil
}
