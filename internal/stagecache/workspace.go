package stagecache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"vsub/internal/fileutil"
)

// Stage names a resumable pipeline step whose output lives in the workspace.
type Stage string

const (
	StageSplit      Stage = "split"
	StageTranscribe Stage = "transcribe"
	StageMerge      Stage = "merge"
)

// Stages lists the workspace stages in execution order.
var Stages = []Stage{StageSplit, StageTranscribe, StageMerge}

// State is a stage's visibility. Only StatePresent survives across runs.
type State string

const (
	StateMissing    State = "missing"
	StateInProgress State = "in_progress"
	StatePresent    State = "present"
)

const (
	segmentsDirName = "segments"
	chunksDirName   = "chunks"
	manifestName    = "manifest.json"
	unmergedName    = "unmerged_chunks.json"
	mergedName      = "merged_chunks.json"
)

// Workspace is the artifact layout for one input.
type Workspace struct {
	Identity string
	Dir      string

	mu         sync.Mutex
	inProgress map[Stage]bool
}

func (w *Workspace) SegmentsDir() string  { return filepath.Join(w.Dir, segmentsDirName) }
func (w *Workspace) ManifestPath() string { return filepath.Join(w.SegmentsDir(), manifestName) }
func (w *Workspace) ChunksDir() string    { return filepath.Join(w.Dir, chunksDirName) }
func (w *Workspace) UnmergedPath() string { return filepath.Join(w.Dir, unmergedName) }
func (w *Workspace) MergedPath() string   { return filepath.Join(w.Dir, mergedName) }

// SegmentChunksPath is where one segment's segment-relative transcript is kept.
func (w *Workspace) SegmentChunksPath(index int) string {
	return filepath.Join(w.ChunksDir(), fmt.Sprintf("segment_%04d.json", index))
}

// ArtifactPath returns the file whose presence marks stage as done.
func (w *Workspace) ArtifactPath(stage Stage) string {
	switch stage {
	case StageSplit:
		return w.ManifestPath()
	case StageTranscribe:
		return w.UnmergedPath()
	case StageMerge:
		return w.MergedPath()
	default:
		return ""
	}
}

// Prepare creates the workspace directories and clears temp files left by an
// interrupted run. It returns how many stale temps were removed.
func (w *Workspace) Prepare() (int, error) {
	removed := 0
	for _, dir := range []string{w.Dir, w.SegmentsDir(), w.ChunksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return removed, fmt.Errorf("ensure %s: %w", dir, err)
		}
		n, err := fileutil.RemoveStaleTemps(dir)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("clear stale temps in %s: %w", dir, err)
		}
	}
	return removed, nil
}

// Probe reports a stage's state. A published artifact wins over any in-memory
// marker; IN_PROGRESS is only visible to the run that called Begin.
func (w *Workspace) Probe(stage Stage) State {
	path := w.ArtifactPath(stage)
	if path != "" {
		if ok, err := fileutil.Exists(path); err == nil && ok {
			return StatePresent
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inProgress[stage] {
		return StateInProgress
	}
	return StateMissing
}

// Begin marks stage as running in this process.
func (w *Workspace) Begin(stage Stage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inProgress == nil {
		w.inProgress = make(map[Stage]bool)
	}
	w.inProgress[stage] = true
}

// Publish clears the running marker once the stage artifact has been
// written. The artifact itself must already be in place.
func (w *Workspace) Publish(stage Stage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inProgress, stage)
}

// Abort clears the running marker after a failed stage.
func (w *Workspace) Abort(stage Stage) {
	w.Publish(stage)
}

// Invalidate removes the artifacts of stage and every later stage so they are
// recomputed. Per-segment progress goes with the transcribe stage.
func (w *Workspace) Invalidate(from Stage) error {
	started := false
	for _, stage := range Stages {
		if stage == from {
			started = true
		}
		if !started {
			continue
		}
		var paths []string
		switch stage {
		case StageSplit:
			paths = []string{w.SegmentsDir()}
		case StageTranscribe:
			paths = []string{w.UnmergedPath(), w.ChunksDir()}
		case StageMerge:
			paths = []string{w.MergedPath()}
		}
		for _, p := range paths {
			if err := os.RemoveAll(p); err != nil {
				return fmt.Errorf("invalidate %s: %w", stage, err)
			}
		}
	}
	return nil
}
