package stagecache

import (
	"vsub/internal/fileutil"
	"vsub/internal/transcript"
)

// SaveSegmentChunks persists one segment's segment-relative transcript so a
// rerun can skip it.
func (w *Workspace) SaveSegmentChunks(index int, chunks []transcript.Chunk) error {
	return transcript.Save(w.SegmentChunksPath(index), chunks)
}

// LoadSegmentChunks returns a previously saved segment transcript. A segment
// that has not been transcribed yields services.ErrNotFound.
func (w *Workspace) LoadSegmentChunks(index int) ([]transcript.Chunk, error) {
	return transcript.Load(w.SegmentChunksPath(index))
}

// CompletedSegments counts how many of the first n segments have a published
// progress file.
func (w *Workspace) CompletedSegments(n int) int {
	done := 0
	for i := 0; i < n; i++ {
		if ok, err := fileutil.Exists(w.SegmentChunksPath(i)); err == nil && ok {
			done++
		}
	}
	return done
}
