package stagecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vsub/internal/audio"
	"vsub/internal/fileutil"
	"vsub/internal/services"
)

const manifestVersion = 1

// Manifest records the split stage's output. It is written after every
// segment file, so its presence means the whole segment set is on disk.
type Manifest struct {
	Version   int               `json:"version"`
	Source    string            `json:"source"`
	TotalMS   int64             `json:"total_ms"`
	CreatedAt time.Time         `json:"created_at"`
	Segments  []manifestSegment `json:"segments"`
}

type manifestSegment struct {
	Index   int    `json:"index"`
	File    string `json:"file"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// SaveSegments publishes the manifest for segments. Segment files must
// already exist in SegmentsDir.
func (w *Workspace) SaveSegments(source string, totalMS int64, segments []audio.Segment) error {
	m := Manifest{
		Version:   manifestVersion,
		Source:    source,
		TotalMS:   totalMS,
		CreatedAt: time.Now().UTC(),
		Segments:  make([]manifestSegment, 0, len(segments)),
	}
	for _, seg := range segments {
		m.Segments = append(m.Segments, manifestSegment{
			Index:   seg.Index,
			File:    filepath.Base(seg.Path),
			StartMS: seg.StartMS,
			EndMS:   seg.EndMS,
		})
	}
	if err := validateManifest(m); err != nil {
		return services.Wrap(services.ErrFormat, "split", "save manifest", w.ManifestPath(), err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteFileAtomic(w.ManifestPath(), append(data, '\n'), 0o644)
}

// LoadSegments reads the manifest and verifies every listed segment file is
// present. A missing manifest is services.ErrNotFound; an unparseable or
// inconsistent one, or a missing segment file, is services.ErrFormat.
func (w *Workspace) LoadSegments() ([]audio.Segment, Manifest, error) {
	m, err := w.readManifest()
	if err != nil {
		return nil, Manifest{}, err
	}
	segments := make([]audio.Segment, 0, len(m.Segments))
	for _, ms := range m.Segments {
		path := filepath.Join(w.SegmentsDir(), ms.File)
		ok, err := fileutil.Exists(path)
		if err != nil {
			return nil, Manifest{}, fmt.Errorf("stat segment %d: %w", ms.Index, err)
		}
		if !ok {
			return nil, Manifest{}, services.Wrap(services.ErrFormat, "split", "load segments", fmt.Sprintf("segment file %s listed in manifest is missing", ms.File), nil)
		}
		segments = append(segments, audio.Segment{Index: ms.Index, Path: path, StartMS: ms.StartMS, EndMS: ms.EndMS})
	}
	return segments, m, nil
}

func (w *Workspace) readManifest() (Manifest, error) {
	path := w.ManifestPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, services.Wrap(services.ErrNotFound, "split", "load manifest", path, nil)
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, services.Wrap(services.ErrFormat, "split", "parse manifest", path, err)
	}
	if err := validateManifest(m); err != nil {
		return Manifest{}, services.Wrap(services.ErrFormat, "split", "validate manifest", path, err)
	}
	return m, nil
}

func validateManifest(m Manifest) error {
	if m.Version != manifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if len(m.Segments) == 0 {
		return errors.New("manifest lists no segments")
	}
	var prevEnd int64
	for i, seg := range m.Segments {
		if seg.Index != i {
			return fmt.Errorf("segment %d has index %d", i, seg.Index)
		}
		if seg.StartMS >= seg.EndMS {
			return fmt.Errorf("segment %d has empty span [%d,%d)", i, seg.StartMS, seg.EndMS)
		}
		if seg.StartMS < prevEnd {
			return fmt.Errorf("segment %d starts at %d before previous end %d", i, seg.StartMS, prevEnd)
		}
		if seg.File == "" || seg.File != filepath.Base(seg.File) {
			return fmt.Errorf("segment %d has invalid file name %q", i, seg.File)
		}
		named, ok := audio.ParseSegmentName(seg.File)
		if !ok || named.Index != seg.Index || named.StartMS != seg.StartMS || named.EndMS != seg.EndMS {
			return fmt.Errorf("segment %d file name %q does not match [%d,%d)", i, seg.File, seg.StartMS, seg.EndMS)
		}
		prevEnd = seg.EndMS
	}
	return nil
}
