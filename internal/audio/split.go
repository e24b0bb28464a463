package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"vsub/internal/fileutil"
	"vsub/internal/services"
)

// Split writes one WAV file per bound into dir and returns the segments in
// index order. Each file is published atomically, so a crash mid-split leaves
// only complete segment files behind.
func Split(ctx context.Context, wavPath string, bounds []Interval, dir string) ([]Segment, error) {
	if len(bounds) == 0 {
		return nil, services.Wrap(services.ErrInput, "split", "plan segments", "no audio to split", nil)
	}
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "split", "open audio", wavPath, err)
	}
	defer f.Close()

	stream, format, err := wav.Decode(f)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "split", "decode audio", wavPath, err)
	}
	defer stream.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure segment dir: %w", err)
	}

	segments := make([]Segment, 0, len(bounds))
	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg := Segment{
			Index:   i,
			Path:    filepath.Join(dir, SegmentName(i, b.StartMS, b.EndMS)),
			StartMS: b.StartMS,
			EndMS:   b.EndMS,
		}
		if err := writeSegment(stream, format, seg); err != nil {
			return nil, services.Wrap(services.ErrInput, "split", fmt.Sprintf("write segment %d", i), wavPath, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func writeSegment(stream beep.StreamSeeker, format beep.Format, seg Segment) error {
	from := format.SampleRate.N(msToDuration(seg.StartMS))
	to := format.SampleRate.N(msToDuration(seg.EndMS))
	if length := stream.Len(); to > length {
		to = length
	}
	if from >= to {
		return fmt.Errorf("segment %d [%d,%d) lies outside %d samples", seg.Index, seg.StartMS, seg.EndMS, stream.Len())
	}
	if err := stream.Seek(from); err != nil {
		return fmt.Errorf("seek to sample %d: %w", from, err)
	}
	return fileutil.WriteAtomic(seg.Path, 0o644, func(out *os.File) error {
		if err := wav.Encode(out, beep.Take(to-from, stream), format); err != nil {
			return err
		}
		return stream.Err()
	})
}
