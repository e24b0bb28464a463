package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"vsub/internal/services"
)

// DefaultFrameMS is the analysis window used for level measurement.
const DefaultFrameMS = 10

// SilenceOptions controls pause detection.
type SilenceOptions struct {
	// ThresholdDBFS: frames whose RMS level is below this count as silent.
	ThresholdDBFS float64
	// MinSilenceMS: shorter quiet runs (consonant gaps, breaths) are ignored.
	MinSilenceMS int64
	// FrameMS is the analysis window; zero means DefaultFrameMS.
	FrameMS int64
}

func (o SilenceOptions) frameMS() int64 {
	if o.FrameMS > 0 {
		return o.FrameMS
	}
	return DefaultFrameMS
}

// DetectSilence finds runs of frames below the threshold lasting at least
// MinSilenceMS. levels are per-frame dBFS values; totalMS clips the final
// interval when the last frame is partial.
func DetectSilence(levels []float64, totalMS int64, opts SilenceOptions) []Interval {
	frame := opts.frameMS()
	var pauses []Interval
	runStart := -1
	flush := func(endFrame int) {
		if runStart < 0 {
			return
		}
		start := int64(runStart) * frame
		end := min(int64(endFrame)*frame, totalMS)
		if end-start >= opts.MinSilenceMS && end > start {
			pauses = append(pauses, Interval{StartMS: start, EndMS: end})
		}
		runStart = -1
	}
	for i, level := range levels {
		if level < opts.ThresholdDBFS {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(levels))
	return pauses
}

// FrameLevels measures the RMS level of consecutive frames of s in dBFS.
// Digital silence is reported as -Inf. It returns the levels and the total
// number of samples read.
func FrameLevels(ctx context.Context, s beep.Streamer, format beep.Format, frameMS int64) ([]float64, int, error) {
	if frameMS <= 0 {
		frameMS = DefaultFrameMS
	}
	frameLen := format.SampleRate.N(msToDuration(frameMS))
	if frameLen <= 0 {
		return nil, 0, fmt.Errorf("sample rate %d too low for %dms frames", format.SampleRate, frameMS)
	}

	buf := make([][2]float64, 4096)
	var levels []float64
	var sumSquares float64
	inFrame := 0
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		n, ok := s.Stream(buf)
		for _, sample := range buf[:n] {
			mono := (sample[0] + sample[1]) / 2
			sumSquares += mono * mono
			inFrame++
			if inFrame == frameLen {
				levels = append(levels, toDBFS(sumSquares, inFrame))
				sumSquares, inFrame = 0, 0
			}
		}
		total += n
		if !ok {
			break
		}
	}
	if inFrame > 0 {
		levels = append(levels, toDBFS(sumSquares, inFrame))
	}
	if err := s.Err(); err != nil {
		return nil, total, err
	}
	return levels, total, nil
}

func toDBFS(sumSquares float64, n int) float64 {
	rms := math.Sqrt(sumSquares / float64(n))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// DetectPauses decodes a WAV file and returns its silence intervals along with
// the total duration in milliseconds. Unreadable or empty audio is
// services.ErrInput.
func DetectPauses(ctx context.Context, wavPath string, opts SilenceOptions) ([]Interval, int64, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, services.Wrap(services.ErrInput, "split", "open audio", wavPath, err)
		}
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	stream, format, err := wav.Decode(f)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrInput, "split", "decode audio", wavPath, err)
	}
	defer stream.Close()

	levels, samples, err := FrameLevels(ctx, stream, format, opts.frameMS())
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err
		}
		return nil, 0, services.Wrap(services.ErrInput, "split", "read audio", wavPath, err)
	}
	if samples == 0 {
		return nil, 0, services.Wrap(services.ErrInput, "split", "read audio", wavPath+" contains no samples", nil)
	}
	totalMS := format.SampleRate.D(samples).Milliseconds()
	return DetectSilence(levels, totalMS, opts), totalMS, nil
}
