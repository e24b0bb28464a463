package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"vsub/internal/fileutil"
	"vsub/internal/services"
)

// SampleRate is the rate Extract resamples to. Speech engines expect 16 kHz mono.
const SampleRate = 16000

// CommandRunner executes an external tool. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Extractor decodes a media container to a PCM WAV file with ffmpeg.
type Extractor struct {
	FFmpeg string
	run    CommandRunner
}

// NewExtractor returns an Extractor using the given ffmpeg binary.
func NewExtractor(ffmpegBinary string) *Extractor {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Extractor{FFmpeg: ffmpegBinary, run: defaultCommandRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner CommandRunner) {
	e.run = runner
}

// Extract writes the first audio stream of source to dest as 16 kHz mono
// 16-bit WAV. dest only appears once ffmpeg has finished successfully.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrInput, "split", "extract audio", source, err)
	}
	return fileutil.WriteAtomic(dest, 0o644, func(tmp *os.File) error {
		args := buildExtractArgs(source, tmp.Name())
		if err := e.run(ctx, e.FFmpeg, args...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return services.Wrap(services.ErrInput, "split", "extract audio", source, err)
		}
		return nil
	})
}

func buildExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprint(SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
