package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Span is a stretch of synthetic audio: a 440 Hz tone when Loud, otherwise
// digital silence.
type Span struct {
	DurationMS int
	Loud       bool
}

// WAVSampleRate is the rate WriteWAV renders at.
const WAVSampleRate = 16000

// WriteWAV renders spans back to back as a 16 kHz mono 16-bit WAV file.
func WriteWAV(t testing.TB, path string, spans ...Span) {
	t.Helper()

	format := beep.Format{SampleRate: WAVSampleRate, NumChannels: 1, Precision: 2}
	var samples []float64
	for _, span := range spans {
		n := format.SampleRate.N(msDuration(span.DurationMS))
		for i := 0; i < n; i++ {
			v := 0.0
			if span.Loud {
				v = 0.5 * math.Sin(2*math.Pi*440*float64(len(samples))/WAVSampleRate)
			}
			samples = append(samples, v)
		}
	}

	pos := 0
	streamer := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := 0
		for n < len(buf) && pos < len(samples) {
			buf[n][0] = samples[pos]
			buf[n][1] = samples[pos]
			n++
			pos++
		}
		return n, true
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := wav.Encode(f, streamer, format); err != nil {
		t.Fatalf("encode wav %s: %v", path, err)
	}
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
