package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"vsub/internal/audio"
	"vsub/internal/services"
	"vsub/internal/transcript"
)

func writeSegment(t *testing.T) audio.Segment {
	t.Helper()
	path := filepath.Join(t.TempDir(), audio.SegmentName(1, 5600, 12000))
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	return audio.Segment{Index: 1, Path: path, StartMS: 5600, EndMS: 12000}
}

func TestTranscribeVerboseJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("response_format") != "verbose_json" || r.FormValue("model") != DefaultModel || r.FormValue("language") != "de" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "RIFFdata" || header.Filename != "segment_0001_0000005600_0000012000.wav" {
				t.Errorf("unexpected upload %q %q", header.Filename, data)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "Guten Tag. Wie geht's?",
			"segments": []any{
				map[string]any{"start": 0.0, "end": 1.2, "text": " Guten Tag."},
				map[string]any{"start": 1.5, "end": 2.75, "text": " Wie geht's?"},
			},
		})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/v1", APIKey: "sk-test", Language: "de"})
	chunks, err := client.Transcribe(context.Background(), writeSegment(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []transcript.Chunk{
		{Text: "Guten Tag.", StartMS: 0, EndMS: 1200},
		{Text: "Wie geht's?", StartMS: 1500, EndMS: 2750},
	}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %+v, want %+v", chunks, want)
	}
}

func TestTranscribeTextOnlyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":"  just text  "}`)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k"})
	chunks, err := client.Transcribe(context.Background(), writeSegment(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != (transcript.Chunk{Text: "just text", StartMS: 0, EndMS: 6400}) {
		t.Fatalf("chunks = %+v", chunks)
	}
}

func TestTranscribeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = io.WriteString(w, `{"segments":[{"start":0.5,"end":1,"text":"ok"}]}`)
		}
	}))
	defer server.Close()

	var delays []time.Duration
	client := New(Config{BaseURL: server.URL, APIKey: "k"},
		WithRetryBackoff(time.Second, 10*time.Second),
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)
	chunks, err := client.Transcribe(context.Background(), writeSegment(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(chunks) != 1 || calls.Load() != 3 {
		t.Fatalf("chunks=%+v calls=%d", chunks, calls.Load())
	}
	if !reflect.DeepEqual(delays, []time.Duration{3 * time.Second, 2 * time.Second}) {
		t.Fatalf("delays = %v", delays)
	}
}

func TestTranscribeFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "bad"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Transcribe(context.Background(), writeSegment(t))
	if !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("401 should not be retried, calls = %d", calls.Load())
	}
}

func TestTranscribeGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, APIKey: "k"}, WithRetryMaxAttempts(2), WithSleeper(func(time.Duration) {}))
	if _, err := client.Transcribe(context.Background(), writeSegment(t)); !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := New(Config{})
	if _, err := client.Transcribe(context.Background(), writeSegment(t)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	c := New(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	got := []time.Duration{c.backoffDelay(1), c.backoffDelay(2), c.backoffDelay(3), c.backoffDelay(4)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("backoff = %v, want %v", got, want)
	}
}
