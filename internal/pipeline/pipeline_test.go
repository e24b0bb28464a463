package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/engine"
	"vsub/internal/ledger"
	"vsub/internal/logging"
	"vsub/internal/preflight"
	"vsub/internal/services"
	"vsub/internal/stagecache"
	"vsub/internal/testsupport"
	"vsub/internal/transcript"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "tags": {"language": "eng"}}
  ],
  "format": {"duration": "5.000", "size": "4096"}
}`

// twoSegments has one pause at [2000,3000], cut at 2500.
var twoSegments = []testsupport.Span{
	{DurationMS: 2000, Loud: true},
	{DurationMS: 1000},
	{DurationMS: 2000, Loud: true},
}

type harness struct {
	t      *testing.T
	cfg    *config.Config
	source string
	spans  []testsupport.Span
	store  *ledger.Store

	mu       sync.Mutex
	extracts int
	calls    map[int]int
}

func newHarness(t *testing.T, spans []testsupport.Span, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	source := filepath.Join(testsupport.BaseDir(cfg), "videos", "movie.mkv")
	testsupport.WriteFile(t, source, 4096)
	return &harness{
		t:      t,
		cfg:    cfg,
		source: source,
		spans:  spans,
		store:  testsupport.MustOpenLedger(t, cfg),
		calls:  make(map[int]int),
	}
}

func (h *harness) pipeline(eng engine.Engine, extra ...Option) *Pipeline {
	h.t.Helper()
	opts := []Option{
		WithLedger(h.store),
		WithEngine(eng),
		WithPreflight(nil),
		WithProbeRunner(func(context.Context, string, ...string) ([]byte, error) {
			return []byte(probeJSON), nil
		}),
		WithExtractRunner(func(_ context.Context, _ string, args ...string) error {
			h.mu.Lock()
			h.extracts++
			h.mu.Unlock()
			testsupport.WriteWAV(h.t, args[len(args)-1], h.spans...)
			return nil
		}),
	}
	p, err := New(h.cfg, logging.NewNop(), append(opts, extra...)...)
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	return p
}

// labeller transcribes every segment as one chunk naming its index.
func (h *harness) labeller() engine.Engine {
	return engine.Func(func(_ context.Context, seg audio.Segment) ([]transcript.Chunk, error) {
		h.mu.Lock()
		h.calls[seg.Index]++
		h.mu.Unlock()
		return []transcript.Chunk{{Text: fmt.Sprintf("segment %d", seg.Index), StartMS: 100, EndMS: 900}}, nil
	})
}

func (h *harness) totalCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		n += c
	}
	return n
}

func (h *harness) run(p *Pipeline, req Request) (*Result, error) {
	if req.Source == "" {
		req.Source = h.source
	}
	return p.Run(context.Background(), req)
}

func (h *harness) workspace(p *Pipeline) *stagecache.Workspace {
	h.t.Helper()
	id, err := p.Cache().Identity(h.source)
	if err != nil {
		h.t.Fatalf("Identity: %v", err)
	}
	return p.Cache().Workspace(id)
}

func stageResults(res *Result) map[string]string {
	out := make(map[string]string)
	for _, s := range res.Stages {
		out[s.Stage] = s.Result
	}
	return out
}

func TestRunProducesSubtitles(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())

	res, err := h.run(p, Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "1\n00:00:00,100 --> 00:00:00,900\nsegment 0\n\n2\n00:00:02,600 --> 00:00:03,400\nsegment 1\n"
	data, err := os.ReadFile(strings.TrimSuffix(h.source, ".mkv") + ".srt")
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if string(data) != want {
		t.Fatalf("subtitles = %q, want %q", data, want)
	}
	if res.Segments != 2 || res.Chunks != 2 || res.Entries != 2 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if res.Language != "en" {
		t.Fatalf("language = %q, want en from stream tag", res.Language)
	}
	if res.AudioPath != strings.TrimSuffix(h.source, ".mkv")+".wav" {
		t.Fatalf("audio path = %q", res.AudioPath)
	}

	ws := h.workspace(p)
	for _, stage := range stagecache.Stages {
		if ws.Probe(stage) != stagecache.StatePresent {
			t.Fatalf("stage %s not published", stage)
		}
	}
	unmerged, err := transcript.Load(ws.UnmergedPath())
	if err != nil || len(unmerged) != 2 || unmerged[1].StartMS != 2600 {
		t.Fatalf("unmerged transcript not source-absolute: %+v, %v", unmerged, err)
	}

	run, err := h.store.Get(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("ledger Get: %+v, %v", run, err)
	}
	if run.Status != ledger.StatusSucceeded || run.SegmentCount != 2 || run.MergedCount != 2 || len(run.Stages) != 4 {
		t.Fatalf("unexpected ledger run %+v", run)
	}
}

func TestRunReusesPublishedStages(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())

	if _, err := h.run(p, Request{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := h.run(p, Request{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if h.extracts != 1 || h.totalCalls() != 2 {
		t.Fatalf("expensive work repeated: extracts=%d engine calls=%d", h.extracts, h.totalCalls())
	}
	got := stageResults(res)
	for _, stage := range []string{"split", "transcribe", "merge"} {
		if got[stage] != ledger.ResultSkipped {
			t.Fatalf("stage %s = %q, want skipped", stage, got[stage])
		}
	}
	if got["format"] != ledger.ResultRan || res.Entries != 2 {
		t.Fatalf("format should always run: %+v", res)
	}
}

func TestRunRebuildsMergeFromUnmerged(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())
	if _, err := h.run(p, Request{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := os.Remove(h.workspace(p).MergedPath()); err != nil {
		t.Fatal(err)
	}

	res, err := h.run(p, Request{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	got := stageResults(res)
	if got["split"] != ledger.ResultSkipped || got["transcribe"] != ledger.ResultSkipped || got["merge"] != ledger.ResultRan {
		t.Fatalf("unexpected stage results %v", got)
	}
	if h.totalCalls() != 2 {
		t.Fatalf("engine rerun: %d calls", h.totalCalls())
	}
}

func TestRunResumesAfterEngineFailure(t *testing.T) {
	h := newHarness(t, twoSegments)
	failing := engine.Func(func(ctx context.Context, seg audio.Segment) ([]transcript.Chunk, error) {
		if seg.Index == 1 {
			return nil, errors.New("model crashed")
		}
		return h.labeller().Transcribe(ctx, seg)
	})

	_, err := h.run(h.pipeline(failing), Request{})
	if !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
	p := h.pipeline(h.labeller())
	ws := h.workspace(p)
	if ws.CompletedSegments(2) != 1 {
		t.Fatalf("segment 0 progress not persisted")
	}
	if ws.Probe(stagecache.StageTranscribe) != stagecache.StateMissing {
		t.Fatal("failed stage must not be published")
	}

	if _, err := h.run(p, Request{}); err != nil {
		t.Fatalf("resume Run: %v", err)
	}
	if h.calls[0] != 1 || h.calls[1] != 1 {
		t.Fatalf("segment 0 should not be retranscribed: %v", h.calls)
	}

	runs, _ := h.store.Recent(context.Background(), 5)
	if len(runs) != 2 || runs[1].Status != ledger.StatusFailed || runs[0].Status != ledger.StatusSucceeded {
		t.Fatalf("unexpected history %+v", runs)
	}
}

func TestRunParallelWorkersKeepSourceOrder(t *testing.T) {
	spans := []testsupport.Span{
		{DurationMS: 2000, Loud: true}, {DurationMS: 1000},
		{DurationMS: 2000, Loud: true}, {DurationMS: 1000},
		{DurationMS: 2000, Loud: true}, {DurationMS: 1000},
		{DurationMS: 2000, Loud: true},
	}
	h := newHarness(t, spans, testsupport.WithWorkers(4))
	// Later segments finish first.
	slow := engine.Func(func(ctx context.Context, seg audio.Segment) ([]transcript.Chunk, error) {
		time.Sleep(time.Duration(4-seg.Index) * 15 * time.Millisecond)
		return h.labeller().Transcribe(ctx, seg)
	})

	res, err := h.run(h.pipeline(slow), Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Segments != 4 {
		t.Fatalf("segments = %d, want 4", res.Segments)
	}
	merged, err := transcript.Load(h.workspace(h.pipeline(slow)).MergedPath())
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range merged {
		if c.Text != fmt.Sprintf("segment %d", i) {
			t.Fatalf("merged[%d] = %q, order lost: %+v", i, c.Text, merged)
		}
		if i > 0 && c.StartMS < merged[i-1].EndMS {
			t.Fatalf("timing not monotonic: %+v", merged)
		}
	}
}

func TestRunFreshRecomputes(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())
	if _, err := h.run(p, Request{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := h.run(p, Request{Fresh: true}); err != nil {
		t.Fatalf("fresh Run: %v", err)
	}
	if h.extracts != 2 || h.totalCalls() != 4 {
		t.Fatalf("fresh run reused work: extracts=%d calls=%d", h.extracts, h.totalCalls())
	}
}

func TestRunChangedSourceReextractsAudio(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())
	first, err := h.run(p, Request{})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Segments != 2 {
		t.Fatalf("first segments = %d, want 2", first.Segments)
	}

	testsupport.WriteFile(t, h.source, 8192)
	h.spans = []testsupport.Span{{DurationMS: 5000, Loud: true}}

	second, err := h.run(p, Request{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Identity == first.Identity {
		t.Fatalf("identity unchanged after rewriting source: %s", second.Identity)
	}
	if h.extracts != 2 {
		t.Fatalf("extracts = %d, want 2", h.extracts)
	}
	if second.Segments != 1 {
		t.Fatalf("segments = %d, want 1: audio from the old source was reused", second.Segments)
	}
}

func TestRunOverwritesExistingAudioPath(t *testing.T) {
	h := newHarness(t, twoSegments)
	audioPath := filepath.Join(filepath.Dir(h.source), "elsewhere.wav")
	testsupport.WriteWAV(t, audioPath, testsupport.Span{DurationMS: 5000, Loud: true})
	stale := filepath.Join(filepath.Dir(audioPath), ".elsewhere.wav.77.partial")
	testsupport.WriteFile(t, stale, 16)

	res, err := h.run(h.pipeline(h.labeller()), Request{AudioPath: audioPath})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.extracts != 1 || res.Segments != 2 {
		t.Fatalf("extracts = %d, segments = %d; want 1 and 2", h.extracts, res.Segments)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale extraction temp still present: %v", err)
	}
}

func TestRunMalformedArtifactIsFormatError(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())
	if _, err := h.run(p, Request{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	merged := h.workspace(p).MergedPath()
	if err := os.WriteFile(merged, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.run(p, Request{})
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if data, _ := os.ReadFile(merged); string(data) != "{not json" {
		t.Fatal("suspect artifact must be left for the user")
	}
}

func TestRunEncodingError(t *testing.T) {
	h := newHarness(t, twoSegments, testsupport.WithSubtitleEncoding("windows-1252"))
	eng := engine.Func(func(context.Context, audio.Segment) ([]transcript.Chunk, error) {
		return []transcript.Chunk{{Text: "こんにちは", StartMS: 0, EndMS: 500}}, nil
	})
	_, err := h.run(h.pipeline(eng), Request{})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	if _, statErr := os.Stat(strings.TrimSuffix(h.source, ".mkv") + ".srt"); !os.IsNotExist(statErr) {
		t.Fatal("no subtitle file should be written")
	}
}

func TestRunSilentSourceWritesEmptySubtitles(t *testing.T) {
	h := newHarness(t, twoSegments)
	blank := engine.Func(func(context.Context, audio.Segment) ([]transcript.Chunk, error) {
		return []transcript.Chunk{{Text: "  ", StartMS: 0, EndMS: 400}}, nil
	})
	res, err := h.run(h.pipeline(blank), Request{SubtitlePath: filepath.Join(t.TempDir(), "out.srt")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(res.SubtitlePath)
	if err != nil || len(data) != 0 || res.Entries != 0 {
		t.Fatalf("expected empty subtitles, got %q (%v)", data, err)
	}
}

func TestRunInputErrors(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())

	if _, err := h.run(p, Request{Source: filepath.Join(t.TempDir(), "missing.mkv")}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("missing source: %v", err)
	}

	noAudio := h.pipeline(h.labeller(), WithProbeRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"streams":[{"index":0,"codec_type":"video"}],"format":{}}`), nil
	}))
	if _, err := h.run(noAudio, Request{}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("no audio stream: %v", err)
	}
	if h.totalCalls() != 0 {
		t.Fatal("engine must not run for invalid input")
	}
}

func TestRunBusyWorkspace(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller())
	id, err := p.Cache().Identity(h.source)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := p.Cache().Lock(id)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Unlock()

	if _, err := h.run(p, Request{}); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy, got %v", err)
	}
}

func TestRunPreflightFailure(t *testing.T) {
	h := newHarness(t, twoSegments)
	p := h.pipeline(h.labeller(), WithPreflight(func(context.Context, *config.Config, float64) []preflight.Result {
		return []preflight.Result{{Name: "FFmpeg", Detail: "binary \"ffmpeg\" not found"}}
	}))
	_, err := h.run(p, Request{})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
}

func TestRunWavSourceKeepsSource(t *testing.T) {
	h := newHarness(t, twoSegments)
	wavSource := filepath.Join(testsupport.BaseDir(h.cfg), "videos", "talk.wav")
	testsupport.WriteWAV(t, wavSource, twoSegments...)
	before, _ := os.ReadFile(wavSource)

	res, err := h.run(h.pipeline(h.labeller()), Request{Source: wavSource})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Dir(res.AudioPath) != res.Workspace {
		t.Fatalf("extracted audio should move into the workspace, got %s", res.AudioPath)
	}
	after, _ := os.ReadFile(wavSource)
	if string(before) != string(after) {
		t.Fatal("source overwritten")
	}
}

func TestResolveRequest(t *testing.T) {
	r, err := resolveRequest(Request{Source: "/videos/movie.mkv"})
	if err != nil {
		t.Fatalf("resolveRequest: %v", err)
	}
	if r.audioPath != "/videos/movie.wav" || r.subtitlePath != "/videos/movie.srt" {
		t.Fatalf("unexpected defaults %+v", r)
	}

	r, err = resolveRequest(Request{Source: "/videos/movie.mkv", AudioPath: "/tmp/a.wav", SubtitlePath: "/tmp/s.srt"})
	if err != nil || r.audioPath != "/tmp/a.wav" || r.subtitlePath != "/tmp/s.srt" {
		t.Fatalf("explicit paths = %+v, %v", r, err)
	}

	for _, req := range []Request{
		{Source: ""},
		{Source: "/videos/movie.srt"},
		{Source: "/videos/movie.mkv", AudioPath: "/tmp/x", SubtitlePath: "/tmp/x"},
	} {
		if _, err := resolveRequest(req); !errors.Is(err, services.ErrInput) {
			t.Fatalf("resolveRequest(%+v) = %v, want input error", req, err)
		}
	}
}
