package stagecache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/services"
	"vsub/internal/testsupport"
	"vsub/internal/transcript"
)

func TestIdentityModes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "one", "My Movie.mkv")
	b := filepath.Join(dir, "two", "My Movie.mkv")
	testsupport.WriteFile(t, a, 2048)
	testsupport.WriteFile(t, b, 4096)

	nameA, err := Identity(a, config.CacheKeyName)
	if err != nil {
		t.Fatalf("Identity name mode: %v", err)
	}
	if nameA != "my_movie" {
		t.Fatalf("name identity = %q", nameA)
	}

	contentA, err := Identity(a, config.CacheKeyContent)
	if err != nil {
		t.Fatalf("Identity content mode: %v", err)
	}
	contentB, err := Identity(b, config.CacheKeyContent)
	if err != nil {
		t.Fatalf("Identity content mode: %v", err)
	}
	if !strings.HasPrefix(contentA, "my_movie-") || len(contentA) != len("my_movie-")+12 {
		t.Fatalf("unexpected content identity %q", contentA)
	}
	if contentA == contentB {
		t.Fatalf("different files share identity %q", contentA)
	}
	again, _ := Identity(a, config.CacheKeyContent)
	if again != contentA {
		t.Fatalf("identity not stable: %q vs %q", again, contentA)
	}
}

func TestIdentityHashesTail(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "clip.mp4")
	b := filepath.Join(dir, "b", "clip.mp4")
	size := int64(3 << 20)
	testsupport.WriteFile(t, a, size)
	testsupport.WriteFile(t, b, size)

	f, err := os.OpenFile(b, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteAt([]byte{0x01}, size-1); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	ia, _ := Identity(a, config.CacheKeyContent)
	ib, _ := Identity(b, config.CacheKeyContent)
	if ia == ib {
		t.Fatal("tail change did not alter identity")
	}
}

func TestIdentityErrors(t *testing.T) {
	if _, err := Identity(filepath.Join(t.TempDir(), "missing.mkv"), config.CacheKeyContent); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
	if _, err := Identity("x.mkv", "bogus"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestProbeLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := New(cfg, nil)
	ws := cache.Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if got := ws.Probe(StageMerge); got != StateMissing {
		t.Fatalf("initial state = %s", got)
	}
	ws.Begin(StageMerge)
	if got := ws.Probe(StageMerge); got != StateInProgress {
		t.Fatalf("state after Begin = %s", got)
	}
	if err := transcript.Save(ws.MergedPath(), []transcript.Chunk{{Text: "hi", StartMS: 0, EndMS: 10}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ws.Publish(StageMerge)
	if got := ws.Probe(StageMerge); got != StatePresent {
		t.Fatalf("state after Publish = %s", got)
	}

	// A fresh handle on the same workspace sees only published artifacts.
	ws2 := cache.Workspace("movie")
	ws2.Begin(StageTranscribe)
	if got := cache.Workspace("movie").Probe(StageTranscribe); got != StateMissing {
		t.Fatalf("in-progress marker leaked across handles: %s", got)
	}
	if got := ws2.Probe(StageMerge); got != StatePresent {
		t.Fatalf("published stage not visible: %s", got)
	}
}

func TestPrepareRemovesStaleTemps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws := New(cfg, nil).Workspace("movie")
	stale := filepath.Join(ws.SegmentsDir(), ".segment_0000.wav.123.partial")
	testsupport.WriteFile(t, stale, 10)
	scratch := filepath.Join(ws.SegmentsDir(), ".whisperx-0000-99.partial")
	testsupport.WriteFile(t, filepath.Join(scratch, "segment_0000.json"), 10)

	removed, err := ws.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	for _, path := range []string{stale, scratch} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s still present: %v", filepath.Base(path), err)
		}
	}
}

func writeSegments(t *testing.T, ws *Workspace, bounds ...audio.Interval) []audio.Segment {
	t.Helper()
	var segs []audio.Segment
	for i, b := range bounds {
		path := filepath.Join(ws.SegmentsDir(), audio.SegmentName(i, b.StartMS, b.EndMS))
		testsupport.WriteFile(t, path, 16)
		segs = append(segs, audio.Segment{Index: i, Path: path, StartMS: b.StartMS, EndMS: b.EndMS})
	}
	return segs
}

func TestSegmentsManifestRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws := New(cfg, nil).Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if _, _, err := ws.LoadSegments(); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before split, got %v", err)
	}

	segs := writeSegments(t, ws, audio.Interval{StartMS: 0, EndMS: 5600}, audio.Interval{StartMS: 5600, EndMS: 12000})
	if err := ws.SaveSegments("/videos/movie.mkv", 12000, segs); err != nil {
		t.Fatalf("SaveSegments: %v", err)
	}
	if ws.Probe(StageSplit) != StatePresent {
		t.Fatal("split stage should be present")
	}

	loaded, manifest, err := ws.LoadSegments()
	if err != nil {
		t.Fatalf("LoadSegments: %v", err)
	}
	if manifest.TotalMS != 12000 || manifest.Source != "/videos/movie.mkv" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if len(loaded) != 2 || loaded[1] != segs[1] {
		t.Fatalf("loaded = %+v, want %+v", loaded, segs)
	}

	if err := os.Remove(segs[1].Path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, err := ws.LoadSegments(); !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat for missing segment file, got %v", err)
	}
}

func TestLoadSegmentsRejectsMalformedManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws := New(cfg, nil).Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	cases := map[string]string{
		"garbage":      "{not json",
		"no segments":  `{"version":1,"segments":[]}`,
		"overlap":      `{"version":1,"segments":[{"index":0,"file":"a.wav","start_ms":0,"end_ms":500},{"index":1,"file":"b.wav","start_ms":400,"end_ms":900}]}`,
		"bad index":    `{"version":1,"segments":[{"index":3,"file":"a.wav","start_ms":0,"end_ms":500}]}`,
		"path escape":  `{"version":1,"segments":[{"index":0,"file":"../a.wav","start_ms":0,"end_ms":500}]}`,
		"foreign name": `{"version":1,"segments":[{"index":0,"file":"a.wav","start_ms":0,"end_ms":500}]}`,
		"name bounds":  `{"version":1,"segments":[{"index":0,"file":"segment_0000_0000000000_0000000400.wav","start_ms":0,"end_ms":500}]}`,
		"name index":   `{"version":1,"segments":[{"index":0,"file":"segment_0001_0000000000_0000000500.wav","start_ms":0,"end_ms":500}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(ws.ManifestPath(), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, _, err := ws.LoadSegments(); !errors.Is(err, services.ErrFormat) {
				t.Fatalf("expected ErrFormat, got %v", err)
			}
			if _, err := os.Stat(ws.ManifestPath()); err != nil {
				t.Fatalf("malformed manifest must not be discarded: %v", err)
			}
		})
	}
}

func TestSegmentProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws := New(cfg, nil).Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := ws.LoadSegmentChunks(0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	chunks := []transcript.Chunk{{Text: "hello", StartMS: 0, EndMS: 900}}
	if err := ws.SaveSegmentChunks(1, chunks); err != nil {
		t.Fatalf("SaveSegmentChunks: %v", err)
	}
	got, err := ws.LoadSegmentChunks(1)
	if err != nil || len(got) != 1 || got[0] != chunks[0] {
		t.Fatalf("LoadSegmentChunks = %+v, %v", got, err)
	}
	if n := ws.CompletedSegments(3); n != 1 {
		t.Fatalf("CompletedSegments = %d, want 1", n)
	}
}

func TestInvalidateCascades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ws := New(cfg, nil).Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	segs := writeSegments(t, ws, audio.Interval{StartMS: 0, EndMS: 1000})
	if err := ws.SaveSegments("movie.mkv", 1000, segs); err != nil {
		t.Fatalf("SaveSegments: %v", err)
	}
	one := []transcript.Chunk{{Text: "a", StartMS: 0, EndMS: 1}}
	_ = ws.SaveSegmentChunks(0, one)
	_ = transcript.Save(ws.UnmergedPath(), one)
	_ = transcript.Save(ws.MergedPath(), one)

	if err := ws.Invalidate(StageTranscribe); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if ws.Probe(StageSplit) != StatePresent {
		t.Fatal("split should survive transcribe invalidation")
	}
	if ws.Probe(StageTranscribe) != StateMissing || ws.Probe(StageMerge) != StateMissing {
		t.Fatal("transcribe and merge should be missing")
	}
	if ws.CompletedSegments(1) != 0 {
		t.Fatal("segment progress should be cleared")
	}
}

func TestLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := New(cfg, nil)

	lock, err := cache.Lock("movie")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := cache.Lock("movie"); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	other, err := cache.Lock("other")
	if err != nil {
		t.Fatalf("independent identity should lock: %v", err)
	}
	_ = other.Unlock()

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	again, err := cache.Lock("movie")
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	_ = again.Unlock()
}

func TestCleanKeepsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := New(cfg, nil)
	lock, err := cache.Lock("movie")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Unlock()

	ws := cache.Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_ = transcript.Save(ws.MergedPath(), nil)

	removed, err := cache.Clean("movie")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	if _, err := os.Stat(lock.Path()); err != nil {
		t.Fatalf("lock file should remain: %v", err)
	}
	if ws.Probe(StageMerge) != StateMissing {
		t.Fatal("merge artifact should be gone")
	}

	if n, err := cache.Clean("never-created"); err != nil || n != 0 {
		t.Fatalf("Clean on missing workspace = %d, %v", n, err)
	}
}

func TestList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := New(cfg, nil)
	if entries, err := cache.List(); err != nil || len(entries) != 0 {
		t.Fatalf("List on empty root = %v, %v", entries, err)
	}

	ws := cache.Workspace("movie")
	if _, err := ws.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	segs := writeSegments(t, ws, audio.Interval{StartMS: 0, EndMS: 1000}, audio.Interval{StartMS: 1000, EndMS: 2500})
	if err := ws.SaveSegments("movie.mkv", 2500, segs); err != nil {
		t.Fatalf("SaveSegments: %v", err)
	}

	entries, err := cache.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Identity != "movie" || entries[0].Segments != 2 || entries[0].Merged {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].SizeBytes <= 32 {
		t.Fatalf("size should include segments and manifest, got %d", entries[0].SizeBytes)
	}
}
