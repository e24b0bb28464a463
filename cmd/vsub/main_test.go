package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/engine"
	"vsub/internal/pipeline"
	"vsub/internal/services"
	"vsub/internal/testsupport"
	"vsub/internal/transcript"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	video      string
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"
	for _, fn := range mutate {
		fn(cfg)
	}
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	video := filepath.Join(base, "videos", "episode.mkv")
	testsupport.WriteFile(t, video, 2048)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, video: video}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

// stubPipeline replaces ffprobe, ffmpeg, and the engine for CLI runs.
func stubPipeline(t *testing.T) {
	t.Helper()
	pipelineOptions = []pipeline.Option{
		pipeline.WithPreflight(nil),
		pipeline.WithProbeRunner(func(context.Context, string, ...string) ([]byte, error) {
			return []byte(`{"streams":[{"index":0,"codec_type":"audio"}],"format":{"duration":"5.0"}}`), nil
		}),
		pipeline.WithExtractRunner(func(_ context.Context, _ string, args ...string) error {
			testsupport.WriteWAV(t, args[len(args)-1],
				testsupport.Span{DurationMS: 2000, Loud: true},
				testsupport.Span{DurationMS: 1000},
				testsupport.Span{DurationMS: 2000, Loud: true},
			)
			return nil
		}),
		pipeline.WithEngine(engine.Func(func(_ context.Context, seg audio.Segment) ([]transcript.Chunk, error) {
			return []transcript.Chunk{{Text: "line", StartMS: 0, EndMS: 800}}, nil
		})),
	}
	t.Cleanup(func() { pipelineOptions = nil })
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "vsub", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestTranscribeStatusHistoryClean(t *testing.T) {
	env := setupCLITestEnv(t)
	stubPipeline(t)

	out, _, err := runCLI(t, []string{env.video}, env.configPath)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	srt := strings.TrimSuffix(env.video, ".mkv") + ".srt"
	requireContains(t, out, "Wrote 2 subtitles to "+srt)
	requireContains(t, out, "Language: ")
	requireContains(t, out, "transcribe")
	if _, err := os.Stat(srt); err != nil {
		t.Fatalf("subtitle file missing: %v", err)
	}

	out, _, err = runCLI(t, []string{"status", env.video}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "2 segments")
	requireContains(t, out, "2 entries")
	requireContains(t, out, "succeeded")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	requireContains(t, out, "episode-")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "succeeded")
	requireContains(t, out, env.video)

	out, _, err = runCLI(t, []string{"clean", env.video}, env.configPath)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "Removed")

	out, _, err = runCLI(t, []string{"status", env.video}, env.configPath)
	if err != nil {
		t.Fatalf("status after clean: %v", err)
	}
	if strings.Contains(out, "2 segments") {
		t.Fatalf("workspace survived clean:\n%s", out)
	}
}

func TestTranscribeMissingSource(t *testing.T) {
	env := setupCLITestEnv(t)
	stubPipeline(t)

	_, _, err := runCLI(t, []string{filepath.Join(env.baseDir, "nope.mkv")}, env.configPath)
	if !errors.Is(err, services.ErrInput) || exitCode(err) != 2 {
		t.Fatalf("expected input error with exit 2, got %v (%d)", err, exitCode(err))
	}
}

func TestUnknownEngineFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--engine", "vosk", env.video}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCheckReportsMissingTools(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Tools.FFmpeg = "/nonexistent/ffmpeg"
	})
	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "Work directory")
}

func TestHistoryDisabledWithoutLedger(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Paths.LedgerPath = ""
	})
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "disabled")
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrInput, "split", "open", "x", nil), 2},
		{services.Wrap(services.ErrFormat, "merge", "load", "x", nil), 3},
		{services.Wrap(services.ErrEngine, "transcribe", "segment 1", "x", nil), 4},
		{services.Wrap(services.ErrEncoding, "format", "encode", "x", nil), 5},
		{services.Wrap(services.ErrBusy, "cache", "lock", "x", nil), 6},
		{errors.New("boom"), 1},
		{context.Canceled, 130},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(env.cfg.Paths.LogDir, "vsub.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("logs output = %q", out)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Transcription.OpenAI.APIKey = "sk-secret"
	})
	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked:\n%s", out)
	}
	requireContains(t, out, "<redacted>")
	requireContains(t, out, "[transcription]")

	var decoded config.Config
	if err := toml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("config show output is not TOML: %v", err)
	}
	if decoded.Transcription.Engine != env.cfg.Transcription.Engine {
		t.Fatalf("engine = %q, want %q", decoded.Transcription.Engine, env.cfg.Transcription.Engine)
	}
}
