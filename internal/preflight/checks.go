package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/deps"
)

// bytesPerAudioSecond is the size of 16 kHz mono PCM16 audio.
const bytesPerAudioSecond = audio.SampleRate * 2

// RequiredBytes estimates the workspace footprint for a source of the given
// duration: the extracted WAV plus its segment copies, with 10% headroom.
func RequiredBytes(audioSeconds float64) uint64 {
	if audioSeconds <= 0 {
		return 0
	}
	return uint64(audioSeconds * bytesPerAudioSecond * 2 * 1.1)
}

// statfsFunc allows tests to stub filesystem stats.
var statfsFunc = func(path string) (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Blocks * uint64(st.Bsize), st.Bavail * uint64(st.Bsize), nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
// A missing directory is created first; vsub owns its work and state dirs.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least required
// bytes available.
func CheckFreeSpace(name, path string, required uint64) Result {
	_, free, err := statfsFunc(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	if free < required {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, %s needed", formatGiB(free), formatGiB(required))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", formatGiB(free))}
}

func formatGiB(b uint64) string {
	return fmt.Sprintf("%.1f GiB", float64(b)/(1<<30))
}

// CheckSystemDeps evaluates the external binaries needed for cfg. Both the
// pipeline and `vsub check` use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for source validation",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "uvx",
			Command:     cfg.UVXBinary(),
			Description: "Required for WhisperX transcription",
			Optional:    !strings.EqualFold(cfg.Transcription.Engine, config.EngineWhisperX),
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

// CheckOpenAI verifies the transcription endpoint is reachable with the
// configured key by listing models. It uses a single short request.
func CheckOpenAI(ctx context.Context, cfg config.OpenAI) Result {
	const name = "Transcription API"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	endpoint, err := url.JoinPath(cfg.BaseURL, "models")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid base url: %v", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case resp.StatusCode == http.StatusNotFound:
		// Self-hosted servers often expose only the transcription route.
		return Result{Name: name, Passed: true, Detail: "Reachable (no models endpoint)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}
