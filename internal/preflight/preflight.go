package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"vsub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes the checks that apply to cfg. audioSeconds is the expected
// source duration used to size the free-space check; zero skips it.
func RunAll(ctx context.Context, cfg *config.Config, audioSeconds float64) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	if cfg.Paths.LedgerPath != "" {
		results = append(results, CheckDirectoryAccess("Ledger directory", filepath.Dir(cfg.Paths.LedgerPath)))
	}
	if audioSeconds > 0 {
		results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, RequiredBytes(audioSeconds)))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional && !status.Available {
			continue
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: status.Summary()})
	}
	if strings.EqualFold(cfg.Transcription.Engine, config.EngineOpenAI) {
		results = append(results, CheckOpenAI(ctx, cfg.Transcription.OpenAI))
	}
	return results
}
