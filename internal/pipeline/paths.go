package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"vsub/internal/services"
)

// Request names the source and output files for one run.
type Request struct {
	Source string
	// AudioPath is where extracted audio is written. Empty means a sibling
	// of Source with a .wav extension.
	AudioPath string
	// SubtitlePath is the SRT output. Empty means a sibling .srt.
	SubtitlePath string
	// Fresh discards the workspace before running.
	Fresh bool
}

// resolved is a Request with every path made absolute.
type resolved struct {
	source       string
	audioPath    string
	subtitlePath string
	fresh        bool
}

func resolveRequest(req Request) (resolved, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return resolved{}, services.Wrap(services.ErrInput, "split", "resolve paths", "source path is empty", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return resolved{}, services.Wrap(services.ErrInput, "split", "resolve paths", source, err)
	}
	out := resolved{source: abs, fresh: req.Fresh}
	stem := strings.TrimSuffix(abs, filepath.Ext(abs))

	if out.audioPath, err = absOrDefault(req.AudioPath, stem+".wav"); err != nil {
		return resolved{}, err
	}
	if out.subtitlePath, err = absOrDefault(req.SubtitlePath, stem+".srt"); err != nil {
		return resolved{}, err
	}
	if out.subtitlePath == out.source {
		return resolved{}, services.Wrap(services.ErrInput, "format", "resolve paths", "subtitle output would overwrite the source", nil)
	}
	if out.subtitlePath == out.audioPath {
		return resolved{}, services.Wrap(services.ErrInput, "format", "resolve paths",
			fmt.Sprintf("audio and subtitle outputs are both %s", out.audioPath), nil)
	}
	return out, nil
}

func absOrDefault(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "split", "resolve paths", value, err)
	}
	return abs, nil
}
