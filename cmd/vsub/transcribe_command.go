package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vsub/internal/config"
	"vsub/internal/language"
	"vsub/internal/ledger"
	"vsub/internal/pipeline"
)

type transcribeFlags struct {
	audioPath    string
	subtitlePath string
	fresh        bool
}

// pipelineOptions lets tests substitute the engine and external tools.
var pipelineOptions []pipeline.Option

func runTranscribe(cmd *cobra.Command, ctx *commandContext, source string, flags transcribeFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	source, err = config.ExpandPath(strings.TrimSpace(source))
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	return ctx.withLedger(func(store *ledger.Store) error {
		opts := append([]pipeline.Option{pipeline.WithLedger(store)}, pipelineOptions...)
		p, err := pipeline.New(cfg, logger, opts...)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context(), pipeline.Request{
			Source:       source,
			AudioPath:    flags.audioPath,
			SubtitlePath: flags.subtitlePath,
			Fresh:        flags.fresh,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %d subtitles to %s\n", res.Entries, res.SubtitlePath)
		fmt.Fprintf(out, "Language: %s\n", language.DisplayName(res.Language))
		rows := make([][]string, 0, len(res.Stages))
		for _, s := range res.Stages {
			rows = append(rows, []string{s.Stage, s.Result, s.Detail, formatDuration(s.Duration)})
		}
		newConsole(out).table([]string{"Stage", "Result", "Detail", "Time"}, rows, 3)
		return nil
	})
}
