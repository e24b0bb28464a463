package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vsub/internal/ledger"
	"vsub/internal/services"
	"vsub/internal/stagecache"
	"vsub/internal/subtitles"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var subtitlePath string

	cmd := &cobra.Command{
		Use:   "status [video_file]",
		Short: "Show cached stages for a video, or list all workspaces",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache := stagecache.New(cfg, nil)
			con := newConsole(cmd.OutOrStdout())
			out := con.out
			if len(args) == 0 {
				return renderWorkspaceList(con, cache)
			}

			source, err := resolveSource(args[0])
			if err != nil {
				return err
			}
			identity, err := cache.Identity(source)
			if err != nil {
				return err
			}
			if subtitlePath == "" {
				subtitlePath = strings.TrimSuffix(source, filepath.Ext(source)) + ".srt"
			}
			con.section(identity)
			renderStageTable(con, cache.Workspace(identity), subtitlePath)

			return ctx.withLedger(func(store *ledger.Store) error {
				run, err := store.LatestForIdentity(cmd.Context(), identity)
				if err != nil {
					return err
				}
				if run == nil {
					fmt.Fprintln(out, "No recorded runs")
					return nil
				}
				fmt.Fprintf(out, "Last run %s: %s at %s", shortID(run.ID), run.Status, formatTime(run.StartedAt))
				if run.ErrorMessage != "" {
					fmt.Fprintf(out, " (%s)", run.ErrorMessage)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&subtitlePath, "subtitle", "s", "", "Subtitle output to inspect (default: <video>.srt)")
	return cmd
}

func renderStageTable(con *console, ws *stagecache.Workspace, subtitlePath string) {
	segments, manifest, segErr := ws.LoadSegments()
	rows := make([][]string, 0, len(stagecache.Stages)+1)
	for _, stage := range stagecache.Stages {
		state := ws.Probe(stage)
		detail := ""
		switch stage {
		case stagecache.StageSplit:
			switch {
			case segErr == nil:
				detail = fmt.Sprintf("%d segments", len(segments))
			case state == stagecache.StatePresent:
				detail = segErr.Error()
			}
		case stagecache.StageTranscribe:
			if segErr == nil && state != stagecache.StatePresent {
				detail = fmt.Sprintf("%d/%d segments transcribed", ws.CompletedSegments(len(segments)), len(segments))
			}
		}
		rows = append(rows, []string{string(stage), con.state(string(state), state == stagecache.StatePresent), detail, ws.ArtifactPath(stage)})
	}

	subState, subDetail := "missing", ""
	if entries, err := subtitles.ReadFile(subtitlePath); err == nil {
		subState, subDetail = string(stagecache.StatePresent), fmt.Sprintf("%d entries", len(entries))
		if issues := subtitles.Validate(entries, manifest.TotalMS); len(issues) > 0 {
			subDetail += "; " + strings.Join(issues, ", ")
		}
	} else if !errors.Is(err, services.ErrNotFound) {
		subState, subDetail = "invalid", err.Error()
	}
	rows = append(rows, []string{"format", con.state(subState, subState == string(stagecache.StatePresent)), subDetail, subtitlePath})

	con.table([]string{"Stage", "State", "Detail", "Artifact"}, rows)
}

func renderWorkspaceList(con *console, cache *stagecache.Cache) error {
	entries, err := cache.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(con.out, "No workspaces under %s\n", cache.Root())
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			e.Identity,
			fmt.Sprint(e.Segments),
			yesNo(e.Merged),
			formatBytes(e.SizeBytes),
			formatTime(e.ModifiedAt),
		})
	}
	con.table([]string{"#", "Identity", "Segments", "Merged", "Size", "Modified"}, rows, 0, 2, 4)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
