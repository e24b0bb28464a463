package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vsub/internal/language"
	"vsub/internal/preflight"
	"vsub/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, directories, and the transcription backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			con := newConsole(cmd.OutOrStdout())

			con.section("Configuration")
			path := ctx.configPath
			if path == "" {
				path = "defaults"
			}
			con.check("Config", checkInfo, path)
			con.check("Engine", checkInfo, cfg.Transcription.Engine)
			con.check("Language", checkInfo, language.DisplayName(cfg.Transcription.Language))
			fmt.Fprintln(con.out)

			con.section("Checks")
			results := preflight.RunAll(cmd.Context(), cfg, 0)
			for _, r := range results {
				kind := checkOK
				if !r.Passed {
					kind = checkError
				}
				con.check(r.Name, kind, r.Detail)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return services.Wrap(services.ErrExternalTool, "preflight", "check environment", fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), nil)
			}
			return nil
		},
	}
}
