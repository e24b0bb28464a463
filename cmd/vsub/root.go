package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var ov overrides
	var tf transcribeFlags

	ctx := newCommandContext(&configFlag, &ov)

	rootCmd := &cobra.Command{
		Use:   "vsub [video_file]",
		Short: "Generate SRT subtitles from a video's audio track",
		Long: `vsub extracts a video's audio, splits it at pauses, transcribes each
segment, and merges the transcript into subtitle-sized cues.

Every stage is cached per source, so an interrupted or failed run resumes
where it stopped. Use --fresh to recompute everything.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			if cmd == cmd.Root() && len(args) == 0 {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runTranscribe(cmd, ctx, args[0], tf)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	pf.StringVar(&ov.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.StringVarP(&tf.audioPath, "audio", "a", "", "Extracted audio output (default: <video>.wav)")
	f.StringVarP(&tf.subtitlePath, "subtitle", "s", "", "Subtitle output (default: <video>.srt)")
	f.BoolVar(&tf.fresh, "fresh", false, "Discard cached stages and recompute everything")
	f.StringVar(&ov.engine, "engine", "", "Transcription engine (whisperx or openai)")
	f.StringVar(&ov.language, "language", "", "Spoken language code, or auto to detect")
	f.IntVar(&ov.workers, "workers", 0, "Segments transcribed concurrently")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newCleanCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
