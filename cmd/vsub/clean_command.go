package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vsub/internal/stagecache"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <video_file>",
		Short: "Discard a video's cached stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			source, err := resolveSource(args[0])
			if err != nil {
				return err
			}
			cache := stagecache.New(cfg, logger)
			identity, err := cache.Identity(source)
			if err != nil {
				return err
			}
			lock, err := cache.Lock(identity)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			removed, err := cache.Clean(identity)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from %s\n", removed, cache.Workspace(identity).Dir)
			return nil
		},
	}
}
