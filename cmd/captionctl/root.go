package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "captionctl",
		Short:         "Inspect and operate the caption pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (default $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newItemsCommand(ctx))

	return rootCmd
}
