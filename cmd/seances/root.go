package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var envFlag string
	var verboseFlag bool
	var jsonFlag bool

	ctx := newCommandContext(&envFlag, &verboseFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "seances",
		Short:         "Inspect Paris cinema listings, title matching and cached ratings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log component activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newCinemasCommand(ctx))
	rootCmd.AddCommand(newShowtimesCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newRatingsCommand(ctx))
	rootCmd.AddCommand(newPrefetchCommand(ctx))

	return rootCmd
}
