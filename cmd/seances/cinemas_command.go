package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCinemasCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cinemas",
		Short: "List the configured cinemas and their listing ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if ctx.wantJSON() {
				return writeJSON(cmd, cfg.Venues)
			}
			rows := make([][]string, 0, len(cfg.Venues))
			for i, v := range cfg.Venues {
				rows = append(rows, []string{fmt.Sprint(i + 1), v.Name, v.ID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Cinema", "ID"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
}
