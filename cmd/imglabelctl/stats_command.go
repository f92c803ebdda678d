package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/phrazzld/imglabel/internal/app"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show message counts by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				if a.Stats == nil {
					return errors.New("the configured queue does not report stats")
				}
				s, err := a.Stats.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Visible", strconv.Itoa(s.Visible)},
					{"Leased", strconv.Itoa(s.Leased)},
					{"Dead-lettered", strconv.Itoa(s.DeadLettered)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"State", "Messages"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
