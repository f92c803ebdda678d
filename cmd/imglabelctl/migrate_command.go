package main

import (
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/imglabel/internal/platform/postgres"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down|reset|status|version>",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(cmd.Context(), func(db *sql.DB, log *slog.Logger) error {
				return postgres.Migrate(cmd.Context(), db, args[0], log)
			})
		},
	}
}
