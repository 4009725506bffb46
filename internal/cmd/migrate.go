package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openclass/dbans/internal/config"
	"github.com/openclass/dbans/internal/database"
	"github.com/openclass/dbans/pkg/log"
)

// migrateCmd loads or reverts the db schema manually.
func migrateCmd() *cobra.Command {
	var downAll bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			staticConfig, errStatic := config.ReadStatic(true)
			if errStatic != nil {
				return errStatic
			}

			action := database.MigrateUp
			if downAll {
				action = database.MigrateDn
			}

			db := database.New(staticConfig.DB.DSN, false, false)
			if errMigrate := db.Migrate(action, staticConfig.DB.DSN); errMigrate != nil {
				slog.Error("Could not migrate schema", log.ErrAttr(errMigrate))

				return errMigrate
			}

			slog.Info("Migration complete")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&downAll, "down", "d", false, "Fully reverts all migrations")

	return cmd
}
