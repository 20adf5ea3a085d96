package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crm-functions/internal/common/database"
	"crm-functions/internal/documents"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, sync, err := loadConfig()
			if err != nil {
				return err
			}
			defer sync()

			db, err := database.OpenPostgres(cmd.Context(), cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := documents.NewStore(db).Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			for _, name := range applied {
				log.Info("migration applied", map[string]interface{}{"migration": name})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
			return nil
		},
	}
}
