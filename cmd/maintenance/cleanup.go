package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crm-functions/internal/app"
)

func cleanupCmd() *cobra.Command {
	var (
		retentionDays int
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete chat history older than the retention window",
		Long: `Delete chat messages, their images and search documents older than
chat.retention_days, then drop conversations left without messages.

Examples:
  maintenance cleanup
  maintenance cleanup --retention-days 90 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, sync, err := loadConfig()
			if err != nil {
				return err
			}
			defer sync()

			days := cfg.Chat.RetentionDays
			if retentionDays > 0 {
				days = retentionDays
			}

			rt, err := app.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := app.NewCleaner(rt.Dependencies).Run(cmd.Context(), time.Duration(days)*24*time.Hour, dryRun)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override chat.retention_days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the cutoff without deleting anything")
	return cmd
}
