// cmd/maintenance/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crm-functions/internal/common/config"
	"crm-functions/internal/common/logger"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "maintenance",
		Short:         "Operational tasks for the CRM function gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(registryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the layered configuration and builds the logger from it.
func loadConfig() (*config.Config, logger.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, logger.NewZapAdapter(zapLog), func() { _ = zapLog.Sync() }, nil
}
