package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crm-functions/internal/app"
	"crm-functions/internal/common/config"
	"crm-functions/pkg/registry"
)

const defaultRegistryPath = "configs/function-registry.json"

func registryCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Export or check the published function catalogue",
	}
	cmd.PersistentFlags().StringVar(&path, "path", defaultRegistryPath, "path to the registry file")

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write the catalogue of registered functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := currentRegistry()
			if err != nil {
				return err
			}
			if err := registry.Save(path, reg); err != nil {
				return fmt.Errorf("save registry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d functions to %s\n", len(reg.Functions), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Fail when the stored catalogue is out of date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := registry.LoadRegistry(path)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s not found, run registry export", path)
			}
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}
			if err := stored.Validate(); err != nil {
				return err
			}

			reg, err := currentRegistry()
			if err != nil {
				return err
			}
			changes := registry.Diff(stored, reg)
			for _, c := range changes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", c.Kind, c.Name)
			}
			if len(changes) > 0 {
				return fmt.Errorf("registry is stale: %d functions differ", len(changes))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "registry is up to date")
			return nil
		},
	})

	return cmd
}

// currentRegistry builds the catalogue without connecting to any backend.
func currentRegistry() (*registry.FunctionRegistry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	reg := app.Registry(cfg, app.Functions(app.Dependencies{Config: cfg}))
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}
