package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/registry/internal/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize registry storage",
		Long:  "Create the configuration and data directories, then create the registry database.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	return withStore(func(b *sqlite.Backend) error {
		cfg, err := storeConfig(current.config)
		if err != nil {
			return err
		}
		if flags.jsonMode {
			return printJSON(cmd, map[string]string{
				"config_dir": current.configDir,
				"data_dir":   cfg.DataDir,
			})
		}
		printf(cmd, "Registry initialized successfully\n")
		printf(cmd, "  config: %s\n", current.configDir)
		printf(cmd, "  data:   %s\n", cfg.DataDir)
		return nil
	})
}
