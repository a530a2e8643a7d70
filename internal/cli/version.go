package cli

import (
	"github.com/spf13/cobra"
)

// Version is the registry release, set at build time with -ldflags.
var Version = "0.1.0-dev"

const modulePath = "github.com/mesh-intelligence/registry"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the registry version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return printJSON(cmd, map[string]string{"version": Version, "module": modulePath})
			}
			printf(cmd, "registry v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
