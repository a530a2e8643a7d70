package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/registry/internal/sqlite"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove rows whose expiration has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(b *sqlite.Backend) error {
				n, err := b.PurgeExpired(cmd.Context())
				if err != nil {
					return sysError("purge: %w", err)
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]int{"purged": n})
				}
				printf(cmd, "Purged %d expired rows\n", n)
				return nil
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every category and row",
		Long:  "Remove every category and row. Ids already handed out are not reused.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &exitError{code: exitUserError, err: errors.New("clear removes all data; pass --yes to confirm")}
			}
			return withStore(func(b *sqlite.Backend) error {
				if err := b.Clear(cmd.Context()); err != nil {
					return sysError("clear: %w", err)
				}
				if flags.jsonMode {
					return printJSON(cmd, map[string]bool{"cleared": true})
				}
				printf(cmd, "Registry cleared\n")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal of all data")
	return cmd
}
