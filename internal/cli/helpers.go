package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/registry/internal/sqlite"
)

// openStore attaches a backend to the configured data directory. The caller
// must Detach it.
func openStore() (*sqlite.Backend, error) {
	cfg, err := storeConfig(current.config)
	if err != nil {
		return nil, &exitError{code: exitUserError, err: err}
	}
	b := sqlite.NewBackend(sqlite.WithLogger(current.logger))
	if err := b.Attach(cfg); err != nil {
		return nil, sysError("open store: %w", err)
	}
	return b, nil
}

// withStore opens the store, runs fn, and closes the store.
func withStore(fn func(b *sqlite.Backend) error) error {
	b, err := openStore()
	if err != nil {
		return err
	}
	defer b.Detach()
	return fn(b)
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return sysError("encode output: %w", err)
	}
	return nil
}

// printf writes formatted text output.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// printfTo writes formatted text to w.
func printfTo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
