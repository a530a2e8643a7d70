package cli

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/registry/internal/sqlite"
)

// categoryJSON is the output form of one category.
type categoryJSON struct {
	Source   string `json:"source"`
	Family   string `json:"family"`
	Category string `json:"category"`
	Rows     int64  `json:"rows"`
	Columns  int    `json:"columns"`
}

type statsJSON struct {
	Categories []categoryJSON `json:"categories"`
	SizeBytes  int64          `json:"size_bytes"`
	LastID     int64          `json:"last_id"`
}

func toJSON(st sqlite.Stats) statsJSON {
	out := statsJSON{Categories: []categoryJSON{}, SizeBytes: st.SizeBytes, LastID: st.LastID}
	for _, c := range st.Categories {
		out.Categories = append(out.Categories, categoryJSON{
			Source:   c.Category.Source,
			Family:   c.Category.Family,
			Category: c.Category.Category,
			Rows:     c.Rows,
			Columns:  c.Columns,
		})
	}
	return out
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List stored categories with their row and column counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(b *sqlite.Backend) error {
				st, err := b.Stats(cmd.Context())
				if err != nil {
					return sysError("read stats: %w", err)
				}
				if flags.jsonMode {
					return printJSON(cmd, toJSON(st).Categories)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				printfTo(w, "CATEGORY\tROWS\tCOLUMNS\n")
				for _, c := range st.Categories {
					printfTo(w, "%s\t%d\t%d\n", c.Category, c.Rows, c.Columns)
				}
				return w.Flush()
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(b *sqlite.Backend) error {
				st, err := b.Stats(cmd.Context())
				if err != nil {
					return sysError("read stats: %w", err)
				}
				if flags.jsonMode {
					return printJSON(cmd, toJSON(st))
				}
				var rows int64
				for _, c := range st.Categories {
					rows += c.Rows
				}
				printf(cmd, "categories: %d\n", len(st.Categories))
				printf(cmd, "rows:       %d\n", rows)
				printf(cmd, "size:       %d bytes\n", st.SizeBytes)
				printf(cmd, "last id:    %d\n", st.LastID)
				return nil
			})
		},
	}
}
