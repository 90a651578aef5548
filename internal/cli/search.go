package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cadventory/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search models by name, title, author, path and tags",
		Long: `Search the catalogued models. Plain words match anywhere, "quoted text"
matches a phrase, /pattern/ is a regular expression and field:value queries
use the query string syntax (fields: short_name, title, author, path, tags).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			idx, err := search.New()
			if err != nil {
				return err
			}
			defer idx.Close()
			if err := idx.Rebuild(ctx, c.Store); err != nil {
				return err
			}

			hits, total, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hit := range hits {
				m, err := c.Store.GetModel(ctx, hit.ModelID)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "%-20d %-24s %s\n", m.ID, m.ShortName, m.Title)
			}
			fmt.Fprintf(out, "%d of %d matches\n", len(hits), total)
			return nil
		},
	}
	cmd.Flags().Int("limit", search.DefaultLimit, "maximum results")
	return cmd
}
