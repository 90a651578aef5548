package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <id>...",
		Short: "Select models for reports, or include and exclude them from processing",
		Long: `Flag models in one transaction. By default the models are selected;
--off clears the flag and --included switches to the processing inclusion
flag instead. Unknown ids abort the whole update.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseModelID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			off, _ := cmd.Flags().GetBool("off")
			included, _ := cmd.Flags().GetBool("included")

			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			b, err := c.Store.BeginBatch(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if included {
					err = b.SetModelIncluded(id, !off)
				} else {
					err = b.SetModelSelected(id, !off)
				}
				if err != nil {
					err = fmt.Errorf("model %d: %w", id, err)
					break
				}
			}
			if err = c.Store.EndBatch(b, err); err != nil {
				return err
			}

			field := "selected"
			if included {
				field = "included"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d models: %s=%v\n", len(ids), field, !off)
			return nil
		},
	}
	cmd.Flags().Bool("off", false, "clear the flag instead of setting it")
	cmd.Flags().Bool("included", false, "change processing inclusion instead of selection")
	return cmd
}
