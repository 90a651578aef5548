package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cadventory/internal/database"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List catalogued models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd, a)
		},
	}
	flags := cmd.Flags()
	flags.Bool("processed", false, "only models with (true) or without (false) results")
	flags.Bool("selected", false, "only selected (true) or unselected (false) models")
	flags.Bool("included", false, "only included (true) or excluded (false) models")
	flags.String("tag", "", "only models carrying this tag")
	flags.Int("limit", 0, "maximum number of models, 0 for all")
	flags.Bool("json", false, "print JSON instead of a table")
	return cmd
}

// triState returns nil unless the flag was given explicitly.
func triState(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

func runModels(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var models []database.Model
	if tag, _ := cmd.Flags().GetString("tag"); tag != "" {
		models, err = c.Store.GetModelsByTag(ctx, tag)
	} else {
		limit, _ := cmd.Flags().GetInt("limit")
		models, err = c.Store.ListModels(ctx, database.ModelFilter{
			Processed: triState(cmd, "processed"),
			Selected:  triState(cmd, "selected"),
			Included:  triState(cmd, "included"),
			Limit:     limit,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	tags, err := c.Store.GetTagsForModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		type row struct {
			database.Model
			Tags []string `json:"tags"`
		}
		rows := make([]row, 0, len(models))
		for _, m := range models {
			rows = append(rows, row{Model: m, Tags: tags[m.ID]})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(models) == 0 {
		fmt.Fprintln(out, "No models")
		return nil
	}

	data := pterm.TableData{{"ID", "Name", "Title", "Processed", "Preview", "Selected", "Tags"}}
	for _, m := range models {
		data = append(data, []string{
			strconv.FormatInt(m.ID, 10),
			m.ShortName,
			m.Title,
			yesNo(m.IsProcessed),
			yesNo(m.HasThumbnail),
			yesNo(m.IsSelected),
			strings.Join(tags[m.ID], ","),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "%d models\n", len(models))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one model with its objects and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseModelID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Store.GetModel(ctx, id)
			if err != nil {
				return fmt.Errorf("model %d: %w", id, err)
			}
			tags, err := c.Store.GetModelTags(ctx, id)
			if err != nil {
				return err
			}
			objects, err := c.Store.GetObjectsForModel(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintf(out, "Model %d\n", m.ID)
			fmt.Fprintf(out, "  Name:       %s\n", m.ShortName)
			fmt.Fprintf(out, "  Title:      %s\n", m.Title)
			if m.Author != "" {
				fmt.Fprintf(out, "  Author:     %s\n", m.Author)
			}
			fmt.Fprintf(out, "  File:       %s\n", m.FilePath)
			fmt.Fprintf(out, "  Library:    %s\n", m.LibraryName)
			fmt.Fprintf(out, "  Processed:  %s\n", yesNo(m.IsProcessed))
			fmt.Fprintf(out, "  Preview:    %s\n", previewSize(m))
			fmt.Fprintf(out, "  Selected:   %s\n", yesNo(m.IsSelected))
			fmt.Fprintf(out, "  Included:   %s\n", yesNo(m.IsIncluded))
			fmt.Fprintf(out, "  Tags:       %s\n", strings.Join(tags, ", "))
			if m.OverrideInfo != "" {
				fmt.Fprintf(out, "  Override:   %s\n", m.OverrideInfo)
			}

			fmt.Fprintf(out, "  Objects:    %d\n", len(objects))
			green := color.New(color.FgGreen)
			for _, o := range objects {
				if o.IsSelected {
					green.Fprintf(out, "    * %s\n", o.Name)
				} else {
					fmt.Fprintf(out, "      %s\n", o.Name)
				}
			}
			return nil
		},
	}
}

func previewSize(m *database.Model) string {
	if len(m.Thumbnail) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d bytes", len(m.Thumbnail))
}
