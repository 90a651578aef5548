package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cadventory/internal/cadtypes"
	"cadventory/internal/indexer"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Walk the library and count files per category",
		Long: `Walk the library root, honoring .cadventoryignore and configured ignore
globs, and report how many files fall into each category.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, a)
		},
	}
	cmd.Flags().Int("depth", -1, "maximum directory depth, -1 for unlimited")
	cmd.Flags().Bool("list", false, "print every file, grouped by category")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app) error {
	c, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	lib := c.Library
	start := time.Now()

	var n int
	if isTerminal(out) {
		spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Indexing " + lib.Path())
		n = lib.IndexFilesWithProgress(indexer.Throttle(indexer.ProgressFunc(func(string) {
			done := lib.Indexer().GetProgress().FilesIndexed
			spinner.UpdateText(fmt.Sprintf("Indexing %s (%d files)", lib.Path(), done))
		}), 100*time.Millisecond))
		_ = spinner.Stop()
	} else {
		n = lib.IndexFiles()
	}

	bold := color.New(color.Bold)
	bold.Fprintf(out, "Library %q", lib.Name())
	fmt.Fprintf(out, " at %s\n", lib.Path())
	fmt.Fprintf(out, "Indexed %d files in %v\n\n", n, time.Since(start).Round(time.Millisecond))

	list, _ := cmd.Flags().GetBool("list")
	rows := []struct {
		label string
		files []string
	}{
		{"models", lib.Models()},
		{string(cadtypes.CategoryGeometry), lib.Geometry()},
		{string(cadtypes.CategoryImage), lib.Images()},
		{string(cadtypes.CategoryDocument), lib.Documents()},
		{string(cadtypes.CategoryData), lib.Data()},
	}
	cyan := color.New(color.FgCyan)
	for _, row := range rows {
		cyan.Fprintf(out, "  %-10s", row.label)
		fmt.Fprintf(out, " %d\n", len(row.files))
		if list {
			for _, f := range row.files {
				fmt.Fprintf(out, "      %s\n", f)
			}
		}
	}
	return nil
}
