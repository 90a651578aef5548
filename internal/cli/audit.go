package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cadventory/internal/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Checksum library files and report what changed since the last audit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			verbose, _ := cmd.Flags().GetBool("verbose")

			ctx := cmd.Context()
			c, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := audit.Run(ctx, c.Library, audit.Options{Workers: c.Config.Workers, DryRun: dryRun})
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, verbose)
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "(dry run, checksums not recorded)")
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "report without recording checksums")
	cmd.Flags().BoolP("verbose", "v", false, "also list unchanged files")
	return cmd
}

func printReport(out io.Writer, r *audit.Report, verbose bool) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	section := func(c *color.Color, marker string, files []string) {
		for _, f := range files {
			c.Fprintf(out, "  %s %s\n", marker, f)
		}
	}
	section(green, "added:    ", r.Added)
	section(yellow, "changed:  ", r.Changed)
	section(red, "missing:  ", r.Missing)
	if verbose {
		section(color.New(color.Reset), "unchanged:", r.Unchanged)
	}
	for path, msg := range r.Errors {
		red.Fprintf(out, "  error:     %s: %s\n", path, msg)
	}

	fmt.Fprintf(out, "\n%d added, %d changed, %d missing, %d unchanged in %v\n",
		len(r.Added), len(r.Changed), len(r.Missing), len(r.Unchanged), r.Duration.Round(time.Millisecond))
	if r.Clean() {
		green.Fprintln(out, "Library matches the last audit")
	}
}
