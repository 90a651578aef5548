package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"cadventory/internal/indexing"
	"cadventory/internal/logging"
	"cadventory/internal/memory"
	"cadventory/internal/pipeline"
	"cadventory/internal/startup"
	"cadventory/internal/toolkit"
)

func newProcessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract metadata and render previews for every model",
		Long: `Process every geometry database in the library: record its title and
top-level objects and render a preview thumbnail, trying candidate objects in
turn until one renders. Already processed content is skipped unless --force
is given. Interrupting the command lets in-flight models finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(cmd, a)
		},
	}
	flags := cmd.Flags()
	flags.IntP("workers", "j", 0, "concurrent models, 0 for automatic")
	flags.Bool("force", false, "reprocess models that already have results")
	flags.Bool("previews", true, "render preview thumbnails")
	flags.Bool("reindex", false, "walk the library root before processing")
	flags.Bool("sequential", false, "load models one at a time, without the worker pool")
	return cmd
}

func newProcessor(ctx context.Context, c *cmdContext) *pipeline.Processor {
	tk := toolkit.New(c.Config.ToolkitConfig(), nil)
	if c.Config.PreviewsEnabled {
		if err := tk.Check(ctx); err != nil {
			logging.Warn("Toolkit check failed, models will be stored without previews: %v", err)
		}
	}
	opts := c.Config.ProcessorOptions(c.Library.Name(), c.Library.PreviewDir())
	return pipeline.NewProcessor(c.Store, tk, opts)
}

func runProcess(cmd *cobra.Command, a *app) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	proc := newProcessor(ctx, c)
	out := cmd.OutOrStdout()
	start := time.Now()

	if sequential, _ := cmd.Flags().GetBool("sequential"); sequential {
		res, err := c.Library.LoadDatabase(ctx, proc)
		printSummary(out, res.Summary, time.Since(start))
		fmt.Fprintf(out, "  %d files, %d new, %d already known\n", res.Files, res.Inserted, res.Existing)
		return err
	}

	reindex, _ := cmd.Flags().GetBool("reindex")
	opts := indexing.DefaultOptions()
	opts.Workers = c.Config.Workers
	opts.Reindex = reindex

	monitor := startMemoryMonitor(c.Config)
	defer monitor.Stop()
	opts.Gate = monitor

	worker := indexing.New(c.Library, proc, opts)
	events := worker.Start(context.WithoutCancel(ctx))

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			logging.Info("Interrupted, waiting for in-flight models")
			worker.Stop()
		case <-finished:
		}
	}()

	showProgress(out, events)
	summary := worker.Wait()

	printSummary(out, summary.Summary, time.Since(start))
	if summary.Stopped {
		color.New(color.FgYellow).Fprintf(out, "  stopped early, %d models not started\n", summary.NotStarted)
	}
	return nil
}

// startMemoryMonitor applies the configured soft memory limit and returns a
// running monitor for use as the pool gate.
func startMemoryMonitor(cfg *startup.Config) *memory.Monitor {
	res := memory.ApplyLimit(cfg.MemoryLimit, cfg.MemoryRatio)
	mc := memory.DefaultConfig()
	mc.Limit = res.SoftLimit
	m := memory.NewMonitor(mc)
	m.Start()
	return m
}

// showProgress drains events, drawing a progress bar on terminals and
// logging one line per model otherwise.
func showProgress(out io.Writer, events <-chan indexing.Event) {
	var bar *pterm.ProgressbarPrinter
	tty := isTerminal(out)

	for ev := range events {
		switch ev.Kind {
		case indexing.EventProgress:
			if !tty || ev.Phase != indexing.PhaseProcessing {
				continue
			}
			if bar == nil || bar.Total != ev.Total {
				if bar != nil {
					_, _ = bar.Stop()
				}
				bar, _ = pterm.DefaultProgressbar.WithTotal(max(ev.Total, 1)).WithTitle("Processing").WithWriter(out).Start()
			}
			if ev.Done > bar.Current {
				bar.Add(ev.Done - bar.Current)
			}
		case indexing.EventModelProcessed:
			if bar != nil {
				bar.UpdateTitle(string(ev.Status))
			} else if !tty {
				logging.Info("%-12s %s", ev.Status, ev.Path)
			}
		}
	}
	if bar != nil {
		_, _ = bar.Stop()
	}
}

func printSummary(out io.Writer, s pipeline.Summary, elapsed time.Duration) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintf(out, "\nProcessed %d models in %v\n", s.Done(), elapsed.Round(time.Millisecond))
	green.Fprintf(out, "  %d with preview\n", s.Processed)
	if s.NoPreview > 0 {
		yellow.Fprintf(out, "  %d without preview\n", s.NoPreview)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(out, "  %d already processed\n", s.Skipped)
	}
	if s.Unidentified > 0 {
		yellow.Fprintf(out, "  %d unidentified\n", s.Unidentified)
	}
	if s.Failed > 0 {
		red.Fprintf(out, "  %d failed\n", s.Failed)
	}
}
