package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cadventory/internal/handlers"
	"cadventory/internal/indexing"
	"cadventory/internal/logging"
	"cadventory/internal/metrics"
	"cadventory/internal/pipeline"
	"cadventory/internal/search"
	"cadventory/internal/startup"
	"cadventory/internal/toolkit"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over HTTP",
		Long: `Serve the library catalog as a JSON API with health probes and
Prometheus metrics. Processing runs can be started and stopped over the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().IntP("workers", "j", 0, "concurrent models for processing runs, 0 for automatic")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	startTime := time.Now()
	startup.LogStartup()

	ctx := cmd.Context()
	cfg := a.cfg

	dbStart := time.Now()
	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	indexStart := time.Now()
	models := len(c.Library.Models())
	startup.LogLibraryOpened(c.Library.Name(), c.Library.Path(), models, time.Since(indexStart))

	tk := toolkit.New(cfg.ToolkitConfig(), nil)
	startup.LogToolkitInit(ctx, tk)
	proc := pipeline.NewProcessor(c.Store, tk, cfg.ProcessorOptions(c.Library.Name(), c.Library.PreviewDir()))

	searchIdx, err := search.New()
	if err != nil {
		return err
	}
	defer searchIdx.Close()
	if err := searchIdx.Rebuild(ctx, c.Store); err != nil {
		logging.Warn("Failed to build search index: %v", err)
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
		collector = metrics.NewCollector(c.Store, time.Minute)
		collector.Start()
	}

	monitor := startMemoryMonitor(cfg)
	defer monitor.Stop()

	workerOpts := indexing.DefaultOptions()
	workerOpts.Workers = cfg.Workers
	workerOpts.Gate = monitor
	h := handlers.New(c.Library, c.Store, proc, searchIdx, workerOpts)

	routerConfig := handlers.DefaultRouterConfig()
	routerConfig.MetricsEnabled = cfg.MetricsEnabled
	routerConfig.Logging.LogHealthChecks = cfg.LogHealthChecks

	router := handlers.NewRouter(h, routerConfig)
	startup.LogHTTPRoutes(router, cfg.LogHealthChecks)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      handlers.Wrap(router, routerConfig),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Listen:          cfg.Listen,
		MetricsEnabled:  cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			h.Close()
			return err
		}
		return nil
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping processing run")
	h.Close()
	startup.LogShutdownStepComplete("Processing stopped")

	if collector != nil {
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownComplete()
	return nil
}
