// mlforged is the ML pipeline agent service. It accepts task events over
// HTTP, drives the agent network against a Docker sandbox, and persists
// results in SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mlforge/pkg/config"
	"mlforge/pkg/eventlog"
	"mlforge/pkg/events"
	"mlforge/pkg/llm/providers"
	"mlforge/pkg/logx"
	"mlforge/pkg/metrics"
	"mlforge/pkg/persistence"
	"mlforge/pkg/sandbox/docker"
	"mlforge/pkg/version"
	"mlforge/pkg/workflow"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mlforged %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// run() owns all defers so they execute before os.Exit.
	os.Exit(run(*configFile))
}

func run(configFile string) int {
	logger := logx.NewLogger("main")

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("❌ load config: %v", err)
		return 1
	}

	if err := persistence.Initialize(cfg.DBPath); err != nil {
		logger.Error("❌ initialize database: %v", err)
		return 1
	}
	defer func() {
		if cerr := persistence.Close(); cerr != nil {
			logger.Warn("⚠️ close database: %v", cerr)
		}
	}()

	sandboxClient, err := docker.New(cfg.Sandbox.WorkDir, cfg.Sandbox.PreviewPort, cfg.Sandbox.IdleTimeout)
	if err != nil {
		logger.Error("❌ create sandbox client: %v", err)
		return 1
	}
	defer func() {
		if cerr := sandboxClient.Close(); cerr != nil {
			logger.Warn("⚠️ close sandbox client: %v", cerr)
		}
	}()

	llmClient, err := providers.NewResilientClient(cfg.LLM)
	if err != nil {
		logger.Error("❌ create LLM client: %v", err)
		return 1
	}

	driver := workflow.NewDriver(cfg, llmClient, sandboxClient, persistence.Ops(), metrics.Default())
	dispatcher := events.NewDispatcher(driver, cfg.Server.MaxRunWorkers)

	if auditLog, alErr := eventlog.NewWriter("logs"); alErr != nil {
		logger.Warn("⚠️ run audit log disabled: %v", alErr)
	} else {
		dispatcher.SetAuditLog(auditLog)
		defer func() {
			if cerr := auditLog.Close(); cerr != nil {
				logger.Warn("⚠️ close audit log: %v", cerr)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher.Start(ctx)

	mux := http.NewServeMux()
	events.NewServer(dispatcher, driver, persistence.Ops()).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🔄 mlforged %s listening on %s", version.Version, cfg.Server.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("🔄 shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ http server: %v", err)
			return 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ http shutdown: %v", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("⚠️ dispatcher shutdown: %v", err)
	}

	logger.Info("✅ mlforged stopped")
	return 0
}
