package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/govqa/portalharness/internal/api"
	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/browser"
	"github.com/govqa/portalharness/internal/config"
	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/logging"
	"github.com/govqa/portalharness/internal/netutil"
	"github.com/govqa/portalharness/internal/notify"
	"github.com/govqa/portalharness/internal/portal"
	"github.com/govqa/portalharness/internal/relay"
	"github.com/govqa/portalharness/internal/report"
	"github.com/govqa/portalharness/internal/storage"
)

func main() {
	scenario := flag.String("scenario", "all", "scenario to run, or all")
	serve := flag.String("serve", "", "serve reports and live events on this address while running")
	list := flag.Bool("list", false, "list scenarios and exit")
	flag.Parse()

	if *list {
		for _, name := range portal.Names() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	code := run(cfg, *scenario, *serve)
	logging.Close(logCloser)
	os.Exit(code)
}

func run(cfg *config.Config, scenario, serveAddr string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := portal.OptionsFrom(cfg)
	if err != nil {
		slog.Error("failed to load portal data", "file", cfg.DataFile, "error", err)
		return 1
	}

	scenarios := portal.All(opts)
	if scenario != "all" {
		sc, err := portal.Lookup(scenario, opts)
		if err != nil {
			slog.Error("unknown scenario", "error", err)
			return 2
		}
		scenarios = []harness.Scenario{sc}
	}

	runID := uuid.NewString()
	slog.Info("portal run starting",
		"run_id", runID,
		"base_url", cfg.BaseURL,
		"scenarios", len(scenarios),
		"headless", cfg.Headless,
		"locate_timeout", cfg.LocateTimeout(),
		"evidence_dir", cfg.EvidenceDir,
		"results_dir", cfg.ResultsDir,
	)

	writer, err := report.NewWriter(cfg.ResultsDir)
	if err != nil {
		slog.Error("failed to create results writer", "error", err)
		return 1
	}
	events := storage.NewJSONLWriter(cfg.EventsDir, runID, cfg.EventBufferSize, cfg.EventMaxFileSizeMB)
	defer func() {
		if err := events.Close(); err != nil {
			slog.Warn("event log close failed", "error", err)
		}
	}()
	writer.AddObserver(events)

	broker := relay.NewBroker()
	writer.AddObserver(broker)

	if serveAddr != "" {
		srv, err := startServer(cfg, serveAddr, broker)
		if err != nil {
			slog.Error("failed to start report server", "error", err)
			return 1
		}
		defer shutdown(srv)
	}

	launch := func(ctx context.Context) (driver.Driver, error) {
		return browser.Launch(ctx, cfg.Browser(), slog.Default())
	}

	var results []harness.RunResult
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			slog.Warn("run interrupted", "remaining_from", sc.Name)
			break
		}
		m := harness.NewManager(launch, harness.Config{
			Scenario:      sc.Name,
			EvidenceDir:   cfg.EvidenceDir,
			LocateTimeout: cfg.LocateTimeout(),
			Logger:        slog.Default(),
		})
		results = append(results, sc.Run(ctx, m, harness.WriterReports(writer)))
	}

	summary := notify.Summary(results)
	fmt.Println(summary)

	if cfg.NtfyEndpoint != "" {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := notify.Send(nctx, http.DefaultClient, cfg.NtfyEndpoint, summary); err != nil {
			slog.Warn("run notification failed", "error", err)
		}
		cancel()
	}

	for _, r := range results {
		if !r.OK() {
			return 1
		}
	}
	if len(results) < len(scenarios) {
		return 1
	}
	return 0
}

func startServer(cfg *config.Config, addr string, broker *relay.Broker) (*http.Server, error) {
	store, err := artifact.NewStore(cfg.EvidenceDir)
	if err != nil {
		return nil, err
	}
	candidates, err := netutil.NextPorts(addr, 10)
	if err != nil {
		return nil, err
	}
	bindAddr, err := netutil.SelectBindAddr(addr, candidates, cfg.PortAutoFallback)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(api.NewFileService(cfg.ResultsDir, store), broker)}
	go func() {
		slog.Info("report server listening", "addr", bindAddr, "events", "http://"+bindAddr+"/api/v1/events")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("report server failed", "error", err)
		}
	}()
	return srv, nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("report server shutdown failed", "error", err)
	}
}
