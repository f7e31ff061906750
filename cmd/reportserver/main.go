package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/govqa/portalharness/internal/api"
	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/config"
	"github.com/govqa/portalharness/internal/logging"
	"github.com/govqa/portalharness/internal/netutil"
)

func main() {
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
	defer logging.Close(logCloser)

	slog.Info("reportserver config loaded",
		"bind_addr", cfg.ReportBindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"results_dir", cfg.ResultsDir,
		"evidence_dir", cfg.EvidenceDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	candidates, err := netutil.NextPorts(cfg.ReportBindAddr, 10)
	if err != nil {
		slog.Error("invalid bind address", "bind_addr", cfg.ReportBindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr, err := netutil.SelectBindAddr(cfg.ReportBindAddr, candidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.ReportBindAddr, "error", err)
		os.Exit(1)
	}

	store, err := artifact.NewStore(cfg.EvidenceDir)
	if err != nil {
		slog.Error("failed to open evidence store", "dir", cfg.EvidenceDir, "error", err)
		os.Exit(1)
	}

	h := api.NewServer(api.NewFileService(cfg.ResultsDir, store), nil)
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("reportserver listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("reportserver failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("reportserver shutdown failed", "error", err)
	}
}
