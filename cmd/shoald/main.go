// Package main is the entry point for the shoald storage abstraction layer
// daemon: it wires the Index Gateway, Object Gateway, Metadata Cache,
// cluster invalidation transport, and GC queue into one internal/sal.Store,
// then serves that Store's liveness/readiness/metrics surface. The S3 wire
// protocol itself is out of scope -- a front end is built against
// internal/sal directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shoalstore/shoalstore/internal/bootstrap"
	"github.com/shoalstore/shoalstore/internal/config"
	"github.com/shoalstore/shoalstore/internal/healthsrv"
	"github.com/shoalstore/shoalstore/internal/logging"
	"github.com/shoalstore/shoalstore/internal/metrics"
)

func main() {
	configPath := flag.String("config", "shoalstore.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override health/metrics listening port (default: from config or 9100)")
	host := flag.String("host", "", "override health/metrics listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "log format: text, json")
	shutdownTimeout := flag.Int("shutdown-timeout", 30, "graceful shutdown timeout in seconds")
	flag.Parse()

	logging.Setup(*logLevel, *logFormat, os.Stderr)
	metrics.Register()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	// Crash-only design: every startup is recovery. No special recovery
	// mode -- steps that would normally be "recovery" run on every boot:
	//  - local index/object backends replay their on-disk log on open
	//  - the upload reaper below catches multipart uploads abandoned by a
	//    previous crash, the same way a fresh boot catches them

	built, closeStore, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{StartCluster: true, StartGC: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap storage abstraction layer: %v\n", err)
		os.Exit(1)
	}
	store := built.Sal

	reaperStop := make(chan struct{})
	var reaperDone chan struct{}
	if cfg.Multipart.ReapTTLSeconds > 0 {
		reaperDone = make(chan struct{})
		go runUploadReaper(store, built.Index, cfg.Multipart.ReapTTLSeconds, reaperStop, reaperDone)
		slog.Info("upload reaper started", "ttl_seconds", cfg.Multipart.ReapTTLSeconds)
	}

	health := healthsrv.New()
	health.SetReady(true)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("shoald listening", "addr", addr)
		if err := health.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
		health.SetReady(false)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*shutdownTimeout)*time.Second)
		defer cancel()

		close(reaperStop)
		if reaperDone != nil {
			<-reaperDone
		}

		if err := health.Shutdown(ctx); err != nil {
			slog.Error("health server shutdown error", "error", err)
		}
		if err := closeStore(); err != nil {
			slog.Error("store finalize error", "error", err)
		}
		slog.Info("shoald stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
