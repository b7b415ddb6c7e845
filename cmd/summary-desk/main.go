package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakkerme/summary-desk/internal/config"
	"github.com/bakkerme/summary-desk/internal/desk"
	"github.com/bakkerme/summary-desk/internal/observability/otelx"
	"github.com/bakkerme/summary-desk/internal/server"
	"github.com/bakkerme/summary-desk/internal/summarizer/impl"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	addr := flag.String("addr", cfg.Server.Addr, "listen address")
	backend := flag.String("summarizer-url", cfg.Summarizer.BaseURL, "base url of the summarization service")
	stalePolicy := flag.String("stale-policy", cfg.Desk.StalePolicy, "last-response-wins or latest-request-wins")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg.Server.Addr = *addr
	cfg.Summarizer.BaseURL = *backend
	cfg.Desk.StalePolicy = *stalePolicy
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelx.Init(ctx, logger, cfg.OTel, server.Version)
	if err != nil {
		logger.Error("otel init failed, tracing disabled", "error", err)
		cfg.OTel.Enabled = false
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
	}()

	client := impl.NewClient(cfg.Summarizer.HTTPTimeout, cfg.Summarizer.UserAgent, cfg.Summarizer.BaseURL)
	d := desk.New(client, logger, desk.Config{
		StalePolicy:    desk.StalePolicy(cfg.Desk.StalePolicy),
		RequestTimeout: cfg.Summarizer.HTTPTimeout,
		SessionIdleTTL: cfg.Desk.SessionIdleTTL,
		SweepSchedule:  cfg.Desk.SweepSchedule,
	})

	srv, err := server.NewServer(cfg, d, client, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Run(gctx)
	})
	g.Go(func() error {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("summary desk stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("summary desk stopped")
}
