// Package main runs the pipeline on a schedule and serves its results:
//   - Scheduler: one run at start, then every server.interval (server.retry_interval after a retry failure)
//   - HTTP: health, metrics, status, manual trigger and published results
//   - WebSocket: pushes every published badge result or leaderboard
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"holder-tiers/internal/app"
	"holder-tiers/internal/config"
	"holder-tiers/internal/logging"
	"holder-tiers/internal/server"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "holder-tiers.yaml", "configuration file")
	envFile := flags.String("env-file", ".env", "KEY=VALUE file exported before the configuration is read")
	useMemory := flags.Bool("use-memory", false, "keep result history in memory instead of the configured databases")
	listen := flags.String("listen", "", "override server.listen")
	interval := flags.Duration("interval", 0, "override server.interval")
	flags.Parse(os.Args[1:])

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *interval > 0 {
		cfg.Server.Interval = *interval
	}

	logger := logging.Must(cfg.Log).Named("server")
	defer logger.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub(logger.Named("ws"))
	a, err := app.New(ctx, cfg, app.Options{UseMemory: *useMemory, Notifier: hub, Logger: logger})
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}
	defer a.Close()

	sched := server.NewScheduler(server.SchedulerOptions{
		Runner:        a.Runner,
		Interval:      cfg.Server.Interval,
		RetryInterval: cfg.Server.RetryInterval,
		Metrics:       a.Metrics,
		Logger:        logger.Named("scheduler"),
	})
	srv := server.New(server.Options{
		Project:   cfg.Project,
		Scheduler: sched,
		Results:   a.Results,
		Snapshots: a.Snapshots,
		Hub:       hub,
		Ready:     a.Ready,
		Logger:    logger.Named("http"),
	})

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// A second signal or a stuck shutdown forces exit.
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Server.Listen) })
	g.Go(func() error { return sched.Start(gctx) })

	err = g.Wait()
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
