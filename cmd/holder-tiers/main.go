// Command holder-tiers runs the badge or leaderboard pipeline once and exits.
//
// Exit status is 0 on success, 2 when a holder listing or identity lookup
// exhausted its retries (safe to rerun later) and 1 for anything else.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"holder-tiers/internal/app"
	"holder-tiers/internal/config"
	"holder-tiers/internal/domain"
	"holder-tiers/internal/logging"
	"holder-tiers/internal/pipeline"
	"holder-tiers/internal/reporting"
)

const exitRetryFailure = 2

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("holder-tiers", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "holder-tiers.yaml", "configuration file")
	envFile := flags.String("env-file", ".env", "KEY=VALUE file exported before the configuration is read")
	useMemory := flags.Bool("use-memory", false, "keep result history in memory instead of the configured databases")
	outputDir := flags.String("output-dir", "", "override output.dir")
	runID := flags.String("run-id", "", "run identifier (default: random UUID)")
	printReport := flags.Bool("print", false, "write the markdown report to stdout")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	logger := logging.Must(cfg.Log).Named("holder-tiers")
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{UseMemory: *useMemory, Logger: logger})
	if err != nil {
		logger.Error("build pipeline", zap.Error(err))
		return 1
	}
	defer a.Close()

	out, err := a.Runner.Run(ctx, domain.RunContext{RunID: *runID, StartedAt: time.Now().UTC()})
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		if errors.Is(err, pipeline.ErrRetryFailure) {
			return exitRetryFailure
		}
		return 1
	}

	for _, f := range out.Files {
		logger.Info("published", zap.String("file", f))
	}
	if *printReport {
		fmt.Print(reporting.RenderMarkdown(out.Report))
	}
	return 0
}
