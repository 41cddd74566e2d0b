package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"

	"github.com/prasetyadi/statmerge/internal/app"
	"github.com/prasetyadi/statmerge/internal/config"
	"github.com/prasetyadi/statmerge/internal/observability"
	"github.com/prasetyadi/statmerge/internal/platform/logging"
	"github.com/prasetyadi/statmerge/internal/usecase"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: ingest <stats|fantasy|all>")
		return 2
	}
	command := args[0]
	switch command {
	case "stats", "fantasy", "all":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, want stats, fantasy or all\n", command)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}

	logger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(logger)
	defer logger.Sync() //nolint:errcheck

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		return 1
	}
	defer pipeline.Close() //nolint:errcheck

	exit := 0
	if command == "stats" || command == "all" {
		if code := runIngest(ctx, logger, "stats", pipeline.Service.IngestStats); code != 0 {
			exit = code
		}
	}
	if exit == 0 && (command == "fantasy" || command == "all") {
		if code := runIngest(ctx, logger, "fantasy", pipeline.Service.IngestFantasy); code != 0 {
			exit = code
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("uptrace shutdown failed", "error", err)
	}
	if err := stopProfiler(); err != nil {
		logger.Warn("pyroscope shutdown failed", "error", err)
	}

	return exit
}

func runIngest(ctx context.Context, logger *logging.Logger, name string, fn func(context.Context) (usecase.RunReport, error)) int {
	started := time.Now()
	report, err := fn(ctx)
	if err != nil {
		logger.Error("ingest run failed",
			"run", name,
			"duration", time.Since(started).String(),
			"error", err,
		)
		return 1
	}

	logger.Info("ingest run finished",
		"run", name,
		"duration", time.Since(started).String(),
		"partial", report.Partial(),
	)
	printReport(name, report)
	return 0
}

// printReport writes the run report to stdout so schedulers can capture
// it separately from the structured logs on stderr-bound sinks.
func printReport(name string, report usecase.RunReport) {
	out, err := sonic.MarshalIndent(map[string]any{
		"run":    name,
		"report": report,
	}, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode report:", err)
		return
	}
	fmt.Println(string(out))
}
