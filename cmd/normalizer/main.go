// Command normalizer runs the pipeline once and prints the integrity checks and reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/receipt-normalizer/internal/app"
	"github.com/ignite/receipt-normalizer/internal/config"
	"github.com/ignite/receipt-normalizer/internal/pipeline"
	"github.com/ignite/receipt-normalizer/internal/pkg/distlock"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/quality"
	"github.com/ignite/receipt-normalizer/internal/reports"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults and env overrides apply without one)")
	dryRun := flag.Bool("dry-run", false, "clean and check in memory without loading the store")
	summaryTemplate := flag.String("summary-template", "", "Liquid template file for the run summary")
	failOnIssues := flag.Bool("fail-on-issues", false, "exit non-zero when any integrity check counts a defect")
	flag.Parse()

	os.Exit(run(*configPath, *dryRun, *summaryTemplate, *failOnIssues))
}

func run(configPath string, dryRun bool, summaryTemplate string, failOnIssues bool) int {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	app.ConfigureLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{DryRun: dryRun})
	if err != nil {
		logger.Error("normalizer: startup failed", "error", err.Error())
		return 1
	}
	defer a.Close()

	summary, runErr := a.Runner.Run(ctx)
	if errors.Is(runErr, distlock.ErrLocked) || errors.Is(runErr, pipeline.ErrRunInProgress) {
		logger.Error("normalizer: another run holds the lock", "error", runErr.Error())
		return 3
	}
	if summary == nil {
		logger.Error("normalizer: run did not start", "error", runErr.Error())
		return 1
	}

	source := ""
	if summaryTemplate != "" {
		b, err := os.ReadFile(summaryTemplate)
		if err != nil {
			logger.Error("normalizer: read summary template", "error", err.Error())
			return 1
		}
		source = string(b)
	}
	text, err := reports.NewSummaryRenderer(source).Render(summary.Bindings())
	if err != nil {
		logger.Error("normalizer: render summary", "error", err.Error())
	} else {
		fmt.Print(text)
	}
	for _, r := range summary.Reports {
		if err := reports.Render(os.Stdout, r); err != nil {
			logger.Error("normalizer: write report", "error", err.Error())
		}
	}

	switch {
	case runErr != nil:
		return 1
	case quality.Failed(summary.Checks):
		return 1
	case failOnIssues && quality.Total(summary.Checks) > 0:
		return 4
	}
	return 0
}
