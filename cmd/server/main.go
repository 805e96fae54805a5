package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/receipt-normalizer/internal/api"
	"github.com/ignite/receipt-normalizer/internal/app"
	"github.com/ignite/receipt-normalizer/internal/config"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	runOnStart := flag.Bool("run-on-start", false, "start a pipeline run as soon as the server is up")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		logger.Error("server: load config", "error", err.Error())
		os.Exit(2)
	}
	app.ConfigureLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		logger.Error("server: startup failed", "error", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	health := api.NewHealthChecker(a.Store.DB(), a.Redis, a.Runner.Running)
	server := api.NewServer(api.NewHandlers(ctx, a.Runner, health), cfg.Server.AllowedOrigins)

	if *runOnStart {
		if err := a.Runner.Start(ctx); err != nil {
			logger.Warn("server: initial run not started", "error", err.Error())
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("server: listening", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server: listen", "error", err.Error())
			done <- syscall.SIGTERM
		}
	}()

	<-done
	logger.Info("server: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server: shutdown", "error", err.Error())
	}
	logger.Info("server: stopped")
}
