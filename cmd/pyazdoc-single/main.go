package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/heysubinoy/pyazdoc/internal/logging"
	"github.com/heysubinoy/pyazdoc/internal/server"
	"github.com/heysubinoy/pyazdoc/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.New("pyazdoc", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New("pyazdoc", cfg.LogLevel)

	slots, closeSlots, err := server.OpenLocal(cfg)
	if err != nil {
		logger.Error("failed to open slot store", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeSlots()
	logger.Info("slot store ready", "backend", cfg.Backend, "quota_bytes", cfg.QuotaBytes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, server.Options{Slots: slots, Logger: logger}); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
