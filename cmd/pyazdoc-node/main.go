package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/pyazdoc/internal/discovery"
	"github.com/heysubinoy/pyazdoc/internal/logging"
	"github.com/heysubinoy/pyazdoc/internal/node"
	"github.com/heysubinoy/pyazdoc/internal/server"
	"github.com/heysubinoy/pyazdoc/internal/store"
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
	logger := logging.New("pyazdoc", cfg.LogLevel).With("node", cfg.NodeID)

	if err := run(cfg, logger); err != nil {
		logger.Error("node stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger hclog.Logger) error {
	local, closeLocal, err := server.OpenLocal(cfg)
	if err != nil {
		return err
	}
	defer closeLocal()

	n, err := node.New(node.Options{
		Config:    cfg,
		Local:     local,
		Discovery: discovery.NewClient(cfg.MandiAddr, nil),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer n.Close()
	logger.Info("raft started", "addr", n.Addr(), "bootstrap", cfg.RaftLeader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go n.Run(ctx)

	quota, _ := local.(*store.QuotaStore)
	return server.Run(ctx, cfg, server.Options{
		Slots:  n.Store(),
		Raft:   n.Raft(),
		Quota:  quota,
		Logger: logger,
	})
}
