package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heysubinoy/pyazdoc/internal/discovery"
	"github.com/heysubinoy/pyazdoc/internal/logging"
)

/*
mandi is a soft-state discovery service for Raft joins.
It is NOT authoritative and NOT part of Raft correctness.
*/

func main() {
	addr := ":7000"
	if v := os.Getenv("MANDI_LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger := logging.New("mandi", os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := discovery.NewRegistry(logger)
	go registry.CleanupLoop(ctx)

	srv := &http.Server{Addr: addr, Handler: registry.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mandi listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("mandi stopped", "error", err)
		os.Exit(1)
	}
}
