// Package server wires slot stores to the HTTP and gRPC surfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/internal/api"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/heysubinoy/pyazdoc/pkg/config"
	"github.com/heysubinoy/pyazdoc/pkg/kv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

// OpenLocal opens the local slot store selected by cfg, wrapped in a
// QuotaStore when a quota is configured. The returned close function
// releases the backend.
func OpenLocal(cfg *config.Config) (kv.Store, func() error, error) {
	var (
		slots   kv.Store
		closeFn = func() error { return nil }
	)
	switch cfg.Backend {
	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		bolt, err := store.OpenBoltStore(cfg.DataPath)
		if err != nil {
			return nil, nil, err
		}
		slots, closeFn = bolt, bolt.Close
	case config.BackendMemory, "":
		slots = store.NewMemStore()
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.QuotaBytes > 0 {
		q, err := store.NewQuotaStore(slots, cfg.QuotaBytes)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		slots = q
	}
	return slots, closeFn, nil
}

// Options configures Serve.
type Options struct {
	Slots    kv.Store
	Raft     *raft.Raft        // nil for a single node
	Quota    *store.QuotaStore // reported at /metrics; found in Slots when nil
	HTTPPort string            // port advertised in leader redirects
	Logger   hclog.Logger
}

// Run listens on the addresses in cfg and calls Serve.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	if opts.HTTPPort == "" {
		if _, port, err := net.SplitHostPort(cfg.HTTPAddr); err == nil {
			opts.HTTPPort = port
		}
	}
	return Serve(ctx, httpLis, grpcLis, opts)
}

// Serve runs the HTTP and gRPC servers until ctx is done or either fails.
// Slot operations from both surfaces are counted by one InstrumentedStore,
// reported at /metrics.
func Serve(ctx context.Context, httpLis, grpcLis net.Listener, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	slots := store.NewInstrumentedStore(opts.Slots)
	quota := opts.Quota
	if quota == nil {
		quota, _ = opts.Slots.(*store.QuotaStore)
	}

	httpSrv := api.NewServer(slots, opts.Raft, logger)
	if opts.HTTPPort != "" {
		httpSrv.HTTPPort = opts.HTTPPort
	}
	mux := http.NewServeMux()
	httpSrv.RegisterRoutes(mux)
	mux.HandleFunc("/metrics", api.MetricsHandler(slots, quota))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	gs := grpc.NewServer()
	api.RegisterDocServiceServer(gs, api.NewGRPCServer(slots, opts.Raft, logger))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := hs.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := gs.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := hs.Shutdown(shutdownCtx)
		gs.GracefulStop()
		return err
	})
	return g.Wait()
}
