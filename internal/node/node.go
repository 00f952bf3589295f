// Package node runs a Raft-replicated slot store.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/heysubinoy/pyazdoc/internal/discovery"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/heysubinoy/pyazdoc/pkg/config"
	"github.com/heysubinoy/pyazdoc/pkg/kv"
)

const (
	announceEvery     = 3 * time.Second
	snapshotsRetained = 2
	transportPool     = 3
	transportTimeout  = 10 * time.Second
)

// Node owns the Raft instance, its on-disk state and the replicated store.
type Node struct {
	cfg       *config.Config
	raft      *raft.Raft
	store     *store.RaftStore
	logStore  *raftboltdb.BoltStore
	transport *raft.NetworkTransport
	discovery *discovery.Client
	logger    hclog.Logger
}

// Options configures New. Local is the replica that committed entries are
// applied to. Discovery may be nil, in which case the node neither
// announces itself nor asks to join.
type Options struct {
	Config    *config.Config
	Local     kv.Store
	Discovery *discovery.Client
	Logger    hclog.Logger
}

// New starts Raft for this node. With RaftLeader set and no prior state,
// it bootstraps a single-voter cluster.
func New(opts Options) (*Node, error) {
	cfg := opts.Config
	if err := cfg.RequireRaft(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(cfg.RaftData, 0o755); err != nil {
		return nil, fmt.Errorf("create raft dir: %w", err)
	}

	fsm := store.NewRaftStore(opts.Local, logger)

	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(cfg.NodeID)
	conf.Logger = logger.Named("raft")

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.RaftData, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("open raft log: %w", err)
	}
	snaps, err := raft.NewFileSnapshotStoreWithLogger(cfg.RaftData, snapshotsRetained, logger.Named("snapshots"))
	if err != nil {
		_ = logStore.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	transport, err := raft.NewTCPTransportWithLogger(cfg.RaftAddr, nil, transportPool, transportTimeout, logger.Named("transport"))
	if err != nil {
		_ = logStore.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.RaftAddr, err)
	}

	r, err := raft.NewRaft(conf, fsm, logStore, logStore, snaps, transport)
	if err != nil {
		_ = transport.Close()
		_ = logStore.Close()
		return nil, fmt.Errorf("start raft: %w", err)
	}
	fsm.Attach(r)

	n := &Node{
		cfg:       cfg,
		raft:      r,
		store:     fsm,
		logStore:  logStore,
		transport: transport,
		discovery: opts.Discovery,
		logger:    logger,
	}

	if cfg.RaftLeader {
		if err := n.bootstrap(snaps); err != nil {
			_ = n.Close()
			return nil, err
		}
	}
	return n, nil
}

func (n *Node) bootstrap(snaps raft.SnapshotStore) error {
	hasState, err := raft.HasExistingState(n.logStore, n.logStore, snaps)
	if err != nil {
		return fmt.Errorf("inspect raft state: %w", err)
	}
	if hasState {
		n.logger.Info("existing raft state found, skipping bootstrap")
		return nil
	}
	n.logger.Info("bootstrapping cluster", "id", n.cfg.NodeID, "addr", n.transport.LocalAddr())
	err = n.raft.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(n.cfg.NodeID), Address: n.transport.LocalAddr()}},
	}).Error()
	if err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// Raft returns the Raft instance, for leader checks in the API layer.
func (n *Node) Raft() *raft.Raft {
	return n.raft
}

// Store returns the replicated slot store.
func (n *Node) Store() *store.RaftStore {
	return n.store
}

// Addr returns the advertised Raft address.
func (n *Node) Addr() string {
	return string(n.transport.LocalAddr())
}

// Run keeps discovery up to date until ctx is done: the leader announces
// itself and admits join requests, a node without a leader asks to join.
func (n *Node) Run(ctx context.Context) {
	if n.discovery == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(announceEvery)
	defer ticker.Stop()
	for {
		n.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (n *Node) tick(ctx context.Context) {
	if n.raft.State() == raft.Leader {
		if err := n.announce(ctx); err != nil {
			n.logger.Warn("announce failed", "error", err)
		}
		if err := n.admitJoins(ctx); err != nil {
			n.logger.Warn("admitting joins failed", "error", err)
		}
		return
	}
	if leader, _ := n.raft.LeaderWithID(); leader == "" {
		err := n.discovery.RequestJoin(ctx, discovery.JoinRequest{ID: n.cfg.NodeID, Addr: n.Addr()})
		if err != nil {
			n.logger.Warn("join request failed", "error", err)
		}
	}
}

func (n *Node) announce(ctx context.Context) error {
	term, _ := strconv.ParseUint(n.raft.Stats()["term"], 10, 64)
	return n.discovery.PublishLeader(ctx, discovery.LeaderInfo{
		ID:       n.cfg.NodeID,
		Addr:     n.Addr(),
		HTTPAddr: n.cfg.HTTPAddr,
		GRPCAddr: n.cfg.GRPCAddr,
		Term:     term,
	})
}

func (n *Node) admitJoins(ctx context.Context) error {
	requests, err := n.discovery.JoinRequests(ctx)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}
	future := n.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return err
	}
	members := map[raft.ServerID]raft.ServerAddress{}
	for _, srv := range future.Configuration().Servers {
		members[srv.ID] = srv.Address
	}

	for _, jr := range requests {
		id, addr := raft.ServerID(jr.ID), raft.ServerAddress(jr.Addr)
		if members[id] != addr {
			n.logger.Info("adding voter", "id", jr.ID, "addr", jr.Addr)
			if err := n.raft.AddVoter(id, addr, 0, 0).Error(); err != nil {
				n.logger.Warn("add voter failed", "id", jr.ID, "error", err)
				continue
			}
		}
		if err := n.discovery.DeleteJoinRequest(ctx, jr.ID); err != nil {
			n.logger.Warn("clearing join request failed", "id", jr.ID, "error", err)
		}
	}
	return nil
}

// Close shuts down Raft and releases its files and listener.
func (n *Node) Close() error {
	var errs []error
	if err := n.raft.Shutdown().Error(); err != nil {
		errs = append(errs, err)
	}
	if err := n.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := n.logStore.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
