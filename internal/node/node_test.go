package node

import (
	"context"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/internal/discovery"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/heysubinoy/pyazdoc/pkg/config"
	"github.com/heysubinoy/pyazdoc/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		NodeID:     "node-1",
		RaftAddr:   "127.0.0.1:0",
		RaftData:   filepath.Join(t.TempDir(), "raft"),
		RaftLeader: true,
		GRPCAddr:   ":9090",
		HTTPAddr:   ":8080",
	}
}

// freeAddr reserves a loopback port so a node can restart on the same address.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitForLeader(t *testing.T, n *Node) {
	t.Helper()
	require.Eventually(t, func() bool {
		return n.Raft().State() == raft.Leader
	}, 10*time.Second, 20*time.Millisecond)
}

func TestNewRequiresRaftConfig(t *testing.T) {
	_, err := New(Options{Config: &config.Config{}, Local: store.NewMemStore()})
	assert.Error(t, err)
}

func TestBootstrappedNodeStoresDocuments(t *testing.T) {
	local := store.NewMemStore()
	n, err := New(Options{Config: testConfig(t), Local: local})
	require.NoError(t, err)
	defer n.Close()
	waitForLeader(t, n)

	docs := docstore.New(n.Store())
	require.NoError(t, docs.SetCurrentKey("alpha"))
	require.NoError(t, docs.SetDocValue("hello"))

	v, found, err := local.Get("alpha-demo-value")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)
}

func TestRestartKeepsRaftState(t *testing.T) {
	cfg := testConfig(t)
	cfg.RaftAddr = freeAddr(t)

	local := store.NewMemStore()
	n, err := New(Options{Config: cfg, Local: local})
	require.NoError(t, err)
	waitForLeader(t, n)
	require.NoError(t, docstore.New(n.Store()).SetDocValueFor("alpha", "persisted"))
	require.NoError(t, n.Close())

	// the replica is rebuilt from the raft log on restart
	local = store.NewMemStore()
	n, err = New(Options{Config: cfg, Local: local})
	require.NoError(t, err)
	defer n.Close()
	waitForLeader(t, n)

	require.Eventually(t, func() bool {
		v, found, _ := local.Get("alpha-demo-value")
		return found && v == "persisted"
	}, 10*time.Second, 20*time.Millisecond)
}

func TestLeaderAnnouncesItself(t *testing.T) {
	reg := discovery.NewRegistry(nil)
	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()
	client := discovery.NewClient(srv.URL, srv.Client())

	n, err := New(Options{Config: testConfig(t), Local: store.NewMemStore(), Discovery: client})
	require.NoError(t, err)
	defer n.Close()
	waitForLeader(t, n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.Eventually(t, func() bool {
		leader, err := client.Leader(context.Background())
		return err == nil && leader.ID == "node-1" && leader.Addr == n.Addr()
	}, 5*time.Second, 20*time.Millisecond)

	// a stale request for a member that is already present is just cleared
	require.NoError(t, client.RequestJoin(context.Background(), discovery.JoinRequest{ID: "node-1", Addr: n.Addr()}))
	require.Eventually(t, func() bool {
		list, err := client.JoinRequests(context.Background())
		return err == nil && len(list) == 0
	}, 10*time.Second, 50*time.Millisecond)
}
