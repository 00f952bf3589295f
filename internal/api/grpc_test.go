package api

import (
	"context"
	"net"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T, srv DocServiceServer) *DocClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterDocServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewDocClient(conn)
}

func TestDocServiceScenario(t *testing.T) {
	mem := store.NewMemStore()
	client := newTestClient(t, NewGRPCServer(mem, nil, nil))
	ctx := context.Background()

	key, err := client.CurrentKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", key)

	_, found, err := client.DocValue(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetCurrentKey(ctx, "alpha"))
	require.NoError(t, client.SetDocValue(ctx, "hello"))

	v, _, _ := mem.Get("alpha-demo-value")
	assert.Equal(t, "hello", v)

	v, found, err = client.DocValue(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)

	v, found, err = client.DocValueFor(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", v)

	_, found, err = client.DocValueFor(ctx, "beta")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetDocValueFor(ctx, "beta", ""))
	v, found, err = client.DocValueFor(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	require.NoError(t, client.ResetCurrentKey(ctx))
	key, err = client.CurrentKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", key)

	require.NoError(t, client.DeleteSlot(ctx, "alpha-demo-value"))
	_, found, err = client.DocValueFor(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDocServiceErrors(t *testing.T) {
	q, err := store.NewQuotaStore(store.NewMemStore(), 20)
	require.NoError(t, err)
	client := newTestClient(t, NewGRPCServer(q, nil, nil))
	ctx := context.Background()

	err = client.SetDocValueFor(ctx, "alpha", "this does not fit in twenty bytes")
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	err = client.DeleteSlot(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCServerValidatesFields(t *testing.T) {
	srv := NewGRPCServer(store.NewMemStore(), nil, nil)
	ctx := context.Background()

	_, err := srv.SetDocValue(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = srv.SetCurrentKey(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"key": structpb.NewNumberValue(7),
	}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// null key means the current key
	resp, err := srv.GetDocValue(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"key": structpb.NewNullValue(),
	}})
	require.NoError(t, err)
	assert.Equal(t, "default", resp.GetFields()["key"].GetStringValue())
	assert.False(t, resp.GetFields()["found"].GetBoolValue())
	_, isNull := resp.GetFields()["value"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}

func TestDocServiceRejectsFollowerReads(t *testing.T) {
	conf := raft.DefaultConfig()
	conf.LocalID = "follower"
	conf.Logger = hclog.NewNullLogger()
	logs := raft.NewInmemStore()
	_, trans := raft.NewInmemTransport("")
	r, err := raft.NewRaft(conf, store.NewRaftStore(store.NewMemStore(), nil), logs, logs, raft.NewInmemSnapshotStore(), trans)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown().Error() })

	mem := store.NewMemStore()
	require.NoError(t, mem.Set("demo-key", "stale"))
	client := newTestClient(t, NewGRPCServer(mem, r, nil))
	ctx := context.Background()

	_, err = client.CurrentKey(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, _, err = client.DocValueFor(ctx, "stale")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
