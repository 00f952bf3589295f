package api

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/heysubinoy/pyazdoc/pkg/docstore"
	"github.com/heysubinoy/pyazdoc/pkg/kv"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCServer implements DocServiceServer over a document store. When Raft
// is set, every call on a follower fails with FailedPrecondition so that
// reads never serve a replica that may lag the leader.
type GRPCServer struct {
	Docs   *docstore.Store
	Slots  kv.Store
	Raft   *raft.Raft // nil for a single node
	Logger hclog.Logger
}

var _ DocServiceServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given slot store.
// raftNode may be nil.
func NewGRPCServer(slots kv.Store, raftNode *raft.Raft, logger hclog.Logger) *GRPCServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GRPCServer{
		Docs:   docstore.New(slots),
		Slots:  slots,
		Raft:   raftNode,
		Logger: logger.Named("grpc"),
	}
}

// GetCurrentKey returns the current key.
func (s *GRPCServer) GetCurrentKey(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	key, err := s.Docs.CurrentKey()
	if err != nil {
		return nil, s.storeError(err, "read current key")
	}
	return wrapperspb.String(key), nil
}

// SetCurrentKey sets, or with no key resets, the current key.
func (s *GRPCServer) SetCurrentKey(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	key, ok, err := optionalString(req, "key")
	if err != nil {
		return nil, err
	}
	if ok {
		err = s.Docs.SetCurrentKey(key)
	} else {
		err = s.Docs.ResetCurrentKey()
	}
	if err != nil {
		return nil, s.storeError(err, "set current key")
	}
	return &emptypb.Empty{}, nil
}

// GetDocValue returns the document of the given or current key.
func (s *GRPCServer) GetDocValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	key, ok, err := optionalString(req, "key")
	if err != nil {
		return nil, err
	}
	if !ok {
		if key, err = s.Docs.CurrentKey(); err != nil {
			return nil, s.storeError(err, "read current key")
		}
	}

	value, found, err := s.Docs.DocValueFor(key)
	if err != nil {
		return nil, s.storeError(err, "read document")
	}

	resp := &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(key),
		"found": structpb.NewBoolValue(found),
		"value": structpb.NewNullValue(),
	}}
	if found {
		resp.Fields["value"] = structpb.NewStringValue(value)
	}
	return resp, nil
}

// SetDocValue stores a document under the given or current key.
func (s *GRPCServer) SetDocValue(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	value, ok, err := optionalString(req, "value")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}
	key, ok, err := optionalString(req, "key")
	if err != nil {
		return nil, err
	}
	if ok {
		err = s.Docs.SetDocValueFor(key, value)
	} else {
		err = s.Docs.SetDocValue(value)
	}
	if err != nil {
		return nil, s.storeError(err, "write document")
	}
	return &emptypb.Empty{}, nil
}

// DeleteSlot removes a raw slot.
func (s *GRPCServer) DeleteSlot(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "slot name is required")
	}
	if err := s.Slots.Delete(req.GetValue()); err != nil {
		return nil, s.storeError(err, "delete slot")
	}
	return &emptypb.Empty{}, nil
}

// requireLeader rejects calls on a raft follower, naming the leader when
// one is known.
func (s *GRPCServer) requireLeader() error {
	if s.Raft == nil || s.Raft.State() == raft.Leader {
		return nil
	}
	if addr, id := s.Raft.LeaderWithID(); addr != "" {
		return status.Errorf(codes.FailedPrecondition, "not the leader; leader is %s at %s", id, addr)
	}
	return status.Error(codes.FailedPrecondition, "not the leader; no leader elected")
}

func (s *GRPCServer) storeError(err error, action string) error {
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost):
		return status.Error(codes.FailedPrecondition, "not the leader")
	default:
		s.Logger.Error("store failure", "action", action, "error", err)
		return status.Error(codes.Internal, "failed to "+action)
	}
}

// optionalString reads a string field. A missing or null field is absent.
func optionalString(req *structpb.Struct, field string) (string, bool, error) {
	v, ok := req.GetFields()[field]
	if !ok {
		return "", false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", false, nil
	case *structpb.Value_StringValue:
		return k.StringValue, true, nil
	default:
		return "", false, status.Errorf(codes.InvalidArgument, "%s must be a string", field)
	}
}
