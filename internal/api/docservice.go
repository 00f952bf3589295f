package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The DocService is declared directly over well-known protobuf types.
// Optional "key" arguments travel as optional fields of a Struct, so an
// omitted key stays distinguishable from an empty one.
const docServiceName = "pyazdoc.v1.DocService"

// DocServiceServer is the server API for the DocService.
type DocServiceServer interface {
	GetCurrentKey(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	// SetCurrentKey takes {"key"?}; a missing key resets to the default.
	SetCurrentKey(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// GetDocValue takes {"key"?} and returns {"key", "found", "value"}.
	// value is null when the document was never written.
	GetDocValue(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SetDocValue takes {"value", "key"?}.
	SetDocValue(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteSlot(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// DocServiceDesc is the grpc.ServiceDesc for the DocService.
var DocServiceDesc = grpc.ServiceDesc{
	ServiceName: docServiceName,
	HandlerType: (*DocServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCurrentKey", Handler: unaryHandler("GetCurrentKey", DocServiceServer.GetCurrentKey)},
		{MethodName: "SetCurrentKey", Handler: unaryHandler("SetCurrentKey", DocServiceServer.SetCurrentKey)},
		{MethodName: "GetDocValue", Handler: unaryHandler("GetDocValue", DocServiceServer.GetDocValue)},
		{MethodName: "SetDocValue", Handler: unaryHandler("SetDocValue", DocServiceServer.SetDocValue)},
		{MethodName: "DeleteSlot", Handler: unaryHandler("DeleteSlot", DocServiceServer.DeleteSlot)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterDocServiceServer registers srv on s.
func RegisterDocServiceServer(s grpc.ServiceRegistrar, srv DocServiceServer) {
	s.RegisterService(&DocServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + docServiceName + "/" + name
}

func unaryHandler[Req, Resp any](name string, call func(DocServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DocClient is a typed client for the DocService.
type DocClient struct {
	cc grpc.ClientConnInterface
}

// NewDocClient returns a DocClient that calls the service over cc.
func NewDocClient(cc grpc.ClientConnInterface) *DocClient {
	return &DocClient{cc: cc}
}

// CurrentKey returns the current key.
func (c *DocClient) CurrentKey(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, fullMethod("GetCurrentKey"), &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// SetCurrentKey makes key the current key.
func (c *DocClient) SetCurrentKey(ctx context.Context, key string, opts ...grpc.CallOption) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"key": structpb.NewStringValue(key)}}
	return c.cc.Invoke(ctx, fullMethod("SetCurrentKey"), in, new(emptypb.Empty), opts...)
}

// ResetCurrentKey makes the default key current.
func (c *DocClient) ResetCurrentKey(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("SetCurrentKey"), &structpb.Struct{}, new(emptypb.Empty), opts...)
}

// DocValue returns the document of whatever key is current on the server.
func (c *DocClient) DocValue(ctx context.Context, opts ...grpc.CallOption) (string, bool, error) {
	return c.getDoc(ctx, &structpb.Struct{}, opts...)
}

// DocValueFor returns the document of key.
func (c *DocClient) DocValueFor(ctx context.Context, key string, opts ...grpc.CallOption) (string, bool, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"key": structpb.NewStringValue(key)}}
	return c.getDoc(ctx, in, opts...)
}

// SetDocValue stores value under whatever key is current on the server.
func (c *DocClient) SetDocValue(ctx context.Context, value string, opts ...grpc.CallOption) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{"value": structpb.NewStringValue(value)}}
	return c.cc.Invoke(ctx, fullMethod("SetDocValue"), in, new(emptypb.Empty), opts...)
}

// SetDocValueFor stores value as the document of key.
func (c *DocClient) SetDocValueFor(ctx context.Context, key, value string, opts ...grpc.CallOption) error {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":   structpb.NewStringValue(key),
		"value": structpb.NewStringValue(value),
	}}
	return c.cc.Invoke(ctx, fullMethod("SetDocValue"), in, new(emptypb.Empty), opts...)
}

// DeleteSlot removes a raw slot.
func (c *DocClient) DeleteSlot(ctx context.Context, name string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("DeleteSlot"), wrapperspb.String(name), new(emptypb.Empty), opts...)
}

func (c *DocClient) getDoc(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (string, bool, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetDocValue"), in, out, opts...); err != nil {
		return "", false, err
	}
	fields := out.GetFields()
	if !fields["found"].GetBoolValue() {
		return "", false, nil
	}
	return fields["value"].GetStringValue(), true, nil
}
