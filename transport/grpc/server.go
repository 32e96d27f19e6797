package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/relab/quorumkv/transport"
)

// replicaService is the handler surface the hand-written ServiceDesc
// dispatches to; it matches the shape protoc-gen-go-grpc would emit for the
// wire contract.
type replicaService interface {
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
	AcquireLock(ctx context.Context, req *LockRequest) (*AcquireLockResponse, error)
	ReleaseLock(ctx context.Context, req *LockRequest) (*ReleaseLockResponse, error)
}

// server adapts a transport.Replica (typically a local.ABD or local.Blocking
// store adapter) to the wire messages. Application-level refusals travel as
// ok=false in the response body, never as gRPC status errors.
type server struct {
	replica transport.Replica
	logger  *slog.Logger
}

// Register installs the replica service on srv, backed by replica. A nil
// logger defaults to slog.Default().
func Register(srv *grpc.Server, replica transport.Replica, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	srv.RegisterService(&serviceDesc, &server{replica: replica, logger: logger})
}

func (s *server) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	value, ts, ok, err := s.replica.Read(ctx, req.Key, req.TS, req.ClientID)
	if err != nil {
		return nil, err
	}
	return &ReadResponse{Value: value, TS: ts, OK: ok}, nil
}

func (s *server) Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error) {
	ts, ok, err := s.replica.Write(ctx, req.Key, req.Value, req.TS, req.ClientID)
	if err != nil {
		return nil, err
	}
	return &WriteResponse{OK: ok, TS: ts}, nil
}

func (s *server) AcquireLock(ctx context.Context, req *LockRequest) (*AcquireLockResponse, error) {
	granted, ts, err := s.replica.AcquireLock(ctx, req.Key, req.ClientID)
	if err != nil {
		return nil, err
	}
	return &AcquireLockResponse{Granted: granted, TS: ts}, nil
}

func (s *server) ReleaseLock(ctx context.Context, req *LockRequest) (*ReleaseLockResponse, error) {
	ok, err := s.replica.ReleaseLock(ctx, req.Key, req.ClientID)
	if err != nil {
		return nil, err
	}
	return &ReleaseLockResponse{OK: ok}, nil
}

func readHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaService).Read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRead}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaService).Read(ctx, req.(*ReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func writeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WriteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaService).Write(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodWrite}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaService).Write(ctx, req.(*WriteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func acquireLockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaService).AcquireLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAcquireLock}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaService).AcquireLock(ctx, req.(*LockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func releaseLockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicaService).ReleaseLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReleaseLock}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicaService).ReleaseLock(ctx, req.(*LockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*replicaService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Read", Handler: readHandler},
		{MethodName: "Write", Handler: writeHandler},
		{MethodName: "AcquireLock", Handler: acquireLockHandler},
		{MethodName: "ReleaseLock", Handler: releaseLockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quorumkv/replica",
}
