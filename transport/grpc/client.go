package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/relab/quorumkv/transport"
)

// Client is a transport.Replica that forwards every operation to one remote
// replica over a gRPC connection. A gRPC status error from an RPC surfaces
// as the call's err return, which the coordinators count as a missing
// response; application-level refusals arrive as ok=false in the body.
type Client struct {
	conn *grpc.ClientConn
}

var _ transport.Replica = (*Client)(nil)

// Dial connects to the replica at target (host:port). The connection is
// insecure and uses the JSON codec; extra dial options may be appended,
// e.g. a context dialer for in-memory listeners in tests.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Read(ctx context.Context, key string, clientTS int64, clientID int32) ([]byte, int64, bool, error) {
	resp := new(ReadResponse)
	err := c.conn.Invoke(ctx, methodRead, &ReadRequest{Key: key, TS: clientTS, ClientID: clientID}, resp)
	if err != nil {
		return nil, 0, false, err
	}
	return resp.Value, resp.TS, resp.OK, nil
}

func (c *Client) Write(ctx context.Context, key string, value []byte, clientTS int64, clientID int32) (int64, bool, error) {
	resp := new(WriteResponse)
	err := c.conn.Invoke(ctx, methodWrite, &WriteRequest{Key: key, Value: value, TS: clientTS, ClientID: clientID}, resp)
	if err != nil {
		return 0, false, err
	}
	return resp.TS, resp.OK, nil
}

func (c *Client) AcquireLock(ctx context.Context, key string, clientID int32) (bool, int64, error) {
	resp := new(AcquireLockResponse)
	err := c.conn.Invoke(ctx, methodAcquireLock, &LockRequest{Key: key, ClientID: clientID}, resp)
	if err != nil {
		return false, 0, err
	}
	return resp.Granted, resp.TS, nil
}

func (c *Client) ReleaseLock(ctx context.Context, key string, clientID int32) (bool, error) {
	resp := new(ReleaseLockResponse)
	err := c.conn.Invoke(ctx, methodReleaseLock, &LockRequest{Key: key, ClientID: clientID}, resp)
	if err != nil {
		return false, err
	}
	return resp.OK, nil
}
