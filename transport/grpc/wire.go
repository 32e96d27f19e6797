// Package grpc binds the replica transport contract to
// google.golang.org/grpc. The wire messages are plain Go structs carried by
// a JSON codec registered under the "json" content subtype, and the service
// is registered through a hand-written grpc.ServiceDesc, so no generated
// protobuf bindings are involved.
package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// ServiceName is the fully qualified gRPC service name replicas register
// under.
const ServiceName = "quorumkv.Replica"

const (
	methodRead        = "/" + ServiceName + "/Read"
	methodWrite       = "/" + ServiceName + "/Write"
	methodAcquireLock = "/" + ServiceName + "/AcquireLock"
	methodReleaseLock = "/" + ServiceName + "/ReleaseLock"
)

// ReadRequest asks a replica for its current cell for Key. TS is the
// client's logical clock reading; ClientID identifies the caller to a
// lease-gated replica and is zero for the wait-free protocol.
type ReadRequest struct {
	Key      string `json:"key"`
	TS       int64  `json:"ts,omitempty"`
	ClientID int32  `json:"client_id,omitempty"`
}

// ReadResponse carries the replica's cell. OK is false only when a
// lease-gated replica refuses the read.
type ReadResponse struct {
	Value []byte `json:"value,omitempty"`
	TS    int64  `json:"ts"`
	OK    bool   `json:"ok"`
}

// WriteRequest installs Value at a replica, tagged with at least TS.
type WriteRequest struct {
	Key      string `json:"key"`
	Value    []byte `json:"value,omitempty"`
	TS       int64  `json:"ts"`
	ClientID int32  `json:"client_id,omitempty"`
}

// WriteResponse reports the timestamp the value was installed at.
type WriteResponse struct {
	OK bool  `json:"ok"`
	TS int64 `json:"ts"`
}

// LockRequest asks for or gives up the lease on Key for ClientID.
type LockRequest struct {
	Key      string `json:"key"`
	ClientID int32  `json:"client_id"`
}

// AcquireLockResponse reports whether the lease was granted, and the
// replica's current timestamp for the key when it was.
type AcquireLockResponse struct {
	Granted bool  `json:"granted"`
	TS      int64 `json:"ts"`
}

// ReleaseLockResponse reports whether a lease was actually released.
type ReleaseLockResponse struct {
	OK bool `json:"ok"`
}

// CodecName is the content subtype the JSON codec registers under; clients
// select it per connection with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
