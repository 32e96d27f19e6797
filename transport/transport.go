// Package transport defines the wire-neutral contract the client
// coordinators rely on: the four replica operations of the replicated
// store's external interface, independent of how they travel (in-process
// call, gRPC, or any other binding).
package transport

import "context"

// Replica is the set of RPCs a client coordinator invokes against one
// replica. err != nil models a transport-level failure (deadline exceeded,
// connection refused); ok == false with err == nil models an
// application-level refusal (e.g. a denied lock). Both count identically
// against a quorum threshold, but only the former is a TransportError.
type Replica interface {
	// Read returns the replica's current cell for key. For the ABD
	// variant this always succeeds (ok is always true on a nil err);
	// for the Blocking variant ok is false unless clientID currently
	// holds key's lease.
	Read(ctx context.Context, key string, clientTS int64, clientID int32) (value []byte, ts int64, ok bool, err error)

	// Write installs value at the replica, tagged with the greater of
	// clientTS and the replica's own timestamp source. For the Blocking
	// variant, ok is false unless clientID currently holds key's lease.
	Write(ctx context.Context, key string, value []byte, clientTS int64, clientID int32) (ts int64, ok bool, err error)

	// AcquireLock requests the lease on key for clientID. Always
	// returns granted=false, err=nil on an ABD-backed replica (the ABD
	// variant exposes no lock table).
	AcquireLock(ctx context.Context, key string, clientID int32) (granted bool, ts int64, err error)

	// ReleaseLock releases clientID's lease on key, if held.
	ReleaseLock(ctx context.Context, key string, clientID int32) (ok bool, err error)
}
