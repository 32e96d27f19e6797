package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relab/quorumkv/internal/clock"
	"github.com/relab/quorumkv/internal/errs"
	"github.com/relab/quorumkv/quorum"
	"github.com/relab/quorumkv/transport"
)

// Blocking is the lock/lease based client coordinator: it acquires a quorum
// of per-key leases before reading or writing, releasing them (best effort)
// once the operation completes.
type Blocking struct {
	replicas []transport.Replica
	clientID int32
	r, w     int
	clk      *clock.Logical
	logger   *slog.Logger
}

// NewBlocking constructs a Blocking coordinator with a stable clientID,
// over replicas with the given read/write quorum sizes. It fails
// immediately if either quorum exceeds the replica count.
func NewBlocking(replicas []transport.Replica, clientID int32, readQuorum, writeQuorum int, logger *slog.Logger) (*Blocking, error) {
	n := len(replicas)
	if readQuorum > n || writeQuorum > n {
		return nil, fmt.Errorf("quorum sizes (r=%d, w=%d) exceed replica count %d", readQuorum, writeQuorum, n)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Blocking{
		replicas: replicas,
		clientID: clientID,
		r:        readQuorum,
		w:        writeQuorum,
		clk:      clock.NewLogical(),
		logger:   logger,
	}, nil
}

// acquireQuorum fans out AcquireLock(key, clientID) to every replica and
// collects nodes granting the lease until threshold grants are observed.
// Nodes whose grant arrives after the threshold is met are never added to
// the returned slice; their lease is released by wall-clock expiry rather
// than an explicit ReleaseLock. Release is best effort either way.
func (c *Blocking) acquireQuorum(ctx context.Context, key string, threshold int) ([]uint32, error) {
	seq := quorum.Gather(ctx, len(c.replicas), func(ctx context.Context, node int) (bool, error) {
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		granted, _, err := c.replicas[node].AcquireLock(rctx, key, c.clientID)
		if err != nil {
			return false, errs.TransportError{Node: uint32(node), Cause: err}
		}
		return granted, nil
	})

	var granted []uint32
	var failed []errs.NodeFailure
	for reply := range seq {
		if reply.Err != nil {
			failed = append(failed, errs.NodeFailure{NodeID: reply.NodeID, Err: reply.Err})
			continue
		}
		if !reply.Value {
			failed = append(failed, errs.NodeFailure{NodeID: reply.NodeID, Err: errs.ErrReplicaRefused})
			continue
		}
		granted = append(granted, reply.NodeID)
		if len(granted) >= threshold {
			return granted, nil
		}
	}

	return granted, errs.QuorumError{Cause: errs.ErrQuorumUnreached, Replies: len(granted), Failed: failed}
}

// release best-effort releases the lease on key at every node in nodes.
func (c *Blocking) release(ctx context.Context, key string, nodes []uint32) {
	rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
	defer cancel()
	for _, node := range nodes {
		_, _ = c.replicas[node].ReleaseLock(rctx, key, c.clientID)
	}
}

// Write acquires a write quorum of leases on key, installs value tagged
// with a fresh client timestamp at each locked replica, releases the
// leases, and succeeds iff at least a write quorum of writes acknowledged.
func (c *Blocking) Write(ctx context.Context, key string, value []byte) (bool, error) {
	granted, err := c.acquireQuorum(ctx, key, c.w)
	if err != nil {
		c.release(ctx, key, granted)
		c.logger.Warn("blocking write failed to acquire lock quorum", "key", key, "error", err)
		return false, err
	}
	defer c.release(ctx, key, granted)

	ts := c.clk.Next()
	seq := quorum.Gather(ctx, len(granted), func(ctx context.Context, i int) (bool, error) {
		node := granted[i]
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		_, ok, err := c.replicas[node].Write(rctx, key, value, ts, c.clientID)
		if err != nil {
			return false, errs.TransportError{Node: node, Cause: err}
		}
		if !ok {
			return false, errs.ErrReplicaRefused
		}
		return true, nil
	})

	replies, err := seq.Threshold(c.w)
	if err != nil {
		c.logger.Warn("blocking write failed to reach write quorum", "key", key, "error", err)
		return false, err
	}
	c.logger.Debug("blocking write succeeded", "key", key, "ts", ts, "acks", len(replies))
	return true, nil
}

// Read acquires a read quorum of leases on key, reads from each locked
// replica, releases the leases, and returns the value with the highest
// observed timestamp. It fails if no locked replica could be read.
func (c *Blocking) Read(ctx context.Context, key string) ([]byte, error) {
	granted, err := c.acquireQuorum(ctx, key, c.r)
	if err != nil {
		c.release(ctx, key, granted)
		c.logger.Warn("blocking read failed to acquire lock quorum", "key", key, "error", err)
		return nil, err
	}
	defer c.release(ctx, key, granted)

	type observation struct {
		value []byte
		ts    int64
	}

	seq := quorum.Gather(ctx, len(granted), func(ctx context.Context, i int) (observation, error) {
		node := granted[i]
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		value, ts, ok, err := c.replicas[node].Read(rctx, key, 0, c.clientID)
		if err != nil {
			return observation{}, errs.TransportError{Node: node, Cause: err}
		}
		if !ok {
			return observation{}, errs.ErrReplicaRefused
		}
		return observation{value: value, ts: ts}, nil
	})

	// Read from every locked replica; only an empty response set is a
	// failure, not a partial one.
	var best observation
	found := false
	var failed []errs.NodeFailure
	for reply := range seq {
		if reply.Err != nil {
			failed = append(failed, errs.NodeFailure{NodeID: reply.NodeID, Err: reply.Err})
			continue
		}
		if !found || reply.Value.ts > best.ts {
			best = reply.Value
			found = true
		}
	}
	if !found {
		c.logger.Warn("blocking read got no successful responses from locked replicas", "key", key)
		return nil, errs.QuorumError{Cause: errs.ErrQuorumUnreached, Replies: 0, Failed: failed}
	}
	c.logger.Debug("blocking read succeeded", "key", key, "ts", best.ts)
	return best.value, nil
}
