// Package client implements the two client-side coordination protocols:
// ABD (wait-free, tagged-value quorum) and Blocking (lock/lease based).
// Both are thin policy wrappers around the quorum fan-out primitive.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relab/quorumkv/internal/clock"
	"github.com/relab/quorumkv/internal/errs"
	"github.com/relab/quorumkv/quorum"
	"github.com/relab/quorumkv/transport"
)

// rpcDeadline bounds every individual replica RPC.
const rpcDeadline = 5 * time.Second

// ABD is the wait-free client coordinator: a two-phase read (query quorum,
// write back the max-timestamp observation) plus a one-phase write.
type ABD struct {
	replicas []transport.Replica
	r, w     int
	clk      *clock.Logical
	logger   *slog.Logger
}

// NewABD constructs an ABD coordinator over replicas with the given
// read/write quorum sizes. It fails immediately (without issuing any RPCs)
// if either quorum exceeds the replica count.
func NewABD(replicas []transport.Replica, readQuorum, writeQuorum int, logger *slog.Logger) (*ABD, error) {
	n := len(replicas)
	if readQuorum > n || writeQuorum > n {
		return nil, fmt.Errorf("quorum sizes (r=%d, w=%d) exceed replica count %d", readQuorum, writeQuorum, n)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ABD{replicas: replicas, r: readQuorum, w: writeQuorum, clk: clock.NewLogical(), logger: logger}, nil
}

// Write tags value with a fresh client timestamp and installs it
// unconditionally at a write quorum of replicas.
func (c *ABD) Write(ctx context.Context, key string, value []byte) (bool, error) {
	ts := c.clk.Next()

	seq := quorum.Gather(ctx, len(c.replicas), func(ctx context.Context, node int) (int64, error) {
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		serverTS, ok, err := c.replicas[node].Write(rctx, key, value, ts, 0)
		if err != nil {
			return 0, errs.TransportError{Node: uint32(node), Cause: err}
		}
		if !ok {
			return 0, errs.ErrReplicaRefused
		}
		return serverTS, nil
	})

	replies, err := seq.Threshold(c.w)
	if err != nil {
		c.logger.Warn("abd write failed to reach write quorum", "key", key, "error", err)
		return false, err
	}
	for _, r := range replies {
		c.clk.Advance(r.Value)
	}
	c.logger.Debug("abd write succeeded", "key", key, "ts", ts, "acks", len(replies))
	return true, nil
}

// Read performs the two-phase ABD read: a quorum query followed by a
// write-back of the observed maximum-timestamp value, returning that value
// only once the write-back itself reaches a write quorum.
func (c *ABD) Read(ctx context.Context, key string) ([]byte, error) {
	type observation struct {
		value []byte
		ts    int64
	}

	seq := quorum.Gather(ctx, len(c.replicas), func(ctx context.Context, node int) (observation, error) {
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		value, ts, ok, err := c.replicas[node].Read(rctx, key, c.clk.Peek(), 0)
		if err != nil {
			return observation{}, errs.TransportError{Node: uint32(node), Cause: err}
		}
		if !ok {
			return observation{}, errs.ErrReplicaRefused
		}
		return observation{value: value, ts: ts}, nil
	})

	replies, err := seq.Threshold(c.r)
	if err != nil {
		c.logger.Warn("abd read failed to reach read quorum", "key", key, "error", err)
		return nil, err
	}

	best := replies[0].Value
	for _, r := range replies[1:] {
		if r.Value.ts > best.ts {
			best = r.Value
		}
	}

	tsWriteBack := c.clk.Peek()
	if best.ts > tsWriteBack {
		tsWriteBack = best.ts
	}
	tsWriteBack = c.clk.Advance(tsWriteBack)

	wbSeq := quorum.Gather(ctx, len(c.replicas), func(ctx context.Context, node int) (int64, error) {
		rctx, cancel := context.WithTimeout(ctx, rpcDeadline)
		defer cancel()
		serverTS, ok, err := c.replicas[node].Write(rctx, key, best.value, tsWriteBack, 0)
		if err != nil {
			return 0, errs.TransportError{Node: uint32(node), Cause: err}
		}
		if !ok {
			return 0, errs.ErrReplicaRefused
		}
		return serverTS, nil
	})

	wbReplies, err := wbSeq.Threshold(c.w)
	if err != nil {
		c.logger.Warn("abd read write-back failed to reach write quorum", "key", key, "error", err)
		return nil, err
	}
	for _, r := range wbReplies {
		c.clk.Advance(r.Value)
	}

	c.logger.Debug("abd read succeeded", "key", key, "ts", best.ts)
	return best.value, nil
}
