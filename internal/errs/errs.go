// Package errs defines the error kinds the core surfaces to callers, per
// the propagation policy of the replicated store's error handling design:
// transport failures and application-level refusals are counted identically
// for quorum purposes but remain distinguishable via errors.Is/As for
// diagnostics.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuorumUnreached is returned when fewer than the required quorum of
// replicas responded successfully within the fan-out deadline.
var ErrQuorumUnreached = errors.New("quorum not reached")

// ErrReplicaRefused is returned by a replica's application logic (e.g. a
// lock held by another client) as distinct from a transport failure.
var ErrReplicaRefused = errors.New("replica refused operation")

// TransportError wraps a per-node transport failure (deadline exceeded,
// connection refused). It is counted as a missing response for quorum
// purposes, never as an application-level negative vote.
type TransportError struct {
	Node  uint32
	Cause error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("node %d: transport error: %v", e.Node, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

// ConfigError reports a cluster configuration that the core refuses to run
// with (empty server list, non-positive quorum, duplicate ids).
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// NodeFailure records a single node's cause of failure within a
// QuorumError's Failed list.
type NodeFailure struct {
	NodeID uint32
	Err    error
}

func (f NodeFailure) Error() string {
	return fmt.Sprintf("node %d: %v", f.NodeID, f.Err)
}

// QuorumError reports a failed quorum operation: Cause is the sentinel
// (typically ErrQuorumUnreached), Replies is the count of successful
// responses actually observed, and Failed carries the per-node causes.
type QuorumError struct {
	Cause   error
	Replies int
	Failed  []NodeFailure
}

func (e QuorumError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (successful replies: %d, failed nodes: %d)", e.Cause, e.Replies, len(e.Failed))
	for _, f := range e.Failed {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e QuorumError) Unwrap() error { return e.Cause }

func (e QuorumError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}
