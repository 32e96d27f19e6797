// Package quorum implements the generic fan-out primitive both client
// coordinators are built on: launch one call per replica in parallel,
// collect responses as an iterator, and let a terminal method decide how
// many successful replies constitute a quorum.
//
// Responses arrive as an iter.Seq of per-node replies with chainable
// filters, consumed by a Threshold terminal method that returns as soon as
// enough successes have arrived while late replies continue to drain into
// the channel in the background, so no call goroutine blocks. Once the
// terminal method has returned, nothing reads those late replies.
package quorum

import (
	"context"
	"iter"

	"github.com/relab/quorumkv/internal/errs"
)

// Reply is a single node's outcome from a fanned-out call.
type Reply[T any] struct {
	NodeID uint32
	Value  T
	Err    error
}

// Seq is an iterator over Reply values as they arrive, in completion order.
type Seq[T any] iter.Seq[Reply[T]]

// IgnoreErrors returns a Seq that yields only the successful replies.
func (seq Seq[T]) IgnoreErrors() Seq[T] {
	return func(yield func(Reply[T]) bool) {
		for r := range seq {
			if r.Err == nil {
				if !yield(r) {
					return
				}
			}
		}
	}
}

// Gather launches one goroutine per node in 0..n-1, each invoking call with
// ctx itself, and returns a Seq yielding Reply[T] values as
// calls complete. The returned Seq is a single-pass stream backed by one
// buffered channel sized n; ranging over it a second time yields nothing.
func Gather[T any](ctx context.Context, n int, call func(ctx context.Context, node int) (T, error)) Seq[T] {
	replyCh := make(chan Reply[T], n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			v, err := call(ctx, i)
			replyCh <- Reply[T]{NodeID: uint32(i), Value: v, Err: err}
		}()
	}

	return func(yield func(Reply[T]) bool) {
		for count := 0; count < n; count++ {
			select {
			case r := <-replyCh:
				if !yield(r) {
					// Caller stopped early; remaining goroutines still send
					// into replyCh (buffered to n), so none leak, but we
					// stop consuming them ourselves.
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Threshold ranges over seq until threshold successful replies have
// arrived, returning those replies. Failed replies (transport errors or
// application refusals alike) are recorded but don't count toward the
// threshold; the full per-node failure list surfaces in errs.QuorumError
// if the threshold is never reached. Replies still in flight when the
// threshold is met are not waited for further by this call.
func (seq Seq[T]) Threshold(threshold int) ([]Reply[T], error) {
	successes := make([]Reply[T], 0, threshold)
	var failures []errs.NodeFailure

	for r := range seq {
		if r.Err != nil {
			failures = append(failures, errs.NodeFailure{NodeID: r.NodeID, Err: r.Err})
			continue
		}
		successes = append(successes, r)
		if len(successes) >= threshold {
			return successes, nil
		}
	}

	return successes, errs.QuorumError{
		Cause:   errs.ErrQuorumUnreached,
		Replies: len(successes),
		Failed:  failures,
	}
}

// All waits for every one of n nodes to reply successfully.
func (seq Seq[T]) All(n int) ([]Reply[T], error) {
	return seq.Threshold(n)
}
