// Package local provides an in-process transport.Replica binding that
// calls directly into a store.ABD or store.Blocking instance, skipping any
// network hop. It backs single-process clusters and the deterministic
// concurrency tests, which need no sockets.
//
// Faulty wraps any transport.Replica to inject latency or simulate a
// network partition, used to drive the replicated store's crash and
// read-repair scenarios without real sockets or sleeps longer than needed.
package local

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/relab/quorumkv/store"
)

// ABD adapts a *store.ABD to transport.Replica. clientID is accepted for
// interface symmetry and ignored; the ABD wire contract carries no
// client_id field.
type ABD struct {
	Store *store.ABD
}

func (a ABD) Read(ctx context.Context, key string, clientTS int64, _ int32) ([]byte, int64, bool, error) {
	v, ts, ok := a.Store.Read(ctx, key, clientTS)
	return v, ts, ok, nil
}

func (a ABD) Write(ctx context.Context, key string, value []byte, clientTS int64, _ int32) (int64, bool, error) {
	ts, ok := a.Store.Write(ctx, key, value, clientTS)
	return ts, ok, nil
}

// AcquireLock and ReleaseLock are not meaningful against an ABD store; they
// report a clean denial/no-op rather than panicking, so a misconfigured
// caller observes a quorum failure instead of a crash.
func (a ABD) AcquireLock(context.Context, string, int32) (bool, int64, error) { return false, 0, nil }
func (a ABD) ReleaseLock(context.Context, string, int32) (bool, error)        { return false, nil }

// Blocking adapts a *store.Blocking to transport.Replica.
type Blocking struct {
	Store *store.Blocking
}

func (b Blocking) Read(ctx context.Context, key string, _ int64, clientID int32) ([]byte, int64, bool, error) {
	v, ts, ok := b.Store.Read(ctx, key, clientID)
	return v, ts, ok, nil
}

func (b Blocking) Write(ctx context.Context, key string, value []byte, clientTS int64, clientID int32) (int64, bool, error) {
	ts, ok := b.Store.Write(ctx, key, value, clientTS, clientID)
	return ts, ok, nil
}

func (b Blocking) AcquireLock(ctx context.Context, key string, clientID int32) (bool, int64, error) {
	granted, ts := b.Store.AcquireLock(ctx, key, clientID)
	return granted, ts, nil
}

func (b Blocking) ReleaseLock(ctx context.Context, key string, clientID int32) (bool, error) {
	return b.Store.ReleaseLock(ctx, key, clientID), nil
}

// replica is the minimal surface Faulty wraps; it has the same method set
// as transport.Replica, so any transport.Replica satisfies it directly.
type replica interface {
	Read(ctx context.Context, key string, clientTS int64, clientID int32) ([]byte, int64, bool, error)
	Write(ctx context.Context, key string, value []byte, clientTS int64, clientID int32) (int64, bool, error)
	AcquireLock(ctx context.Context, key string, clientID int32) (bool, int64, error)
	ReleaseLock(ctx context.Context, key string, clientID int32) (bool, error)
}

// Faulty decorates a replica with injectable latency and an on/off network
// partition switch, for exercising the core's quorum and read-repair
// behavior under partial failure without real sockets.
type Faulty struct {
	inner       replica
	latency     time.Duration
	partitioned atomic.Bool
}

// NewFaulty wraps inner with no latency and no partition; use SetLatency
// and SetPartitioned to inject faults.
func NewFaulty(inner replica) *Faulty {
	return &Faulty{inner: inner}
}

// SetLatency sets the artificial delay applied before every call.
func (f *Faulty) SetLatency(d time.Duration) { f.latency = d }

// SetPartitioned toggles whether every call immediately fails as a
// transport error, simulating a network partition to this replica.
func (f *Faulty) SetPartitioned(partitioned bool) { f.partitioned.Store(partitioned) }

func (f *Faulty) delay(ctx context.Context) error {
	if f.partitioned.Load() {
		return context.DeadlineExceeded
	}
	if f.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(f.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Faulty) Read(ctx context.Context, key string, clientTS int64, clientID int32) ([]byte, int64, bool, error) {
	if err := f.delay(ctx); err != nil {
		return nil, 0, false, err
	}
	return f.inner.Read(ctx, key, clientTS, clientID)
}

func (f *Faulty) Write(ctx context.Context, key string, value []byte, clientTS int64, clientID int32) (int64, bool, error) {
	if err := f.delay(ctx); err != nil {
		return 0, false, err
	}
	return f.inner.Write(ctx, key, value, clientTS, clientID)
}

func (f *Faulty) AcquireLock(ctx context.Context, key string, clientID int32) (bool, int64, error) {
	if err := f.delay(ctx); err != nil {
		return false, 0, err
	}
	return f.inner.AcquireLock(ctx, key, clientID)
}

func (f *Faulty) ReleaseLock(ctx context.Context, key string, clientID int32) (bool, error) {
	if err := f.delay(ctx); err != nil {
		return false, err
	}
	return f.inner.ReleaseLock(ctx, key, clientID)
}
