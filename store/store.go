// Package store implements the per-replica storage layer: a concurrent
// key -> (value, timestamp) map, in both variants the two coordination
// protocols require. The ABD variant accepts unconditional tagged writes;
// the Blocking variant adds a timeout-leased per-key lock table.
//
// Both variants serialize all mutations behind a single coarse mutex, the
// "deliberate simplicity" choice of the concurrency model: correctness does
// not depend on per-key sharding, only on the mutex guarding one logical
// instant per operation.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relab/quorumkv/internal/clock"
)

// Cell is a replica-side record of a key's latest observed value and the
// timestamp it was installed at. The zero value represents an absent key:
// empty value, timestamp 0.
type Cell struct {
	Value []byte
	TS    int64
}

// ABD is the replica store for the wait-free quorum protocol. Reads never
// fail at the replica level; writes are installed unconditionally at
// max(clientTS, a freshly generated server timestamp).
type ABD struct {
	mu     sync.Mutex
	cells  map[string]Cell
	clock  clock.Source
	logger *slog.Logger
}

// NewABD returns an empty ABD store. A nil logger defaults to slog.Default().
func NewABD(logger *slog.Logger) *ABD {
	if logger == nil {
		logger = slog.Default()
	}
	return &ABD{cells: make(map[string]Cell), logger: logger}
}

// Read returns the stored cell for key, or the absent-key zero value if key
// has never been written. clientTS is accepted for interface symmetry with
// the wire contract but otherwise ignored by this replica's Read, per the
// reference implementation's behavior.
func (s *ABD) Read(_ context.Context, key string, _ int64) (value []byte, ts int64, ok bool) {
	s.mu.Lock()
	cell := s.cells[key]
	s.mu.Unlock()
	s.logger.Debug("abd read", "key", key, "ts", cell.TS)
	return cell.Value, cell.TS, true
}

// Write installs value at max(clientTS, a fresh server timestamp),
// unconditionally. The server timestamp is generated under the store mutex
// and raised, where needed, to one above the timestamp stored for key, so
// the new timestamp exceeds any timestamp this replica has previously
// stored for key.
func (s *ABD) Write(_ context.Context, key string, value []byte, clientTS int64) (ts int64, ok bool) {
	s.mu.Lock()
	serverTS := s.clock.Generate()
	if stored := s.cells[key].TS; serverTS <= stored {
		serverTS = stored + 1
	}
	finalTS := clientTS
	if serverTS > finalTS {
		finalTS = serverTS
	}
	s.cells[key] = Cell{Value: value, TS: finalTS}
	s.mu.Unlock()

	s.logger.Debug("abd write", "key", key, "ts", finalTS)
	return finalTS, true
}

// lockEntry records the current holder of a key's lease.
type lockEntry struct {
	owner      int32
	acquiredAt time.Time
}

// leaseTimeout is the fixed wall-clock age after which an unreleased lease
// becomes preemptible by another client.
const leaseTimeout = 30 * time.Second

// Blocking is the replica store for the lock-based protocol: an ABD-style
// cell map gated by a per-key lease table. Reads and writes require the
// caller to currently hold the key's lease.
type Blocking struct {
	mu     sync.Mutex
	cells  map[string]Cell
	locks  map[string]lockEntry
	clock  clock.Source
	logger *slog.Logger
}

// NewBlocking returns an empty Blocking store. A nil logger defaults to
// slog.Default().
func NewBlocking(logger *slog.Logger) *Blocking {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blocking{
		cells:  make(map[string]Cell),
		locks:  make(map[string]lockEntry),
		logger: logger,
	}
}

// AcquireLock grants clientID the lease on key if no other client holds it,
// if clientID already holds it (re-entrant refresh), or if the current
// holder's lease has expired (preemption). Otherwise it denies immediately;
// there is no server-side waiting.
func (s *Blocking) AcquireLock(_ context.Context, key string, clientID int32) (granted bool, ts int64) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, held := s.locks[key]
	switch {
	case !held:
		s.locks[key] = lockEntry{owner: clientID, acquiredAt: now}
		s.logger.Debug("lock acquired", "key", key, "client", clientID)
		return true, s.cells[key].TS
	case entry.owner == clientID:
		s.locks[key] = lockEntry{owner: clientID, acquiredAt: now}
		s.logger.Debug("lock refreshed", "key", key, "client", clientID)
		return true, s.cells[key].TS
	case now.Sub(entry.acquiredAt) > leaseTimeout:
		s.locks[key] = lockEntry{owner: clientID, acquiredAt: now}
		s.logger.Debug("lock preempted", "key", key, "prevOwner", entry.owner, "client", clientID)
		return true, s.cells[key].TS
	default:
		s.logger.Debug("lock denied", "key", key, "owner", entry.owner, "client", clientID)
		return false, 0
	}
}

// ReleaseLock removes key's lease iff clientID currently holds it.
func (s *Blocking) ReleaseLock(_ context.Context, key string, clientID int32) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, held := s.locks[key]
	if !held || entry.owner != clientID {
		return false
	}
	delete(s.locks, key)
	s.logger.Debug("lock released", "key", key, "client", clientID)
	return true
}

// Read returns the stored cell for key iff clientID currently holds its
// lease; otherwise ok is false.
func (s *Blocking) Read(_ context.Context, key string, clientID int32) (value []byte, ts int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, held := s.locks[key]
	if !held || entry.owner != clientID {
		return nil, 0, false
	}
	cell := s.cells[key]
	return cell.Value, cell.TS, true
}

// Write installs value at max(clientTS, a fresh server timestamp) iff
// clientID currently holds key's lease; otherwise ok is false and nothing
// is written.
func (s *Blocking) Write(_ context.Context, key string, value []byte, clientTS int64, clientID int32) (ts int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, held := s.locks[key]
	if !held || entry.owner != clientID {
		return 0, false
	}

	serverTS := s.clock.Generate()
	finalTS := clientTS
	if serverTS > finalTS {
		finalTS = serverTS
	}
	s.cells[key] = Cell{Value: value, TS: finalTS}
	s.logger.Debug("blocking write", "key", key, "ts", finalTS, "client", clientID)
	return finalTS, true
}
