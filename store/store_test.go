package store

import (
	"context"
	"testing"
	"time"
)

func TestABDReadAbsentKey(t *testing.T) {
	s := NewABD(nil)
	value, ts, ok := s.Read(context.Background(), "missing", 0)
	if !ok {
		t.Fatalf("Read of absent key should succeed with ok=true")
	}
	if len(value) != 0 || ts != 0 {
		t.Fatalf("absent key should read as (empty, 0), got (%q, %d)", value, ts)
	}
}

func TestABDWriteThenRead(t *testing.T) {
	s := NewABD(nil)
	ts, ok := s.Write(context.Background(), "k", []byte("A"), 0)
	if !ok || ts <= 0 {
		t.Fatalf("write should succeed with positive ts, got ok=%v ts=%d", ok, ts)
	}

	value, readTS, ok := s.Read(context.Background(), "k", 0)
	if !ok || string(value) != "A" || readTS != ts {
		t.Fatalf("read after write mismatch: ok=%v value=%q ts=%d want=A,%d", ok, value, readTS, ts)
	}
}

func TestABDEmptyStringIsDistinctFromAbsent(t *testing.T) {
	s := NewABD(nil)
	ts, ok := s.Write(context.Background(), "k", []byte(""), 0)
	if !ok {
		t.Fatalf("writing the empty string should succeed")
	}
	value, readTS, ok := s.Read(context.Background(), "k", 0)
	if !ok || len(value) != 0 || readTS != ts {
		t.Fatalf("empty-string write should read back as empty value at ts=%d, got value=%q ts=%d", ts, value, readTS)
	}
	if readTS == 0 {
		t.Fatalf("a written empty string must have ts>0, distinguishing it from an absent key")
	}
}

func TestABDWriteUsesMaxOfClientAndServerTimestamp(t *testing.T) {
	s := NewABD(nil)
	// A client timestamp far in the future must be honored.
	future := time.Now().UnixMilli()*1000 + 10_000_000
	ts, ok := s.Write(context.Background(), "k", []byte("A"), future)
	if !ok || ts < future {
		t.Fatalf("write should adopt client timestamp when it exceeds the server's own tick: got ts=%d want>=%d", ts, future)
	}
}

func TestABDTimestampsNeverDecrease(t *testing.T) {
	s := NewABD(nil)
	var prev int64
	for i := 0; i < 50; i++ {
		ts, ok := s.Write(context.Background(), "k", []byte("v"), 0)
		if !ok {
			t.Fatalf("write %d failed", i)
		}
		if ts <= prev {
			t.Fatalf("ts did not increase: prev=%d ts=%d", prev, ts)
		}
		prev = ts
	}
}

func TestBlockingAcquireGrantDenyReentrant(t *testing.T) {
	s := NewBlocking(nil)
	ctx := context.Background()

	granted, _ := s.AcquireLock(ctx, "k", 1)
	if !granted {
		t.Fatalf("first acquire should be granted")
	}

	granted, _ = s.AcquireLock(ctx, "k", 2)
	if granted {
		t.Fatalf("second client should be denied while lease is held")
	}

	granted, _ = s.AcquireLock(ctx, "k", 1)
	if !granted {
		t.Fatalf("re-entrant acquire by the owner should be granted")
	}
}

func TestBlockingReadWriteGatedOnLock(t *testing.T) {
	s := NewBlocking(nil)
	ctx := context.Background()

	if _, _, ok := s.Read(ctx, "k", 1); ok {
		t.Fatalf("read without a lock should fail")
	}
	if _, ok := s.Write(ctx, "k", []byte("A"), 0, 1); ok {
		t.Fatalf("write without a lock should fail")
	}

	s.AcquireLock(ctx, "k", 1)
	if _, ok := s.Write(ctx, "k", []byte("A"), 0, 1); !ok {
		t.Fatalf("write while holding the lock should succeed")
	}
	value, _, ok := s.Read(ctx, "k", 1)
	if !ok || string(value) != "A" {
		t.Fatalf("read while holding the lock should see the write, got ok=%v value=%q", ok, value)
	}

	if _, _, ok := s.Read(ctx, "k", 2); ok {
		t.Fatalf("a non-owner must not be able to read")
	}
}

func TestBlockingReleaseOnlyByOwner(t *testing.T) {
	s := NewBlocking(nil)
	ctx := context.Background()

	s.AcquireLock(ctx, "k", 1)
	if s.ReleaseLock(ctx, "k", 2) {
		t.Fatalf("release by non-owner must fail")
	}
	if !s.ReleaseLock(ctx, "k", 1) {
		t.Fatalf("release by owner must succeed")
	}
	granted, _ := s.AcquireLock(ctx, "k", 2)
	if !granted {
		t.Fatalf("lock should be free for another client after release")
	}
}

func TestBlockingLeasePreemptionAfterTimeout(t *testing.T) {
	s := NewBlocking(nil)
	ctx := context.Background()

	s.locks["k"] = lockEntry{owner: 1, acquiredAt: time.Now().Add(-leaseTimeout - time.Second)}

	granted, _ := s.AcquireLock(ctx, "k", 2)
	if !granted {
		t.Fatalf("an expired lease must be preemptible")
	}

	s.locks["k"] = lockEntry{owner: 2, acquiredAt: time.Now()}
	granted, _ = s.AcquireLock(ctx, "k", 3)
	if granted {
		t.Fatalf("a fresh lease must not be preemptible")
	}
}
