package local

import (
	"context"
	"testing"

	"github.com/relab/quorumkv/store"
)

func TestABDAdapterRoundtrip(t *testing.T) {
	r := ABD{Store: store.NewABD(nil)}
	ctx := context.Background()

	ts, ok, err := r.Write(ctx, "k", []byte("A"), 0, 0)
	if err != nil || !ok {
		t.Fatalf("write failed: ok=%v err=%v", ok, err)
	}
	value, readTS, ok, err := r.Read(ctx, "k", 0, 0)
	if err != nil || !ok || string(value) != "A" || readTS != ts {
		t.Fatalf("read mismatch: value=%q ts=%d ok=%v err=%v", value, readTS, ok, err)
	}
}

func TestBlockingAdapterGatesOnLock(t *testing.T) {
	r := Blocking{Store: store.NewBlocking(nil)}
	ctx := context.Background()

	if _, _, ok, _ := r.Read(ctx, "k", 0, 1); ok {
		t.Fatalf("read without lock should fail")
	}

	granted, _, err := r.AcquireLock(ctx, "k", 1)
	if err != nil || !granted {
		t.Fatalf("acquire should succeed: granted=%v err=%v", granted, err)
	}
	if _, ok, err := r.Write(ctx, "k", []byte("A"), 0, 1); err != nil || !ok {
		t.Fatalf("write with lock should succeed: ok=%v err=%v", ok, err)
	}
}

func TestFaultyPartitionReturnsTransportError(t *testing.T) {
	f := NewFaulty(ABD{Store: store.NewABD(nil)})
	f.SetPartitioned(true)

	_, _, _, err := f.Read(context.Background(), "k", 0, 0)
	if err == nil {
		t.Fatalf("expected a transport error while partitioned")
	}
}

func TestFaultyUnpartitionedPassesThrough(t *testing.T) {
	f := NewFaulty(ABD{Store: store.NewABD(nil)})
	ctx := context.Background()

	if _, ok, err := f.Write(ctx, "k", []byte("A"), 0, 0); err != nil || !ok {
		t.Fatalf("unpartitioned write should succeed: ok=%v err=%v", ok, err)
	}
}
