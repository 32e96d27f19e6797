// Package bench drives closed-loop load against a store coordinator and
// reports throughput, latency, and allocation figures. It exists for the
// kvbench command; the measured protocols live in package client.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options controls different options for a benchmark run.
type Options struct {
	Concurrent    int           // Number of concurrent workers
	Duration      time.Duration // Duration of the measured run
	Warmup        time.Duration // Warmup time before measuring
	Payload       int           // Size of the written value in bytes
	WriteFraction float64       // Fraction of operations that are writes, in [0,1]
	Keys          int           // Number of distinct keys touched
}

// Coordinator is the operation surface being measured; both protocol
// coordinators satisfy it.
type Coordinator interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) (bool, error)
}

// Run performs a closed-loop benchmark: each of opts.Concurrent workers
// issues one operation at a time, reads and writes mixed per
// opts.WriteFraction, against keys drawn uniformly from a fixed set.
func Run(opts Options, coord Coordinator) (*Result, error) {
	if opts.Concurrent <= 0 {
		opts.Concurrent = 1
	}
	if opts.Keys <= 0 {
		opts.Keys = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	payload := make([]byte, opts.Payload)
	s := &Stats{}
	var g errgroup.Group

	worker := func(rng *rand.Rand, until time.Time, measured bool) error {
		for !time.Now().After(until) {
			key := fmt.Sprintf("bench-%d", rng.Intn(opts.Keys))
			op := OpRead
			if rng.Float64() < opts.WriteFraction {
				op = OpWrite
			}
			start := time.Now()
			var err error
			if op == OpWrite {
				_, err = coord.Write(ctx, key, payload)
			} else {
				_, err = coord.Read(ctx, key)
			}
			if err != nil {
				return err
			}
			if measured {
				s.AddLatency(op, time.Since(start))
			}
		}
		return nil
	}

	for n := 0; n < opts.Concurrent; n++ {
		rng := rand.New(rand.NewSource(int64(n)))
		g.Go(func() error {
			return worker(rng, time.Now().Add(opts.Warmup), false)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.Start()
	for n := 0; n < opts.Concurrent; n++ {
		rng := rand.New(rand.NewSource(int64(opts.Concurrent + n)))
		g.Go(func() error {
			return worker(rng, time.Now().Add(opts.Duration), true)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.End()

	return s.GetResult(), nil
}
