package bench

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// Op identifies which coordinator operation a latency sample came from.
// Quorum reads (two phases under ABD) and writes (one phase) have different
// cost profiles, so the two are aggregated separately.
type Op int

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// OpResult is the aggregate for one operation kind.
type OpResult struct {
	Ops        uint64  // operations completed
	Throughput float64 // operations per second of measured time
	LatencyAvg float64 // mean latency in nanoseconds
	LatencyStd float64 // latency standard deviation in nanoseconds
}

// Result is the outcome of one benchmark run: the read and write aggregates
// side by side, plus allocation figures across both.
type Result struct {
	Name        string
	Elapsed     time.Duration
	Reads       OpResult
	Writes      OpResult
	MemPerOp    uint64
	AllocsPerOp uint64
}

// Format renders the result as one tab-separated line per operation kind,
// suitable for a tabwriter.
func (r *Result) Format() string {
	b := new(strings.Builder)
	for _, line := range []struct {
		op  Op
		res OpResult
	}{{OpRead, r.Reads}, {OpWrite, r.Writes}} {
		fmt.Fprintf(b, "%s/%s\t", r.Name, line.op)
		fmt.Fprintf(b, "%.2f ops/sec\t", line.res.Throughput)
		fmt.Fprintf(b, "%.2f ms avg\t", line.res.LatencyAvg/float64(time.Millisecond))
		fmt.Fprintf(b, "%.2f ms stddev\t", line.res.LatencyStd/float64(time.Millisecond))
		fmt.Fprintf(b, "%d B/op\t", r.MemPerOp)
		fmt.Fprintf(b, "%d allocs/op\n", r.AllocsPerOp)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Stats accumulates latency samples per operation kind during the measured
// phase of a run. Workers share one Stats; every method is safe for
// concurrent use.
type Stats struct {
	mut       sync.Mutex
	reads     welford.Stats
	writes    welford.Stats
	startTime time.Time
	endTime   time.Time
	startMs   runtime.MemStats
	endMs     runtime.MemStats
}

// Start marks the beginning of the measured phase.
func (s *Stats) Start() {
	s.mut.Lock()
	defer s.mut.Unlock()

	runtime.ReadMemStats(&s.startMs)
	s.startTime = time.Now()
}

// End marks the end of the measured phase.
func (s *Stats) End() {
	s.mut.Lock()
	defer s.mut.Unlock()

	s.endTime = time.Now()
	runtime.ReadMemStats(&s.endMs)
}

// AddLatency records one completed operation of the given kind.
func (s *Stats) AddLatency(op Op, l time.Duration) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if op == OpWrite {
		s.writes.Add(float64(l))
	} else {
		s.reads.Add(float64(l))
	}
}

func opResult(w *welford.Stats, elapsed time.Duration) OpResult {
	return OpResult{
		Ops:        w.Count(),
		Throughput: float64(w.Count()) / elapsed.Seconds(),
		LatencyAvg: w.Mean(),
		LatencyStd: math.Sqrt(w.Variance()),
	}
}

// GetResult computes the per-kind aggregates and the allocation deltas of
// the measured phase.
func (s *Stats) GetResult() *Result {
	s.mut.Lock()
	defer s.mut.Unlock()

	elapsed := s.endTime.Sub(s.startTime)
	r := &Result{
		Elapsed: elapsed,
		Reads:   opResult(&s.reads, elapsed),
		Writes:  opResult(&s.writes, elapsed),
	}
	if total := r.Reads.Ops + r.Writes.Ops; total > 0 {
		r.AllocsPerOp = (s.endMs.Mallocs - s.startMs.Mallocs) / total
		r.MemPerOp = (s.endMs.TotalAlloc - s.startMs.TotalAlloc) / total
	}
	return r
}

// Clear resets the stats for another run.
func (s *Stats) Clear() {
	s.mut.Lock()
	s.reads.Reset()
	s.writes.Reset()
	s.startTime = time.Time{}
	s.endTime = time.Time{}
	s.startMs = runtime.MemStats{}
	s.endMs = runtime.MemStats{}
	s.mut.Unlock()
}
