// Command kvbench measures the throughput and latency of quorum reads and
// writes, either against a running cluster described by a configuration
// file or against an in-process cluster it spins up itself.
//
// Usage:
//
//	kvbench -local 3 -protocol abd -concurrent 8 -duration 10s
//	kvbench -config cluster.json -concurrent 8
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/relab/quorumkv/bench"
	"github.com/relab/quorumkv/client"
	"github.com/relab/quorumkv/config"
	"github.com/relab/quorumkv/store"
	"github.com/relab/quorumkv/transport"
	kvgrpc "github.com/relab/quorumkv/transport/grpc"
	"github.com/relab/quorumkv/transport/local"
)

func main() {
	configPath := flag.String("config", "", "cluster configuration file; omit to run an in-process cluster")
	localN := flag.Int("local", 3, "number of in-process replicas when no -config is given")
	protocol := flag.String("protocol", "abd", "protocol for the in-process cluster: abd or blocking")
	concurrent := flag.Int("concurrent", 4, "number of concurrent workers")
	duration := flag.Duration("duration", 10*time.Second, "measured duration")
	warmup := flag.Duration("warmup", time.Second, "warmup time before measuring")
	payload := flag.Int("payload", 16, "written value size in bytes")
	writes := flag.Float64("writes", 0.5, "fraction of operations that are writes")
	keys := flag.Int("keys", 64, "number of distinct keys")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var (
		replicas []transport.Replica
		proto    config.Protocol
		r, w     int
	)
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("Failed to open configuration: %v\n", err)
		}
		cluster, err := config.Load(f, logger)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v\n", err)
		}
		for _, s := range cluster.Servers {
			c, err := kvgrpc.Dial(s.Addr())
			if err != nil {
				log.Fatalf("Failed to connect to replica %d at %s: %v\n", s.ID, s.Addr(), err)
			}
			defer c.Close()
			replicas = append(replicas, c)
		}
		proto, r, w = cluster.Protocol, cluster.ReadQuorum, cluster.WriteQuorum
	} else {
		// Majority quorums over an in-process cluster.
		r, w = *localN/2+1, *localN/2+1
		switch *protocol {
		case "abd":
			proto = config.ProtocolABD
			for i := 0; i < *localN; i++ {
				replicas = append(replicas, local.ABD{Store: store.NewABD(logger)})
			}
		case "blocking":
			proto = config.ProtocolBlocking
			for i := 0; i < *localN; i++ {
				replicas = append(replicas, local.Blocking{Store: store.NewBlocking(logger)})
			}
		default:
			log.Fatalf("Unknown protocol %q: want abd or blocking\n", *protocol)
		}
	}

	var (
		coord bench.Coordinator
		err   error
	)
	switch proto {
	case config.ProtocolABD:
		coord, err = client.NewABD(replicas, r, w, logger)
	case config.ProtocolBlocking:
		coord, err = client.NewBlocking(replicas, int32(os.Getpid()), r, w, logger)
	}
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v\n", err)
	}

	result, err := bench.Run(bench.Options{
		Concurrent:    *concurrent,
		Duration:      *duration,
		Warmup:        *warmup,
		Payload:       *payload,
		WriteFraction: *writes,
		Keys:          *keys,
	}, coord)
	if err != nil {
		log.Fatalf("Benchmark failed: %v\n", err)
	}
	result.Name = fmt.Sprintf("%s/n=%d/c=%d", proto, len(replicas), *concurrent)

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, result.Format())
	tw.Flush()
}
