// Command kvctl is an interactive client for the replicated key-value
// store. It connects to every replica in the cluster configuration and
// drives quorum reads and writes through the coordinator matching the
// configured protocol.
//
// Usage:
//
//	kvctl -config cluster.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/relab/quorumkv/client"
	"github.com/relab/quorumkv/config"
	"github.com/relab/quorumkv/transport"
	kvgrpc "github.com/relab/quorumkv/transport/grpc"
)

// coordinator is the protocol-independent surface the REPL drives; both
// client.ABD and client.Blocking satisfy it.
type coordinator interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) (bool, error)
}

func main() {
	configPath := flag.String("config", "cluster.json", "path to the cluster configuration file")
	clientID := flag.Int("client-id", os.Getpid(), "stable client id (blocking protocol only)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	f, err := os.Open(*configPath)
	if err != nil {
		log.Fatalf("Failed to open configuration: %v\n", err)
	}
	cluster, err := config.Load(f, logger)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v\n", err)
	}

	replicas := make([]transport.Replica, 0, cluster.N())
	addrs := make([]string, 0, cluster.N())
	for _, s := range cluster.Servers {
		c, err := kvgrpc.Dial(s.Addr())
		if err != nil {
			log.Fatalf("Failed to connect to replica %d at %s: %v\n", s.ID, s.Addr(), err)
		}
		defer c.Close()
		replicas = append(replicas, c)
		addrs = append(addrs, s.Addr())
	}

	var coord coordinator
	switch cluster.Protocol {
	case config.ProtocolABD:
		coord, err = client.NewABD(replicas, cluster.ReadQuorum, cluster.WriteQuorum, logger)
	case config.ProtocolBlocking:
		coord, err = client.NewBlocking(replicas, int32(*clientID), cluster.ReadQuorum, cluster.WriteQuorum, logger)
	}
	if err != nil {
		log.Fatalf("Failed to create %s coordinator: %v\n", cluster.Protocol, err)
	}

	Repl(coord, replicas, addrs)
}
