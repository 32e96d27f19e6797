// Command kvserver runs a single replica of the replicated key-value store.
// It loads the cluster configuration, picks its own entry by -id, and serves
// the replica RPCs for the configured protocol until interrupted.
//
// Usage:
//
//	kvserver -config cluster.json -id 1
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/relab/quorumkv/config"
	"github.com/relab/quorumkv/store"
	"github.com/relab/quorumkv/transport"
	kvgrpc "github.com/relab/quorumkv/transport/grpc"
	"github.com/relab/quorumkv/transport/local"
)

func main() {
	configPath := flag.String("config", "cluster.json", "path to the cluster configuration file")
	id := flag.Int("id", 0, "this replica's id in the configuration")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
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

	var self *config.ServerAddr
	for i := range cluster.Servers {
		if cluster.Servers[i].ID == int32(*id) {
			self = &cluster.Servers[i]
			break
		}
	}
	if self == nil {
		log.Fatalf("No server with id %d in %s\n", *id, *configPath)
	}

	var replica transport.Replica
	switch cluster.Protocol {
	case config.ProtocolABD:
		replica = local.ABD{Store: store.NewABD(logger)}
	case config.ProtocolBlocking:
		replica = local.Blocking{Store: store.NewBlocking(logger)}
	}

	lis, err := net.Listen("tcp", self.Addr())
	if err != nil {
		log.Fatalf("Failed to listen on '%s': %v\n", self.Addr(), err)
	}

	srv := grpc.NewServer()
	kvgrpc.Register(srv, replica, logger)
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Fatalf("Server error: %v\n", err)
		}
	}()
	logger.Info("replica started", "id", self.ID, "addr", lis.Addr().String(), "protocol", cluster.Protocol.String())

	// catch signals in order to shut down gracefully
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-signals

	srv.GracefulStop()
	logger.Info("replica stopped", "id", self.ID)
}
