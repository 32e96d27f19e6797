package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"
	"golang.org/x/term"

	"github.com/relab/quorumkv/transport"
)

var help = `
This interface runs quorum operations against the replicated key-value
store interactively. The following commands can be used:

help 	                    	Show this text
exit 	                    	Exit the program
nodes	                    	Print a list of the configured replicas
read 	[key]               	Quorum read of a key
write	[key] [value]       	Quorum write of a value
rpc  	[node index] read [key]	Read one replica's local cell directly

Examples:

> write foo bar
Performs a quorum write, setting 'foo' = 'bar'

> read foo
Performs a quorum read, returning the committed value of 'foo'

> write foo 'bar baz'
Quoted values may contain spaces
`

type repl struct {
	coord    coordinator
	replicas []transport.Replica
	addrs    []string
	term     *term.Terminal
}

func newRepl(coord coordinator, replicas []transport.Replica, addrs []string) *repl {
	return &repl{
		coord:    coord,
		replicas: replicas,
		addrs:    addrs,
		term: term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stderr}, "> "),
	}
}

// ReadLine reads a line from the terminal in raw mode.
func (r repl) ReadLine() (string, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		panic(err)
	}
	defer func() {
		err := term.Restore(fd, oldState)
		if err != nil {
			panic(err)
		}
	}()

	return r.term.ReadLine()
}

// Repl runs the interactive command loop until exit or EOF.
func Repl(coord coordinator, replicas []transport.Replica, addrs []string) {
	r := newRepl(coord, replicas, addrs)

	fmt.Println(help)
	for {
		l, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read line: %v\n", err)
			os.Exit(1)
		}
		args, err := shlex.Split(l)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to split command: %v\n", err)
			os.Exit(1)
		}
		if len(args) < 1 {
			continue
		}

		switch args[0] {
		case "exit":
			fallthrough
		case "quit":
			return
		case "help":
			fmt.Println(help)
		case "read":
			r.read(args[1:])
		case "write":
			r.write(args[1:])
		case "rpc":
			r.rpc(args[1:])
		case "nodes":
			fmt.Println("Nodes: ")
			for i, addr := range r.addrs {
				fmt.Printf("%d: %s\n", i, addr)
			}
		default:
			fmt.Printf("Unknown command '%s'. Type 'help' to see available commands.\n", args[0])
		}
	}
}

func (r repl) read(args []string) {
	if len(args) < 1 {
		fmt.Println("Read requires a key to read.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	value, err := r.coord.Read(ctx, args[0])
	cancel()
	if err != nil {
		fmt.Printf("Read finished with error: %v\n", err)
		return
	}
	fmt.Printf("%s = %s\n", args[0], value)
}

func (r repl) write(args []string) {
	if len(args) < 2 {
		fmt.Println("Write requires a key and a value to write.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ok, err := r.coord.Write(ctx, args[0], []byte(args[1]))
	cancel()
	if err != nil {
		fmt.Printf("Write finished with error: %v\n", err)
		return
	}
	if !ok {
		fmt.Println("Write failed to reach a quorum.")
		return
	}
	fmt.Println("Write OK")
}

// rpc reads one replica's local cell directly, bypassing the quorum. The
// returned value may be stale; this exists to inspect per-replica state.
func (r repl) rpc(args []string) {
	if len(args) < 3 || args[1] != "read" {
		fmt.Println("'rpc' requires a node index and a read operation.")
		return
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 || index >= len(r.replicas) {
		fmt.Printf("Invalid index. Must be between 0 and %d.\n", len(r.replicas)-1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	value, ts, ok, err := r.replicas[index].Read(ctx, args[2], 0, 0)
	cancel()
	if err != nil {
		fmt.Printf("Read RPC finished with error: %v\n", err)
		return
	}
	if !ok {
		fmt.Printf("Replica %d refused the read.\n", index)
		return
	}
	fmt.Printf("%s = %s (ts %d)\n", args[2], value, ts)
}
