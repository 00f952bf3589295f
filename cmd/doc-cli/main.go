package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/heysubinoy/pyazdoc/internal/api"
	"github.com/heysubinoy/pyazdoc/internal/discovery"
	"github.com/heysubinoy/pyazdoc/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var logger = logging.New("doc-cli", os.Getenv("LOG_LEVEL"))

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	addr, err := serverAddr(ctx)
	if err != nil {
		fatal("failed to discover leader", err)
	}
	logger.Debug("connecting", "addr", addr)

	// Connect using the passthrough resolver for direct address connection
	conn, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fatal("failed to connect", err)
	}
	defer conn.Close()

	client := api.NewDocClient(conn)
	args := os.Args[2:]

	switch os.Args[1] {
	case "current":
		key, err := client.CurrentKey(ctx)
		if err != nil {
			fatal("current failed", err)
		}
		fmt.Println(key)

	case "use":
		if len(args) > 0 {
			err = client.SetCurrentKey(ctx, args[0])
		} else {
			err = client.ResetCurrentKey(ctx)
		}
		if err != nil {
			fatal("use failed", err)
		}

	case "get":
		var (
			value string
			found bool
		)
		if len(args) > 0 {
			value, found, err = client.DocValueFor(ctx, args[0])
		} else {
			value, found, err = client.DocValue(ctx)
		}
		if err != nil {
			fatal("get failed", err)
		}
		if !found {
			fmt.Fprintln(os.Stderr, "document not found")
			os.Exit(1)
		}
		fmt.Println(value)

	case "set":
		if len(args) < 1 {
			fmt.Println("Usage: doc-cli set <value> [key]")
			os.Exit(1)
		}
		if len(args) > 1 {
			err = client.SetDocValueFor(ctx, args[1], args[0])
		} else {
			err = client.SetDocValue(ctx, args[0])
		}
		if err != nil {
			fatal("set failed", err)
		}

	case "clear":
		if len(args) < 1 {
			fmt.Println("Usage: doc-cli clear <slot>")
			os.Exit(1)
		}
		if err := client.DeleteSlot(ctx, args[0]); err != nil {
			fatal("clear failed", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// serverAddr returns PYAZDOC_GRPC_ADDR if set, otherwise asks mandi for the leader.
func serverAddr(ctx context.Context) (string, error) {
	if addr := os.Getenv("PYAZDOC_GRPC_ADDR"); addr != "" {
		return addr, nil
	}
	mandiAddr := os.Getenv("MANDI_ADDR")
	if mandiAddr == "" {
		mandiAddr = "http://127.0.0.1:7000"
	}
	return discovery.NewClient(mandiAddr, nil).LeaderGRPCAddr(ctx)
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  doc-cli current              print the current key")
	fmt.Println("  doc-cli use [key]            set the current key (no key: default)")
	fmt.Println("  doc-cli get [key]            print a document (no key: current)")
	fmt.Println("  doc-cli set <value> [key]    store a document (no key: current)")
	fmt.Println("  doc-cli clear <slot>         delete a raw slot")
	fmt.Println("")
	fmt.Println("Environment variables:")
	fmt.Println("  PYAZDOC_GRPC_ADDR - server gRPC address, skips discovery")
	fmt.Println("  MANDI_ADDR        - Mandi discovery service address (default: http://127.0.0.1:7000)")
}
