// SwapVM: deterministic swap-program execution node.
//
// This is the main entry point for the SwapVM node. It serves quotes
// and executes swaps against maker-signed programs over JSON-RPC,
// persisting registered orders and per-order fill balances on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortiblox/swapvm/pkg/node"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	dataDir     = flag.String("data-dir", "./data", "Data directory for orders and balance ledger")
	rpcAddr     = flag.String("rpc-addr", ":8899", "JSON-RPC server listen address")
	logRequests = flag.Bool("log-requests", false, "Log every JSON-RPC request")
	feeEndpoint = flag.String("fee-endpoint", "", "gRPC endpoint of the dynamic fee provider (empty = disabled)")
	feeTLS      = flag.Bool("fee-tls", false, "Use TLS for the fee provider connection")
	noPrune     = flag.Bool("no-prune", false, "Disable background pruning of expired orders")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("swapvm %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	// Setup logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting swapvm %s", Version)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	config := node.DefaultConfig()
	config.DataDir = *dataDir
	config.RPCAddr = *rpcAddr
	config.RPCLogRequests = *logRequests
	config.FeeEndpoint = *feeEndpoint
	config.FeeUseTLS = *feeTLS
	config.PruneEnabled = !*noPrune
	config.Version = fmt.Sprintf("%s (%s)", Version, GitCommit)
	config.OnError = func(err error) {
		log.Printf("Node error: %v", err)
	}

	n, err := node.New(&config)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}

	if err := n.Start(ctx); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}

	log.Printf("Serving JSON-RPC on %s, data in %s", config.RPCAddr, config.DataDir)
	if config.FeeEndpoint != "" {
		log.Printf("Dynamic fees via %s (tls=%v)", config.FeeEndpoint, config.FeeUseTLS)
	}

	// Print status periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats, err := n.GetStats()
				if err != nil {
					continue
				}
				log.Printf("Status: orders=%d, quotes=%d, swaps=%d, failed=%d",
					stats.Orders, stats.QuotesServed, stats.SwapsExecuted, stats.SwapsFailed)
			}
		}
	}()

	<-ctx.Done()

	if stats, err := n.GetStats(); err == nil {
		log.Printf("Served %d quotes, executed %d swaps total", stats.QuotesServed, stats.SwapsExecuted)
	}
	if err := n.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("swapvm stopped")
}
