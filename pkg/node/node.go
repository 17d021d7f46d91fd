// Package node provides the main orchestrator for a SwapVM node.
//
// The Node ties together all components:
// - Order store for registered maker orders
// - Balance ledger for multi-fill order state
// - Execution engine for quotes and swaps
// - Fee provider for dynamic protocol fees
// - JSON-RPC server for the client API
//
// The node owns the concurrency contract of mutating calls: every swap
// against an order runs under that order's exclusive lock, and its
// ledger writes are committed atomically before the lock is released.
// Quotes take no lock.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/feeprovider"
	"github.com/fortiblox/swapvm/pkg/ledger"
	"github.com/fortiblox/swapvm/pkg/orderstore"
	"github.com/fortiblox/swapvm/pkg/rpc"
	"github.com/fortiblox/swapvm/pkg/vm"
)

// Node errors.
var (
	ErrAlreadyRunning = errors.New("node is already running")
	ErrNotRunning     = errors.New("node is not running")
	ErrConfigInvalid  = errors.New("invalid node configuration")
	ErrInitFailed     = errors.New("node initialization failed")
)

// Config holds node configuration.
type Config struct {
	// DataDir is the root directory for all node data.
	// Subdirectories are created for the order store and the ledger.
	DataDir string

	// FeeEndpoint is the gRPC endpoint of a dynamic fee provider.
	// Empty disables the remote provider.
	FeeEndpoint string

	// FeeUseTLS enables TLS for the fee provider connection.
	FeeUseTLS bool

	// StaticFees configures an in-process fee source. Used only when
	// FeeEndpoint is empty; programs referencing an unlisted provider
	// fail at execution.
	StaticFees map[types.Address]feeprovider.Rate

	// PruneEnabled enables automatic removal of expired orders.
	PruneEnabled bool

	// RPCEnabled enables the JSON-RPC server.
	RPCEnabled bool

	// RPCAddr is the listen address for the RPC server (default ":8899").
	RPCAddr string

	// RPCLogRequests enables logging of RPC requests.
	RPCLogRequests bool

	// Version is reported by getVersion.
	Version string

	// OnError is called for background component failures.
	OnError func(err error)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:      "./data",
		PruneEnabled: true,
		RPCEnabled:   true,
		RPCAddr:      ":8899",
		Version:      "dev",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrConfigInvalid)
	}
	if c.FeeEndpoint != "" && len(c.StaticFees) > 0 {
		return fmt.Errorf("%w: remote and static fee sources are mutually exclusive", ErrConfigInvalid)
	}
	return nil
}

// Node is a complete SwapVM node. It implements rpc.Backend.
type Node struct {
	config Config

	// Core components
	orders    *orderstore.Store
	balances  *ledger.Store
	engine    *vm.Engine
	feeClient *feeprovider.Client
	rpcServer *rpc.Server

	// Per-order exclusive locks for mutating calls. Entries are never
	// removed; the map grows with the set of orders ever swapped.
	locksMu sync.Mutex
	locks   map[types.Hash]*sync.Mutex

	// State management
	running   atomic.Bool
	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Metrics
	quotesServed  atomic.Uint64
	swapsExecuted atomic.Uint64
	swapsFailed   atomic.Uint64
}

// New creates a new node with the given configuration.
// The node is not started until Start() is called.
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if config.DataDir == "" {
		config.DataDir = DefaultConfig().DataDir
	}
	if config.RPCAddr == "" {
		config.RPCAddr = DefaultConfig().RPCAddr
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Node{
		config: *config,
		locks:  make(map[types.Hash]*sync.Mutex),
	}, nil
}

// Start initializes all components. It returns once the node is serving;
// background goroutines stop when the context is cancelled or Stop is
// called.
func (n *Node) Start(ctx context.Context) error {
	if n.running.Swap(true) {
		return ErrAlreadyRunning
	}

	n.ctx, n.cancel = context.WithCancel(ctx)
	n.startTime = time.Now()

	if err := n.initialize(); err != nil {
		n.running.Store(false)
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	if n.rpcServer != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.rpcServer.Start(n.ctx); err != nil {
				if n.config.OnError != nil {
					n.config.OnError(fmt.Errorf("RPC server error: %w", err))
				}
			}
		}()
	}

	return nil
}

// initialize sets up storage backends, the engine and the RPC server.
func (n *Node) initialize() error {
	if err := os.MkdirAll(n.config.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	ordersConfig := orderstore.DefaultConfig(filepath.Join(n.config.DataDir, "orders", "orders.db"))
	ordersConfig.PruneEnabled = n.config.PruneEnabled
	orders, err := orderstore.Open(ordersConfig)
	if err != nil {
		return fmt.Errorf("open order store: %w", err)
	}
	n.orders = orders

	balances, err := ledger.Open(ledger.DefaultConfig(filepath.Join(n.config.DataDir, "ledger")))
	if err != nil {
		orders.Close()
		return fmt.Errorf("open ledger: %w", err)
	}
	n.balances = balances

	var fees vm.FeeSource
	if n.config.FeeEndpoint != "" {
		feeConfig := feeprovider.DefaultClientConfig(n.config.FeeEndpoint)
		feeConfig.UseTLS = n.config.FeeUseTLS
		client, err := feeprovider.NewClient(feeConfig)
		if err != nil {
			n.closeStorage()
			return fmt.Errorf("create fee provider client: %w", err)
		}
		n.feeClient = client
		fees = client
	} else if len(n.config.StaticFees) > 0 {
		fees = feeprovider.NewStatic(n.config.StaticFees)
	}

	n.engine = vm.New(vm.Options{
		Ledger: balances,
		Fees:   fees,
	})

	if n.config.RPCEnabled {
		rpcConfig := rpc.DefaultConfig()
		rpcConfig.Addr = n.config.RPCAddr
		rpcConfig.LogRequests = n.config.RPCLogRequests
		rpcConfig.Version = n.config.Version
		n.rpcServer = rpc.New(rpcConfig, n)
	}

	return nil
}

// Stop shuts down the node and closes all storage.
func (n *Node) Stop() error {
	if !n.running.Swap(false) {
		return ErrNotRunning
	}

	if n.cancel != nil {
		n.cancel()
	}
	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	n.wg.Wait()

	return n.closeStorage()
}

func (n *Node) closeStorage() error {
	var firstErr error
	if n.feeClient != nil {
		if err := n.feeClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if n.balances != nil {
		if err := n.balances.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if n.orders != nil {
		if err := n.orders.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// orderLock returns the exclusive lock for one order.
func (n *Node) orderLock(hash types.Hash) *sync.Mutex {
	n.locksMu.Lock()
	defer n.locksMu.Unlock()
	mu, ok := n.locks[hash]
	if !ok {
		mu = &sync.Mutex{}
		n.locks[hash] = mu
	}
	return mu
}

// Quote computes swap amounts without touching state. No lock is taken:
// a quote may race a concurrent fill, in which case it reflects either
// the pre- or post-fill state, never a partial one.
func (n *Node) Quote(order *types.Order, q vm.Query) (*vm.Result, error) {
	res, err := n.engine.Quote(order, q)
	if err != nil {
		return nil, err
	}
	n.quotesServed.Add(1)
	return res, nil
}

// Swap executes a mutating call under the order's exclusive lock and
// commits its ledger writes atomically. On any error nothing is
// committed.
func (n *Node) Swap(order *types.Order, q vm.Query) (*vm.Result, error) {
	mu := n.orderLock(order.Hash())
	mu.Lock()
	defer mu.Unlock()

	res, err := n.engine.Swap(order, q)
	if err != nil {
		n.swapsFailed.Add(1)
		return nil, err
	}
	if err := n.balances.Commit(res.LedgerWrites); err != nil {
		n.swapsFailed.Add(1)
		return nil, fmt.Errorf("commit ledger writes: %w", err)
	}
	n.swapsExecuted.Add(1)
	return res, nil
}

// RegisterOrder persists an order for later execution by hash.
func (n *Node) RegisterOrder(order *types.Order) (types.Hash, error) {
	return n.orders.Put(order)
}

// Order returns a registered order by hash.
func (n *Node) Order(hash types.Hash) (*types.Order, error) {
	return n.orders.Get(hash)
}

// OrderBalances returns the persisted balance rows of an order.
func (n *Node) OrderBalances(hash types.Hash) ([]ledger.Entry, error) {
	return n.balances.OrderBalances(hash)
}

// Stats is a snapshot of node counters.
type Stats struct {
	Uptime        time.Duration
	Orders        int
	QuotesServed  uint64
	SwapsExecuted uint64
	SwapsFailed   uint64
}

// GetStats returns current node statistics.
func (n *Node) GetStats() (*Stats, error) {
	if !n.running.Load() {
		return nil, ErrNotRunning
	}
	count, err := n.orders.Count()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Uptime:        time.Since(n.startTime),
		Orders:        count,
		QuotesServed:  n.quotesServed.Load(),
		SwapsExecuted: n.swapsExecuted.Load(),
		SwapsFailed:   n.swapsFailed.Load(),
	}, nil
}

// IsRunning reports whether the node has been started and not stopped.
func (n *Node) IsRunning() bool {
	return n.running.Load()
}
