package node

import (
	"context"
	"errors"
	"testing"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/feeprovider"
	"github.com/fortiblox/swapvm/pkg/vm"
	"github.com/holiman/uint256"
)

var (
	testTokenA   = addr(0xaa)
	testTokenB   = addr(0xbb)
	testMaker    = addr(0x11)
	testTaker    = addr(0x22)
	testProvider = addr(0x33)
)

func addr(b byte) types.Address {
	var a types.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func e18(n uint64) *uint256.Int {
	x := uint256.NewInt(n)
	return x.Mul(x, uint256.NewInt(1e18))
}

// poolOrder builds a persistent two-token constant-product order seeded
// with 100/100 virtual reserves.
func poolOrder(t *testing.T) *types.Order {
	t.Helper()
	program, err := vm.NewBuilder().
		DynamicBalances(
			[]types.TokenTail{testTokenA.Tail(), testTokenB.Tail()},
			[]*uint256.Int{e18(100), e18(100)},
		).
		XycSwap().
		Program()
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	return &types.Order{
		Maker:   testMaker,
		Traits:  types.NewOrderTraits(0, types.TraitAllowMultipleFills),
		Program: program,
	}
}

func exactIn(amount *uint256.Int) vm.Query {
	return vm.Query{
		TokenIn:   testTokenA,
		TokenOut:  testTokenB,
		Amount:    amount,
		IsExactIn: true,
		Taker:     testTaker,
	}
}

// testNode creates and starts a node backed by a temp directory with the
// RPC server disabled.
func testNode(t *testing.T, configure func(*Config)) *Node {
	t.Helper()
	config := DefaultConfig()
	config.DataDir = t.TempDir()
	config.RPCEnabled = false
	if configure != nil {
		configure(&config)
	}
	n, err := New(&config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if n.IsRunning() {
			if err := n.Stop(); err != nil {
				t.Errorf("Stop: %v", err)
			}
		}
	})
	return n
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "defaults",
			config: DefaultConfig(),
		},
		{
			name:    "missing data dir",
			config:  Config{},
			wantErr: true,
		},
		{
			name: "both fee sources",
			config: Config{
				DataDir:     "/tmp/x",
				FeeEndpoint: "fees.example.com:443",
				StaticFees: map[types.Address]feeprovider.Rate{
					testProvider: {FeeBps: 1000000},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("Validate() error = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = t.TempDir()
	config.RPCEnabled = false

	n, err := New(&config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.IsRunning() {
		t.Error("node running before Start")
	}
	if _, err := n.GetStats(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("GetStats before Start = %v, want ErrNotRunning", err)
	}

	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !n.IsRunning() {
		t.Error("node not running after Start")
	}
	if err := n.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n.IsRunning() {
		t.Error("node running after Stop")
	}
	if err := n.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
}

func TestRegisterQuoteSwap(t *testing.T) {
	n := testNode(t, nil)

	order := poolOrder(t)
	hash, err := n.RegisterOrder(order)
	if err != nil {
		t.Fatalf("RegisterOrder: %v", err)
	}
	if hash != order.Hash() {
		t.Fatalf("RegisterOrder hash = %x, want %x", hash, order.Hash())
	}

	got, err := n.Order(hash)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Maker != order.Maker {
		t.Errorf("Order maker = %x, want %x", got.Maker, order.Maker)
	}

	q := exactIn(e18(50))
	quote, err := n.Quote(order, q)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.LedgerWrites != nil {
		t.Error("quote produced ledger writes")
	}

	swap, err := n.Swap(order, q)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if swap.AmountOut.Cmp(quote.AmountOut) != 0 {
		t.Errorf("swap amountOut = %s, quote = %s", swap.AmountOut, quote.AmountOut)
	}
	// 50 into 100/100 leaves 150 in, pays out 100 - 100*100/150.
	if want := "33333333333333333333"; swap.AmountOut.Dec() != want {
		t.Errorf("amountOut = %s, want %s", swap.AmountOut.Dec(), want)
	}

	entries, err := n.OrderBalances(hash)
	if err != nil {
		t.Fatalf("OrderBalances: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("OrderBalances len = %d, want 2", len(entries))
	}
	var inBal *uint256.Int
	for _, e := range entries {
		if e.Token == testTokenA.Tail() {
			inBal = e.Value
		}
	}
	if inBal == nil || inBal.Cmp(e18(150)) != 0 {
		t.Errorf("stored tokenA balance = %v, want %s", inBal, e18(150))
	}

	// The second fill runs against the settled reserves and prices worse.
	second, err := n.Swap(order, q)
	if err != nil {
		t.Fatalf("second Swap: %v", err)
	}
	if second.AmountOut.Cmp(swap.AmountOut) >= 0 {
		t.Errorf("second fill out %s not worse than first %s", second.AmountOut, swap.AmountOut)
	}

	stats, err := n.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Orders != 1 {
		t.Errorf("stats orders = %d, want 1", stats.Orders)
	}
	if stats.QuotesServed != 1 {
		t.Errorf("stats quotes = %d, want 1", stats.QuotesServed)
	}
	if stats.SwapsExecuted != 2 {
		t.Errorf("stats swaps = %d, want 2", stats.SwapsExecuted)
	}
}

func TestFailedSwapLeavesLedgerUnchanged(t *testing.T) {
	n := testNode(t, nil)

	order := poolOrder(t)
	hash, err := n.RegisterOrder(order)
	if err != nil {
		t.Fatalf("RegisterOrder: %v", err)
	}

	q := exactIn(e18(50))
	q.Threshold = e18(100) // unreachable minimum output
	if _, err := n.Swap(order, q); !errors.Is(err, vm.ErrThresholdNotMet) {
		t.Fatalf("Swap = %v, want ErrThresholdNotMet", err)
	}

	entries, err := n.OrderBalances(hash)
	if err != nil {
		t.Fatalf("OrderBalances: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed swap persisted %d balance rows", len(entries))
	}

	stats, err := n.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.SwapsFailed != 1 {
		t.Errorf("stats failed swaps = %d, want 1", stats.SwapsFailed)
	}
	if stats.SwapsExecuted != 0 {
		t.Errorf("stats swaps = %d, want 0", stats.SwapsExecuted)
	}
}

func TestStaticFeeSource(t *testing.T) {
	recipient := addr(0x44)
	n := testNode(t, func(c *Config) {
		c.StaticFees = map[types.Address]feeprovider.Rate{
			testProvider: {FeeBps: 10000000, Recipient: recipient}, // 1%
		}
	})

	program, err := vm.NewBuilder().
		DynamicProtocolFee(testProvider).
		StaticBalances(
			[]types.Address{testTokenA, testTokenB},
			[]*uint256.Int{e18(100), e18(100)},
		).
		XycSwap().
		Program()
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	order := &types.Order{
		Maker:   testMaker,
		Traits:  types.NewOrderTraits(0, 0),
		Program: program,
	}

	res, err := n.Swap(order, exactIn(e18(50)))
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if res.ProtocolFee.IsZero() {
		t.Error("protocol fee is zero")
	}
	if res.ProtocolFeeTo != recipient {
		t.Errorf("fee recipient = %x, want %x", res.ProtocolFeeTo, recipient)
	}
}

func TestSwapUnknownFeeProvider(t *testing.T) {
	n := testNode(t, func(c *Config) {
		c.StaticFees = map[types.Address]feeprovider.Rate{
			testProvider: {FeeBps: 10000000, Recipient: addr(0x44)},
		}
	})

	program, err := vm.NewBuilder().
		DynamicProtocolFee(addr(0x99)).
		StaticBalances(
			[]types.Address{testTokenA, testTokenB},
			[]*uint256.Int{e18(100), e18(100)},
		).
		XycSwap().
		Program()
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	order := &types.Order{Maker: testMaker, Program: program}

	if _, err := n.Swap(order, exactIn(e18(1))); !errors.Is(err, vm.ErrFeeSourceFailed) {
		t.Errorf("Swap = %v, want ErrFeeSourceFailed", err)
	}
}
