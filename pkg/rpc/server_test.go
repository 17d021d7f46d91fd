package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/ledger"
	"github.com/fortiblox/swapvm/pkg/orderstore"
	"github.com/fortiblox/swapvm/pkg/vm"
	"github.com/holiman/uint256"
)

var (
	testTokenA = types.MustAddressFromHex("0x00000000000000000000000000000000000000aa")
	testTokenB = types.MustAddressFromHex("0x00000000000000000000000000000000000000bb")
	testMaker  = types.MustAddressFromHex("0x1111111111111111111111111111111111111111")
)

// testBackend is an in-memory Backend built around a real engine.
type testBackend struct {
	engine   *vm.Engine
	orders   map[types.Hash]*types.Order
	balances map[string]*uint256.Int
}

func newTestBackend() *testBackend {
	b := &testBackend{
		orders:   make(map[types.Hash]*types.Order),
		balances: make(map[string]*uint256.Int),
	}
	b.engine = vm.New(vm.Options{Ledger: b})
	return b
}

func balKey(order types.Hash, token types.TokenTail) string {
	return string(order[:]) + string(token[:])
}

func (b *testBackend) Balance(order types.Hash, token types.TokenTail) (*uint256.Int, bool, error) {
	v, ok := b.balances[balKey(order, token)]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (b *testBackend) Quote(order *types.Order, q vm.Query) (*vm.Result, error) {
	return b.engine.Quote(order, q)
}

func (b *testBackend) Swap(order *types.Order, q vm.Query) (*vm.Result, error) {
	res, err := b.engine.Swap(order, q)
	if err != nil {
		return nil, err
	}
	for _, w := range res.LedgerWrites {
		b.balances[balKey(w.Order, w.Token)] = w.Value.Clone()
	}
	return res, nil
}

func (b *testBackend) RegisterOrder(order *types.Order) (types.Hash, error) {
	hash := order.Hash()
	b.orders[hash] = order
	return hash, nil
}

func (b *testBackend) Order(hash types.Hash) (*types.Order, error) {
	order, ok := b.orders[hash]
	if !ok {
		return nil, orderstore.ErrOrderNotFound
	}
	return order, nil
}

func (b *testBackend) OrderBalances(hash types.Hash) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for key, v := range b.balances {
		if key[:types.HashSize] != string(hash[:]) {
			continue
		}
		tail, err := types.TokenTailFromBytes([]byte(key[types.HashSize:]))
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.Entry{Token: tail, Value: v.Clone()})
	}
	return entries, nil
}

func testServer(t *testing.T) (*Server, *httptest.Server, *testBackend) {
	t.Helper()
	backend := newTestBackend()
	cfg := DefaultConfig()
	cfg.Version = "test"
	s := New(cfg, backend)
	ts := httptest.NewServer(http.HandlerFunc(s.handleRPC))
	t.Cleanup(ts.Close)
	return s, ts, backend
}

func doRPC(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func decodeResult(t *testing.T, resp Response, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected RPC error: %v", resp.Error)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

// e18str returns n * 1e18 as a decimal string.
func e18str(n uint64) string {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18)).Dec()
}

// xycProgramB64 builds a static constant-product program and encodes it.
func xycProgramB64(t *testing.T) string {
	t.Helper()
	hundred := new(uint256.Int).Mul(uint256.NewInt(100), uint256.NewInt(1e18))
	program, err := vm.NewBuilder().
		StaticBalances([]types.Address{testTokenA, testTokenB}, []*uint256.Int{hundred, hundred}).
		XycSwap().
		Program()
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	encoded, err := EncodeProgram(program, EncodingBase64)
	if err != nil {
		t.Fatalf("encode program: %v", err)
	}
	return encoded
}

func TestGetHealth(t *testing.T) {
	s, ts, _ := testServer(t)

	resp := doRPC(t, ts.URL, "getHealth", nil)
	if resp.Error != nil || resp.Result != "ok" {
		t.Fatalf("getHealth = (%v, %v)", resp.Result, resp.Error)
	}

	s.SetHealthy(false)
	resp = doRPC(t, ts.URL, "getHealth", nil)
	if resp.Error == nil || resp.Error.Code != NodeUnhealthy {
		t.Fatalf("unhealthy getHealth error = %v", resp.Error)
	}
}

func TestGetVersion(t *testing.T) {
	_, ts, _ := testServer(t)

	var result VersionResult
	decodeResult(t, doRPC(t, ts.URL, "getVersion", nil), &result)
	if result.Version != "test" {
		t.Fatalf("version = %q", result.Version)
	}
}

func TestMethodNotFound(t *testing.T) {
	_, ts, _ := testServer(t)

	resp := doRPC(t, ts.URL, "noSuchMethod", nil)
	if resp.Error == nil || resp.Error.Code != MethodNotFound {
		t.Fatalf("error = %v", resp.Error)
	}
}

func TestSwapQuoteInlineOrder(t *testing.T) {
	_, ts, _ := testServer(t)

	var result SwapResult
	decodeResult(t, doRPC(t, ts.URL, "swapQuote", SwapParams{
		Order: &OrderParam{
			Maker:   testMaker.String(),
			Program: xycProgramB64(t),
		},
		TokenIn:  testTokenA.String(),
		TokenOut: testTokenB.String(),
		Amount:   e18str(50),
		ExactIn:  true,
	}), &result)

	if result.AmountOut != "33333333333333333333" {
		t.Fatalf("amountOut = %s", result.AmountOut)
	}
	if result.AmountIn != e18str(50) {
		t.Fatalf("amountIn = %s", result.AmountIn)
	}
	if result.ProtocolFee != "" {
		t.Fatalf("unexpected protocol fee %s", result.ProtocolFee)
	}
}

func TestRegisterAndExecuteByHash(t *testing.T) {
	_, ts, backend := testServer(t)

	hundred := new(uint256.Int).Mul(uint256.NewInt(100), uint256.NewInt(1e18))
	program, err := vm.NewBuilder().
		DynamicBalances(
			[]types.TokenTail{testTokenA.Tail(), testTokenB.Tail()},
			[]*uint256.Int{hundred, hundred},
		).
		XycSwap().
		Program()
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	encoded, err := EncodeProgram(program, EncodingBase58)
	if err != nil {
		t.Fatalf("encode program: %v", err)
	}

	var reg RegisterOrderResult
	decodeResult(t, doRPC(t, ts.URL, "registerOrder", RegisterOrderParams{
		Order: OrderParam{
			Maker:    testMaker.String(),
			Program:  encoded,
			Encoding: EncodingBase58,
		},
	}), &reg)

	swapParams := SwapParams{
		OrderHash: reg.OrderHash,
		TokenIn:   testTokenA.String(),
		TokenOut:  testTokenB.String(),
		Amount:    e18str(50),
		ExactIn:   true,
	}

	var first SwapResult
	decodeResult(t, doRPC(t, ts.URL, "swapExecute", swapParams), &first)
	if first.AmountOut != "33333333333333333333" {
		t.Fatalf("first amountOut = %s", first.AmountOut)
	}

	// The fill settled: balances are live and the second fill prices worse.
	var balances OrderBalancesResult
	decodeResult(t, doRPC(t, ts.URL, "getOrderBalances", OrderQueryParams{
		OrderHash: reg.OrderHash,
	}), &balances)
	if len(balances.Balances) != 2 {
		t.Fatalf("got %d balance rows, want 2", len(balances.Balances))
	}

	var second SwapResult
	decodeResult(t, doRPC(t, ts.URL, "swapExecute", swapParams), &second)
	secondOut, _ := uint256.FromDecimal(second.AmountOut)
	firstOut, _ := uint256.FromDecimal(first.AmountOut)
	if !secondOut.Lt(firstOut) {
		t.Fatalf("second fill %s not below first %s", second.AmountOut, first.AmountOut)
	}

	if len(backend.balances) != 2 {
		t.Fatalf("backend holds %d rows, want 2", len(backend.balances))
	}
}

func TestGetOrder(t *testing.T) {
	_, ts, _ := testServer(t)

	program := xycProgramB64(t)
	var reg RegisterOrderResult
	decodeResult(t, doRPC(t, ts.URL, "registerOrder", RegisterOrderParams{
		Order: OrderParam{Maker: testMaker.String(), Program: program, Traits: 42},
	}), &reg)

	var result OrderResult
	decodeResult(t, doRPC(t, ts.URL, "getOrder", OrderQueryParams{
		OrderHash: reg.OrderHash,
	}), &result)

	if result.Maker != testMaker.String() {
		t.Fatalf("maker = %s", result.Maker)
	}
	if result.Traits != 42 || result.Expiration != 42 {
		t.Fatalf("traits = %d, expiration = %d", result.Traits, result.Expiration)
	}
	if result.Program != program || result.Encoding != EncodingBase64 {
		t.Fatalf("program round trip failed")
	}
	if result.ProgramID != reg.ProgramID {
		t.Fatalf("programId mismatch: %s vs %s", result.ProgramID, reg.ProgramID)
	}

	// zstd encoding round-trips too.
	var compressed OrderResult
	decodeResult(t, doRPC(t, ts.URL, "getOrder", OrderQueryParams{
		OrderHash: reg.OrderHash,
		Encoding:  EncodingBase64Zstd,
	}), &compressed)
	raw, err := DecodeProgram(compressed.Program, EncodingBase64Zstd)
	if err != nil {
		t.Fatalf("decode zstd program: %v", err)
	}
	plain, _ := DecodeProgram(program, EncodingBase64)
	if !bytes.Equal(raw, plain) {
		t.Fatalf("zstd program round trip mismatch")
	}
}

func TestErrorMapping(t *testing.T) {
	_, ts, _ := testServer(t)

	t.Run("order not found", func(t *testing.T) {
		resp := doRPC(t, ts.URL, "getOrder", OrderQueryParams{
			OrderHash: "0x" + string(bytes.Repeat([]byte("0"), 64)),
		})
		if resp.Error == nil || resp.Error.Code != OrderNotFound {
			t.Fatalf("error = %v", resp.Error)
		}
	})

	t.Run("both order and hash", func(t *testing.T) {
		resp := doRPC(t, ts.URL, "swapQuote", SwapParams{
			Order:     &OrderParam{Maker: testMaker.String(), Program: xycProgramB64(t)},
			OrderHash: "0x" + string(bytes.Repeat([]byte("0"), 64)),
			TokenIn:   testTokenA.String(),
			TokenOut:  testTokenB.String(),
			Amount:    "1",
			ExactIn:   true,
		})
		if resp.Error == nil || resp.Error.Code != InvalidParams {
			t.Fatalf("error = %v", resp.Error)
		}
	})

	t.Run("same token", func(t *testing.T) {
		resp := doRPC(t, ts.URL, "swapQuote", SwapParams{
			Order:    &OrderParam{Maker: testMaker.String(), Program: xycProgramB64(t)},
			TokenIn:  testTokenA.String(),
			TokenOut: testTokenA.String(),
			Amount:   "1",
			ExactIn:  true,
		})
		if resp.Error == nil || resp.Error.Code != InvalidParams {
			t.Fatalf("error = %v", resp.Error)
		}
	})

	t.Run("invalid program", func(t *testing.T) {
		encoded, _ := EncodeProgram([]byte{0xff}, EncodingBase64)
		resp := doRPC(t, ts.URL, "swapQuote", SwapParams{
			Order:    &OrderParam{Maker: testMaker.String(), Program: encoded},
			TokenIn:  testTokenA.String(),
			TokenOut: testTokenB.String(),
			Amount:   "1",
			ExactIn:  true,
		})
		if resp.Error == nil || resp.Error.Code != InvalidProgram {
			t.Fatalf("error = %v", resp.Error)
		}
	})
}

func TestBatchRequest(t *testing.T) {
	_, ts, _ := testServer(t)

	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"getHealth"},
		{"jsonrpc":"2.0","id":2,"method":"getVersion"},
		{"jsonrpc":"1.0","id":3,"method":"getHealth"}
	]`)
	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var responses []Response
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[0].Error != nil || responses[0].Result != "ok" {
		t.Fatalf("batch[0] = %+v", responses[0])
	}
	if responses[1].Error != nil {
		t.Fatalf("batch[1] error = %v", responses[1].Error)
	}
	if responses[2].Error == nil || responses[2].Error.Code != InvalidRequest {
		t.Fatalf("batch[2] = %+v", responses[2])
	}
}

func TestParseError(t *testing.T) {
	_, ts, _ := testServer(t)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != ParseError {
		t.Fatalf("error = %v", out.Error)
	}
}
