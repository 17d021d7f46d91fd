// Package rpc provides the JSON-RPC 2.0 types for the SwapVM API.
package rpc

import (
	"encoding/json"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Encoding types for program bytes in requests and responses.
type Encoding string

const (
	EncodingBase58     Encoding = "base58"
	EncodingBase64     Encoding = "base64"
	EncodingBase64Zstd Encoding = "base64+zstd"
)

// OrderParam carries an order inline in a request.
type OrderParam struct {
	// Maker is the hex maker address.
	Maker string `json:"maker"`

	// Traits is the packed traits word (expiration + flags).
	Traits uint64 `json:"traits,omitempty"`

	// Program is the encoded program byte string.
	Program string `json:"program"`

	// Encoding of the program field. Defaults to base64.
	Encoding Encoding `json:"encoding,omitempty"`
}

// SwapParams are the parameters of swapQuote and swapExecute. Exactly
// one of Order and OrderHash must be set: an inline order quotes
// without registration, a hash executes a registered order.
type SwapParams struct {
	Order     *OrderParam `json:"order,omitempty"`
	OrderHash string      `json:"orderHash,omitempty"`

	// TokenIn and TokenOut are hex token addresses.
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`

	// Amount is a decimal string: the input amount for exactIn, the
	// output amount otherwise.
	Amount  string `json:"amount"`
	ExactIn bool   `json:"exactIn"`

	// Taker is the hex taker address. Optional for quotes.
	Taker string `json:"taker,omitempty"`

	// Threshold is the taker's decimal bound on the computed side:
	// minimum output for exactIn, maximum input otherwise. Optional.
	Threshold string `json:"threshold,omitempty"`

	// Deadline is a unix timestamp after which the call is rejected.
	Deadline uint64 `json:"deadline,omitempty"`
}

// SwapResult is the result of swapQuote and swapExecute. Amounts are
// decimal strings.
type SwapResult struct {
	OrderHash     string `json:"orderHash"`
	AmountIn      string `json:"amountIn"`
	AmountOut     string `json:"amountOut"`
	ProtocolFee   string `json:"protocolFee,omitempty"`
	ProtocolFeeTo string `json:"protocolFeeTo,omitempty"`
}

// RegisterOrderParams are the parameters of registerOrder.
type RegisterOrderParams struct {
	Order OrderParam `json:"order"`
}

// RegisterOrderResult is the result of registerOrder.
type RegisterOrderResult struct {
	OrderHash string `json:"orderHash"`
	ProgramID string `json:"programId"`
}

// OrderQueryParams are the parameters of getOrder and getOrderBalances.
type OrderQueryParams struct {
	OrderHash string `json:"orderHash"`

	// Encoding of the program field in the result. Defaults to base64.
	Encoding Encoding `json:"encoding,omitempty"`
}

// OrderResult is the result of getOrder.
type OrderResult struct {
	OrderHash  string   `json:"orderHash"`
	ProgramID  string   `json:"programId"`
	Maker      string   `json:"maker"`
	Traits     uint64   `json:"traits"`
	Expiration uint64   `json:"expiration,omitempty"`
	Program    string   `json:"program"`
	Encoding   Encoding `json:"encoding"`
}

// BalanceEntry is one token balance row of an order.
type BalanceEntry struct {
	// Token is the hex token tail.
	Token string `json:"token"`

	// Value is the decimal balance.
	Value string `json:"value"`
}

// OrderBalancesResult is the result of getOrderBalances.
type OrderBalancesResult struct {
	OrderHash string         `json:"orderHash"`
	Balances  []BalanceEntry `json:"balances"`
}

// VersionResult is the result of getVersion.
type VersionResult struct {
	Version string `json:"version"`
}
