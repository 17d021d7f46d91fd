package rpc

import (
	"encoding/json"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/vm"
	"github.com/holiman/uint256"
)

// unmarshalParams decodes params into v, accepting either a bare object
// or a single-element positional array.
func unmarshalParams(params json.RawMessage, v interface{}) *RPCError {
	if len(params) == 0 {
		return InvalidParamsError("missing params")
	}
	data := params
	if params[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(params, &list); err != nil {
			return InvalidParamsError(err.Error())
		}
		if len(list) != 1 {
			return InvalidParamsErrorf("expected 1 param object, got %d", len(list))
		}
		data = list[0]
	}
	if err := json.Unmarshal(data, v); err != nil {
		return InvalidParamsError(err.Error())
	}
	return nil
}

func parseAddress(field, s string) (types.Address, *RPCError) {
	if s == "" {
		return types.Address{}, InvalidParamsErrorf("missing %s", field)
	}
	a, err := types.AddressFromHex(s)
	if err != nil {
		return types.Address{}, InvalidParamsErrorf("invalid %s: %v", field, err)
	}
	return a, nil
}

func parseAmount(field, s string) (*uint256.Int, *RPCError) {
	if s == "" {
		return nil, InvalidParamsErrorf("missing %s", field)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid %s: %v", field, err)
	}
	return v, nil
}

func parseOrderParam(p *OrderParam) (*types.Order, *RPCError) {
	maker, rpcErr := parseAddress("order.maker", p.Maker)
	if rpcErr != nil {
		return nil, rpcErr
	}
	program, err := DecodeProgram(p.Program, p.Encoding)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid order.program: %v", err)
	}
	order := &types.Order{
		Maker:   maker,
		Traits:  types.OrderTraits(p.Traits),
		Program: program,
	}
	if err := order.Validate(); err != nil {
		return nil, InvalidParamsError(err.Error())
	}
	return order, nil
}

// resolveSwap parses SwapParams into the order and query to execute.
func (s *Server) resolveSwap(params json.RawMessage) (*types.Order, vm.Query, *RPCError) {
	var p SwapParams
	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, vm.Query{}, rpcErr
	}

	if (p.Order == nil) == (p.OrderHash == "") {
		return nil, vm.Query{}, InvalidParamsError("exactly one of order and orderHash must be set")
	}

	var order *types.Order
	if p.Order != nil {
		o, rpcErr := parseOrderParam(p.Order)
		if rpcErr != nil {
			return nil, vm.Query{}, rpcErr
		}
		order = o
	} else {
		hash, err := types.HashFromHex(p.OrderHash)
		if err != nil {
			return nil, vm.Query{}, InvalidParamsErrorf("invalid orderHash: %v", err)
		}
		o, err := s.backend.Order(hash)
		if err != nil {
			return nil, vm.Query{}, executionError(err)
		}
		order = o
	}

	tokenIn, rpcErr := parseAddress("tokenIn", p.TokenIn)
	if rpcErr != nil {
		return nil, vm.Query{}, rpcErr
	}
	tokenOut, rpcErr := parseAddress("tokenOut", p.TokenOut)
	if rpcErr != nil {
		return nil, vm.Query{}, rpcErr
	}
	amount, rpcErr := parseAmount("amount", p.Amount)
	if rpcErr != nil {
		return nil, vm.Query{}, rpcErr
	}

	q := vm.Query{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		Amount:    amount,
		IsExactIn: p.ExactIn,
		Deadline:  p.Deadline,
	}
	if p.Taker != "" {
		taker, rpcErr := parseAddress("taker", p.Taker)
		if rpcErr != nil {
			return nil, vm.Query{}, rpcErr
		}
		q.Taker = taker
	}
	if p.Threshold != "" {
		threshold, rpcErr := parseAmount("threshold", p.Threshold)
		if rpcErr != nil {
			return nil, vm.Query{}, rpcErr
		}
		q.Threshold = threshold
	}
	return order, q, nil
}

func swapResult(res *vm.Result) *SwapResult {
	out := &SwapResult{
		OrderHash: res.OrderHash.String(),
		AmountIn:  res.AmountIn.Dec(),
		AmountOut: res.AmountOut.Dec(),
	}
	if !res.ProtocolFee.IsZero() {
		out.ProtocolFee = res.ProtocolFee.Dec()
		out.ProtocolFeeTo = res.ProtocolFeeTo.String()
	}
	return out
}

// swapQuote computes swap amounts without touching state.
func (s *Server) swapQuote(params json.RawMessage) (interface{}, *RPCError) {
	order, q, rpcErr := s.resolveSwap(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.backend.Quote(order, q)
	if err != nil {
		return nil, executionError(err)
	}
	return swapResult(res), nil
}

// swapExecute computes swap amounts and commits the fill's ledger writes.
func (s *Server) swapExecute(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	order, q, rpcErr := s.resolveSwap(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.backend.Swap(order, q)
	if err != nil {
		return nil, executionError(err)
	}
	return swapResult(res), nil
}

// registerOrder persists an order for later execution by hash.
func (s *Server) registerOrder(params json.RawMessage) (interface{}, *RPCError) {
	var p RegisterOrderParams
	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	order, rpcErr := parseOrderParam(&p.Order)
	if rpcErr != nil {
		return nil, rpcErr
	}

	hash, err := s.backend.RegisterOrder(order)
	if err != nil {
		return nil, executionError(err)
	}
	return &RegisterOrderResult{
		OrderHash: hash.String(),
		ProgramID: order.ProgramID().String(),
	}, nil
}

// getOrder returns a registered order.
func (s *Server) getOrder(params json.RawMessage) (interface{}, *RPCError) {
	var p OrderQueryParams
	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := types.HashFromHex(p.OrderHash)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid orderHash: %v", err)
	}

	order, err := s.backend.Order(hash)
	if err != nil {
		return nil, executionError(err)
	}

	encoding := p.Encoding
	if encoding == "" {
		encoding = EncodingBase64
	}
	program, err := EncodeProgram(order.Program, encoding)
	if err != nil {
		return nil, InvalidParamsError(err.Error())
	}

	return &OrderResult{
		OrderHash:  hash.String(),
		ProgramID:  order.ProgramID().String(),
		Maker:      order.Maker.String(),
		Traits:     uint64(order.Traits),
		Expiration: order.Traits.Expiration(),
		Program:    program,
		Encoding:   encoding,
	}, nil
}

// getOrderBalances returns the persisted balance rows of an order.
func (s *Server) getOrderBalances(params json.RawMessage) (interface{}, *RPCError) {
	var p OrderQueryParams
	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := types.HashFromHex(p.OrderHash)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid orderHash: %v", err)
	}

	entries, err := s.backend.OrderBalances(hash)
	if err != nil {
		return nil, executionError(err)
	}

	result := &OrderBalancesResult{
		OrderHash: hash.String(),
		Balances:  make([]BalanceEntry, 0, len(entries)),
	}
	for _, e := range entries {
		result.Balances = append(result.Balances, BalanceEntry{
			Token: e.Token.String(),
			Value: e.Value.Dec(),
		})
	}
	return result, nil
}

// getHealth returns "ok" while the node is serving.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

// getVersion returns the node version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return &VersionResult{Version: s.config.Version}, nil
}
