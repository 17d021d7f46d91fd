package rpc

import (
	"errors"
	"fmt"

	"github.com/fortiblox/swapvm/pkg/curve"
	"github.com/fortiblox/swapvm/pkg/orderstore"
	"github.com/fortiblox/swapvm/pkg/vm"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// SwapVM-specific error codes.
const (
	// OrderNotFound indicates the order hash is not registered.
	OrderNotFound = -32001

	// OrderExpired indicates the order's expiration has passed.
	OrderExpired = -32002

	// DeadlineExceeded indicates the taker's deadline has passed.
	DeadlineExceeded = -32003

	// ThresholdNotMet indicates the computed amounts violate the taker's bound.
	ThresholdNotMet = -32004

	// InsufficientLiquidity indicates the order cannot source the trade.
	InsufficientLiquidity = -32005

	// InvalidProgram indicates the order's program is malformed.
	InvalidProgram = -32006

	// FeeSourceUnavailable indicates the dynamic fee provider call failed.
	FeeSourceUnavailable = -32007

	// NodeUnhealthy indicates the node is unhealthy.
	NodeUnhealthy = -32008
)

// Common error values.
var (
	ErrParseError     = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams  = NewRPCError(InvalidParams, "Invalid params")
	ErrInternalError  = NewRPCError(InternalError, "Internal error")
	ErrNodeUnhealthy  = NewRPCError(NodeUnhealthy, "Node is unhealthy")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an invalid params error with a custom message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// InvalidParamsErrorf creates an invalid params error with a formatted message.
func InvalidParamsErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParams, fmt.Sprintf(format, args...))
}

// InternalServerErrorf creates an internal error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}

// executionError translates an engine or store error into its RPC code.
// The error message is passed through so clients see the exact failure.
func executionError(err error) *RPCError {
	code := InternalError
	switch {
	case errors.Is(err, orderstore.ErrOrderNotFound):
		code = OrderNotFound
	case errors.Is(err, vm.ErrOrderExpired):
		code = OrderExpired
	case errors.Is(err, vm.ErrDeadlineExceeded):
		code = DeadlineExceeded
	case errors.Is(err, vm.ErrThresholdNotMet):
		code = ThresholdNotMet
	case errors.Is(err, vm.ErrInsufficientLiquidity),
		errors.Is(err, vm.ErrLedgerUnderflow),
		errors.Is(err, curve.ErrInsufficientBalance),
		errors.Is(err, curve.ErrZeroBalance),
		errors.Is(err, curve.ErrNoSolution):
		code = InsufficientLiquidity
	case errors.Is(err, vm.ErrUnknownOpcode),
		errors.Is(err, vm.ErrShortProgram),
		errors.Is(err, vm.ErrJumpOutOfBounds),
		errors.Is(err, vm.ErrRecomputeDetected),
		errors.Is(err, vm.ErrFeeAfterSwap),
		errors.Is(err, vm.ErrMissingToken),
		errors.Is(err, vm.ErrFeeRateTooHigh),
		errors.Is(err, vm.ErrZeroFeeRecipient),
		errors.Is(err, vm.ErrRequiresBalances),
		errors.Is(err, vm.ErrGrowthTooSmall):
		code = InvalidProgram
	case errors.Is(err, vm.ErrNoFeeSource),
		errors.Is(err, vm.ErrFeeSourceFailed):
		code = FeeSourceUnavailable
	case errors.Is(err, vm.ErrZeroAmount),
		errors.Is(err, vm.ErrSameToken):
		code = InvalidParams
	}
	return NewRPCError(code, err.Error())
}
