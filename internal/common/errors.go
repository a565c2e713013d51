package common

import "fmt"

// ErrorKind is the closed taxonomy of spec.md §7, each mapped to an
// HTTP-convention status code by StatusCode.
type ErrorKind string

const (
	NotFound             ErrorKind = "NOT_FOUND"
	InvalidArgument      ErrorKind = "INVALID_ARGUMENT"
	MarketInactive       ErrorKind = "MARKET_INACTIVE"
	InsufficientBalance  ErrorKind = "INSUFFICIENT_BALANCE"
	InsufficientPosition ErrorKind = "INSUFFICIENT_POSITION"
	NoLiquidity          ErrorKind = "NO_LIQUIDITY"
	DuplicateMarket      ErrorKind = "DUPLICATE_MARKET"
	TransportFailure     ErrorKind = "TRANSPORT_FAILURE"
	Timeout              ErrorKind = "TIMEOUT"
)

// Error is the engine's only error type. Every public operation either
// succeeds or returns one of these, never a bare errors.New.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StatusCode maps an ErrorKind to the HTTP-convention status code spec.md §7
// requires; handlers pass it through verbatim for 4xx and collapse transport
// errors to 500.
func StatusCode(kind ErrorKind) int {
	switch kind {
	case NotFound:
		return 404
	case InvalidArgument, MarketInactive, InsufficientBalance, InsufficientPosition, NoLiquidity, DuplicateMarket:
		return 400
	case TransportFailure, Timeout:
		return 500
	default:
		return 500
	}
}

// AsError extracts an *Error from err, or wraps it as an internal TransportFailure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: TransportFailure, Message: err.Error()}
}
