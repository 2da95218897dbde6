package domain

import "fmt"

// Kind is the error taxonomy from §7: every component classifies failures
// into one of these kinds so callers can recover it with errors.As without
// bespoke sentinel values per package.
type Kind string

const (
	KindTransientExternal   Kind = "transient_external"
	KindFatalExternal       Kind = "fatal_external"
	KindInvariantViolation  Kind = "invariant_violation"
	KindStoreError          Kind = "store_error"
	KindInvalidRequest      Kind = "invalid_request"
	KindRoutingError        Kind = "routing_error"
	KindContractError       Kind = "contract_error"
)

// Error is the typed error carried through every layer. Code is the stable
// string surfaced to REST clients (§6); Kind drives retry/propagation
// policy (§7).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error with no wrapped cause.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds a typed error wrapping an underlying cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Routing error codes (§4.5, §7).
const (
	CodeNoRoute              = "no_route"
	CodeInsufficientLiquidity = "insufficient_liquidity"
	CodeAmountTooSmall       = "amount_too_small"
	CodeInvalidRequest       = "invalid_request"
	CodePairNotFound         = "pair_not_found"
	CodeRateLimited          = "rate_limited"
)

// ErrNoRoute builds the routing-engine "no path found" error.
func ErrNoRoute(source, dest Asset) *Error {
	return NewError(KindRoutingError, CodeNoRoute, fmt.Sprintf("no route from %s to %s", source, dest))
}

// ErrInsufficientLiquidity builds the "every candidate path failed
// simulation" error.
func ErrInsufficientLiquidity(source, dest Asset) *Error {
	return NewError(KindRoutingError, CodeInsufficientLiquidity, fmt.Sprintf("insufficient liquidity from %s to %s", source, dest))
}

// Contract error variants, §4.6.
type ContractErrorVariant string

const (
	ErrNotInitialized    ContractErrorVariant = "NotInitialized"
	ErrAlreadyInitialized ContractErrorVariant = "AlreadyInitialized"
	ErrUnauthorized      ContractErrorVariant = "Unauthorized"
	ErrPaused            ContractErrorVariant = "Paused"
	ErrInvalidRoute      ContractErrorVariant = "InvalidRoute"
	ErrRouteTooLong      ContractErrorVariant = "RouteTooLong"
	ErrPoolNotRegistered ContractErrorVariant = "PoolNotRegistered"
	ErrExpired           ContractErrorVariant = "Expired"
	ErrSlippageExceeded  ContractErrorVariant = "SlippageExceeded"
	ErrOverflow          ContractErrorVariant = "Overflow"
	ErrPoolCallFailed    ContractErrorVariant = "PoolCallFailed"
)

// ContractError wraps one of the fixed contract error variants, optionally
// carrying the failing hop index (for PoolCallFailed).
type ContractError struct {
	Variant  ContractErrorVariant
	HopIndex int
}

func (e *ContractError) Error() string {
	if e.Variant == ErrPoolCallFailed {
		return fmt.Sprintf("%s(hop=%d)", e.Variant, e.HopIndex)
	}
	return string(e.Variant)
}

// NewContractError builds a contract error for a variant with no payload.
func NewContractError(v ContractErrorVariant) *ContractError {
	return &ContractError{Variant: v}
}

// NewPoolCallFailed builds the PoolCallFailed(hop_index) variant.
func NewPoolCallFailed(hopIndex int) *ContractError {
	return &ContractError{Variant: ErrPoolCallFailed, HopIndex: hopIndex}
}
