package types

import "fmt"

// MarketDataError wraps a failed order book or market-limits fetch.
// The affected pair is skipped for the cycle and retried on the next one.
type MarketDataError struct {
	Exchange string
	Symbol   string
	Err      error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data for %s on %s: %v", e.Symbol, e.Exchange, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// ValidationError marks input rejected before any computation,
// typically a malformed order book.
type ValidationError struct {
	Exchange string
	Symbol   string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation for %s on %s: %s", e.Symbol, e.Exchange, e.Reason)
}

// InvalidStateError reports a ledger operation that violates the
// position state machine. It is surfaced to the caller, never retried.
type InvalidStateError struct {
	Op         string
	PositionID string
	Reason     string
}

func (e *InvalidStateError) Error() string {
	if e.PositionID == "" {
		return fmt.Sprintf("%s: invalid state: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s on position %s: invalid state: %s", e.Op, e.PositionID, e.Reason)
}

// OrderExecutionError wraps a gateway order rejection. The attempted
// ledger transition is aborted and a failure notification is sent.
type OrderExecutionError struct {
	Exchange string
	Symbol   string
	Side     string // "spot_buy", "spot_sell", "futures_buy", "futures_sell"
	Err      error
}

func (e *OrderExecutionError) Error() string {
	return fmt.Sprintf("%s order for %s on %s failed: %v", e.Side, e.Symbol, e.Exchange, e.Err)
}

func (e *OrderExecutionError) Unwrap() error { return e.Err }

// PersistenceError reports a store write that could not commit after
// retries. For funds-affecting state this is an operator-visible
// failure, never silently dropped.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
