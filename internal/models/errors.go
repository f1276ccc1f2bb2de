package models

import "errors"

// Error taxonomy for the trading core. Every component that crosses a
// trust boundary (exchange I/O, AI advisor, config) returns one of these
// (wrapped with fmt.Errorf("%w: ...") for context) so callers can branch
// with errors.Is instead of string matching.
var (
	// ErrTransientExchange covers network errors, 5xx, and timeouts talking
	// to the exchange. The caller skips the current cycle and retries later.
	ErrTransientExchange = errors.New("transient exchange error")

	// ErrOrderRejected is carried on an OrderResult as well as returned
	// directly; an open that is rejected aborts the cycle, a stop-loss that
	// is rejected is retried next cycle with an ERROR log.
	ErrOrderRejected = errors.New("order rejected")

	// ErrIndicatorUnready means fewer than the minimum bar count was
	// available to compute a snapshot; the caller treats this as HOLD.
	ErrIndicatorUnready = errors.New("indicator unready")

	// ErrConfigError is fatal at startup; the service must refuse to start.
	ErrConfigError = errors.New("configuration error")

	// ErrInvariantViolation covers conditions that should be structurally
	// impossible (a short position observed, a monotonicity break in the
	// tiered store). The orchestrator enters a defensive mode on this error:
	// no new opens, only close/reduce actions.
	ErrInvariantViolation = errors.New("invariant violation")
)
