package payment

import "errors"

var (
	// ErrUnknownIntent means a callback referenced a correlation token we
	// never issued. Logged and rejected, never retried.
	ErrUnknownIntent = errors.New("payment: unknown payment intent")
	// ErrAmountMismatch means the gateway confirmed an amount that differs
	// from the intent beyond the configured tolerance.
	ErrAmountMismatch = errors.New("payment: confirmed amount does not match intent")
	// ErrConcurrentModification is returned when a guarded status update
	// found the intent already moved by a concurrent callback or sweep.
	ErrConcurrentModification = errors.New("payment: intent modified concurrently")
	ErrGatewayTimeout         = errors.New("payment: gateway request timed out")
	ErrRetriesExhausted       = errors.New("payment: retry limit reached")
	// ErrNotRetryable: only FAILED intents may be re-initiated.
	ErrNotRetryable = errors.New("payment: intent is not in a retryable state")
	// ErrNotReversible guards Cancel: only the latest APPLIED intent of a
	// loan may be reversed.
	ErrNotReversible = errors.New("payment: intent cannot be reversed")
)
