package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the outbound side of the mobile-money integration. The wire
// format is provider-specific and lives behind this interface; the engine
// only needs the request/callback contract.
type Gateway interface {
	// InitiatePaymentRequest asks the provider to prompt the subscriber for
	// amount. reference is our correlation token and is echoed back in the
	// asynchronous callback; the returned providerRef identifies the request
	// on the provider side (kept for reconciliation reports).
	InitiatePaymentRequest(ctx context.Context, phone string, amount decimal.Decimal, reference string) (providerRef string, err error)
}
