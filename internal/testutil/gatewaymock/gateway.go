package gatewaymock

import (
	"context"

	"github.com/shopspring/decimal"

	"mikopo-backend/internal/domain/gateway"
)

var _ gateway.Gateway = (*Gateway)(nil)

// Gateway is a function-backed mock that satisfies gateway.Gateway.
type Gateway struct {
	InitiatePaymentRequestFn func(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error)
}

func (m *Gateway) InitiatePaymentRequest(ctx context.Context, phone string, amount decimal.Decimal, reference string) (string, error) {
	if m.InitiatePaymentRequestFn != nil {
		return m.InitiatePaymentRequestFn(ctx, phone, amount, reference)
	}
	return "MM-REF-1", nil
}
