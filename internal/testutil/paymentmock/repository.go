package paymentmock

import (
	"context"
	"time"

	domain "mikopo-backend/internal/domain/payment"
)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn                  func(ctx context.Context, i *domain.Intent) error
	GetByIntentIDFn           func(ctx context.Context, intentID string) (*domain.Intent, error)
	GetByTokenFn              func(ctx context.Context, correlationToken string) (*domain.Intent, error)
	TransitionStatusFn        func(ctx context.Context, i *domain.Intent, from domain.Status) error
	ListExpirableFn           func(ctx context.Context, asOf time.Time) ([]*domain.Intent, error)
	CreateAllocationsFn       func(ctx context.Context, allocs []*domain.Allocation) error
	ListAllocationsByIntentFn func(ctx context.Context, intentID string) ([]*domain.Allocation, error)
	LastAppliedByLoanFn       func(ctx context.Context, loanNumericID uint64) (*domain.Intent, error)
}

func (m *Repo) Create(ctx context.Context, i *domain.Intent) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, i)
	}
	return nil
}

func (m *Repo) GetByIntentID(ctx context.Context, intentID string) (*domain.Intent, error) {
	if m.GetByIntentIDFn != nil {
		return m.GetByIntentIDFn(ctx, intentID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByToken(ctx context.Context, correlationToken string) (*domain.Intent, error) {
	if m.GetByTokenFn != nil {
		return m.GetByTokenFn(ctx, correlationToken)
	}
	return nil, context.Canceled
}

func (m *Repo) TransitionStatus(ctx context.Context, i *domain.Intent, from domain.Status) error {
	if m.TransitionStatusFn != nil {
		return m.TransitionStatusFn(ctx, i, from)
	}
	return nil
}

func (m *Repo) ListExpirable(ctx context.Context, asOf time.Time) ([]*domain.Intent, error) {
	if m.ListExpirableFn != nil {
		return m.ListExpirableFn(ctx, asOf)
	}
	return nil, nil
}

func (m *Repo) CreateAllocations(ctx context.Context, allocs []*domain.Allocation) error {
	if m.CreateAllocationsFn != nil {
		return m.CreateAllocationsFn(ctx, allocs)
	}
	return nil
}

func (m *Repo) ListAllocationsByIntent(ctx context.Context, intentID string) ([]*domain.Allocation, error) {
	if m.ListAllocationsByIntentFn != nil {
		return m.ListAllocationsByIntentFn(ctx, intentID)
	}
	return nil, nil
}

func (m *Repo) LastAppliedByLoan(ctx context.Context, loanNumericID uint64) (*domain.Intent, error) {
	if m.LastAppliedByLoanFn != nil {
		return m.LastAppliedByLoanFn(ctx, loanNumericID)
	}
	return nil, context.Canceled
}
