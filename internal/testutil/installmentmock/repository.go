package installmentmock

import (
	"context"

	domain "mikopo-backend/internal/domain/installment"
)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateBatchFn func(ctx context.Context, entries []*domain.Entry) error
	GetByIDFn     func(ctx context.Context, id uint64) (*domain.Entry, error)
	ListByLoanFn  func(ctx context.Context, loanNumericID uint64) ([]*domain.Entry, error)
	SaveFn        func(ctx context.Context, e *domain.Entry) error
}

func (m *Repo) CreateBatch(ctx context.Context, entries []*domain.Entry) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, entries)
	}
	return nil
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Entry, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByLoan(ctx context.Context, loanNumericID uint64) ([]*domain.Entry, error) {
	if m.ListByLoanFn != nil {
		return m.ListByLoanFn(ctx, loanNumericID)
	}
	return nil, nil
}

func (m *Repo) Save(ctx context.Context, e *domain.Entry) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, e)
	}
	return nil
}
