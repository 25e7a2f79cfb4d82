package penaltymock

import (
	"context"

	"gorm.io/gorm"

	domain "mikopo-backend/internal/domain/penalty"
)

// Repo is a function-backed mock that satisfies domain.Repository.
// GetByInstallment defaults to "no entry yet" since that is the common
// starting state in sweep tests.
type Repo struct {
	CreateFn           func(ctx context.Context, e *domain.Entry) error
	SaveFn             func(ctx context.Context, e *domain.Entry) error
	GetByInstallmentFn func(ctx context.Context, installmentID uint64) (*domain.Entry, error)
	ListByLoanFn       func(ctx context.Context, loanNumericID uint64) ([]*domain.Entry, error)
}

func (m *Repo) Create(ctx context.Context, e *domain.Entry) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, e)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, e *domain.Entry) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, e)
	}
	return nil
}

func (m *Repo) GetByInstallment(ctx context.Context, installmentID uint64) (*domain.Entry, error) {
	if m.GetByInstallmentFn != nil {
		return m.GetByInstallmentFn(ctx, installmentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Repo) ListByLoan(ctx context.Context, loanNumericID uint64) ([]*domain.Entry, error) {
	if m.ListByLoanFn != nil {
		return m.ListByLoanFn(ctx, loanNumericID)
	}
	return nil, nil
}
