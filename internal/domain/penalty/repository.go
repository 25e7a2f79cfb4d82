package penalty

import "context"

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Save(ctx context.Context, e *Entry) error
	// GetByInstallment returns the entry for an installment, if any. At most
	// one entry exists per installment.
	GetByInstallment(ctx context.Context, installmentID uint64) (*Entry, error)
	ListByLoan(ctx context.Context, loanNumericID uint64) ([]*Entry, error)
}
