package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByLoanIDForUpdate locks the loan row for the duration of the
	// enclosing transaction; all ledger mutations go through it.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	Save(ctx context.Context, l *Loan) error
	// ListByStatuses returns loans in any of the given statuses, used by the
	// overdue sweep. Loans are returned oldest first.
	ListByStatuses(ctx context.Context, statuses ...Status) ([]*Loan, error)
}
