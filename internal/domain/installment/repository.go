package installment

import "context"

type Repository interface {
	// CreateBatch inserts a freshly generated schedule in one go.
	CreateBatch(ctx context.Context, entries []*Entry) error
	GetByID(ctx context.Context, id uint64) (*Entry, error)
	// ListByLoan returns all entries for a loan ordered by sequence number.
	ListByLoan(ctx context.Context, loanNumericID uint64) ([]*Entry, error)
	Save(ctx context.Context, e *Entry) error
}
