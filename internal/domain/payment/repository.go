package payment

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, i *Intent) error
	GetByIntentID(ctx context.Context, intentID string) (*Intent, error)
	GetByToken(ctx context.Context, correlationToken string) (*Intent, error)
	// TransitionStatus persists the intent guarded by a compare-and-set on
	// its previous status: the row is updated only while its stored status
	// still equals from. Returns ErrConcurrentModification when another
	// writer progressed the intent first.
	TransitionStatus(ctx context.Context, i *Intent, from Status) error
	// ListExpirable returns PENDING intents whose ExpiresAt passed asOf.
	ListExpirable(ctx context.Context, asOf time.Time) ([]*Intent, error)

	CreateAllocations(ctx context.Context, allocs []*Allocation) error
	ListAllocationsByIntent(ctx context.Context, intentID string) ([]*Allocation, error)
	// LastAppliedByLoan returns the most recently applied intent of a loan,
	// or ErrUnknownIntent when the loan has none.
	LastAppliedByLoan(ctx context.Context, loanNumericID uint64) (*Intent, error)
}
