package uow

import (
	"context"

	"mikopo-backend/internal/domain/installment"
	"mikopo-backend/internal/domain/loan"
	"mikopo-backend/internal/domain/payment"
	"mikopo-backend/internal/domain/penalty"
)

// Repos bundles the repositories bound to one transaction.
type Repos struct {
	Loans        loan.Repository
	Installments installment.Repository
	Payments     payment.Repository
	Penalties    penalty.Repository
}

type UnitOfWork interface {
	// WithinTx runs fn inside a database transaction.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinLoanTx additionally locks the loan row up-front, serialising all
	// ledger mutations for that loan. Concurrent callers queue on the lock
	// and observe each other's committed state, never a partial one.
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
