package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/payment"
)

var (
	ErrInvalidAmount  = errors.New("ledger: amount must be positive")
	ErrLoanNotPayable = errors.New("ledger: loan does not accept payments in its current status")
	ErrReasonRequired = errors.New("ledger: a reason is required")
)

// ApplyInput describes one payment to allocate against a loan.
type ApplyInput struct {
	LoanID string
	Amount decimal.Decimal
	Source payment.Source
	// Reference is the caller-supplied receipt or transaction reference.
	Reference string
	// IntentID links the application to an existing payment intent (set by
	// the reconciler). When empty the ledger records a new MANUAL intent.
	IntentID string
	// TargetInstallmentID is the optional allocation hint: all money goes to
	// this installment (and its penalties) instead of the FIFO walk.
	TargetInstallmentID *uint64
	// Advance lets the payment prefund installments that are not yet due
	// beyond the next one. Without it such remainders are overpayments.
	Advance bool
}

// AllocationLine reports where one slice of a payment landed.
type AllocationLine struct {
	InstallmentSeq int             `json:"installment_seq"`
	Penalty        decimal.Decimal `json:"penalty"`
	Interest       decimal.Decimal `json:"interest"`
	Principal      decimal.Decimal `json:"principal"`
}

// ApplicationResult is returned by Apply and Cancel: the ledger state after
// the mutation plus the domain events it produced. Events are returned, not
// dispatched — side effects stay with the caller.
type ApplicationResult struct {
	IntentID    string           `json:"intent_id"`
	LoanStatus  string           `json:"loan_status"`
	Outstanding decimal.Decimal  `json:"outstanding"`
	Allocations []AllocationLine `json:"allocations"`
	Events      []event.Event    `json:"-"`
}
