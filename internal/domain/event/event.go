package event

import "time"

type Type string

const (
	TypeLoanApproved       Type = "loan.approved"
	TypeLoanActivated      Type = "loan.activated"
	TypeLoanOverdue        Type = "loan.overdue"
	TypeLoanDefaulted      Type = "loan.defaulted"
	TypeLoanCompleted      Type = "loan.completed"
	TypeLoanCancelled      Type = "loan.cancelled"
	TypePaymentApplied     Type = "payment.applied"
	TypePaymentCancelled   Type = "payment.cancelled"
	TypePaymentFailed      Type = "payment.failed"
	TypeIntentExpired      Type = "payment.intent_expired"
	TypeInstallmentWaived  Type = "installment.waived"
	TypePenaltyAssessed    Type = "penalty.assessed"
)

// Event is a domain fact produced by an engine operation. Engines return
// events instead of performing side effects; the caller decides whether to
// notify or audit, which keeps side effects visible and testable.
type Event struct {
	Type    Type           `json:"type"`
	LoanID  string         `json:"loan_id"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

func New(t Type, loanID string, at time.Time, payload map[string]any) Event {
	return Event{Type: t, LoanID: loanID, At: at.UTC(), Payload: payload}
}
