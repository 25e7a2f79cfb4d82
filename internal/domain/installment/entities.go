package installment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
	StatusWaived  Status = "WAIVED"
)

// Entry is one installment of a loan's repayment schedule. Entries are
// created in a batch at activation and mutated only by the payment ledger
// and the penalty sweep. A PAID entry is immutable.
type Entry struct {
	ID           uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID       uint64          `gorm:"index:idx_installments_loan;uniqueIndex:ux_installments_loan_seq" json:"-"`
	Seq          int             `gorm:"uniqueIndex:ux_installments_loan_seq" json:"seq"`
	DueDate      time.Time       `json:"due_date"`
	PrincipalDue decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal_due"`
	InterestDue  decimal.Decimal `gorm:"type:decimal(18,2)" json:"interest_due"`
	TotalDue     decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_due"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount_paid"`
	// Waivers reduce TotalDue without a payment; kept separate so reports can
	// distinguish forgiven money from collected money.
	WaivedAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"waived_amount"`
	WaiveReason  string          `gorm:"size:255" json:"waive_reason,omitempty"`
	Status       Status          `gorm:"size:16;default:'PENDING'" json:"status"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Entry) TableName() string { return "installments" }

// Outstanding is the unpaid remainder of this entry.
func (e *Entry) Outstanding() decimal.Decimal {
	out := e.TotalDue.Sub(e.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// InterestOutstanding derives the unpaid interest portion. Paid amounts are
// attributed to interest before principal, mirroring the allocation order.
func (e *Entry) InterestOutstanding() decimal.Decimal {
	interestPaid := decimal.Min(e.AmountPaid, e.InterestDue)
	return e.InterestDue.Sub(interestPaid)
}

// PrincipalOutstanding derives the unpaid principal portion.
func (e *Entry) PrincipalOutstanding() decimal.Decimal {
	out := e.Outstanding().Sub(e.InterestOutstanding())
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Settled reports whether the entry can no longer absorb money.
func (e *Entry) Settled() bool { return e.Status == StatusPaid || e.Status == StatusWaived }
