package penalty

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	// APPLIED entries count toward the loan's outstanding balance.
	StatusApplied Status = "APPLIED"
	StatusPaid    Status = "PAID"
	StatusWaived  Status = "WAIVED"
)

// Entry is the accrued late fee for one overdue installment. The sweep keeps
// a single open entry per installment and grows its Amount as overdue days
// accumulate, so re-running a sweep never duplicates a charge.
type Entry struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID        uint64          `gorm:"index:idx_penalties_loan" json:"-"`
	InstallmentID uint64          `gorm:"uniqueIndex:ux_penalties_installment" json:"installment_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount_paid"`
	// DaysOverdue is counted from the end of the grace period, not from the
	// due date; grace days never enter the penalty basis.
	DaysOverdue int       `json:"days_overdue"`
	AssessedOn  time.Time `json:"assessed_on"`
	Status      Status    `gorm:"size:16;default:'APPLIED'" json:"status"`
	WaiveReason string    `gorm:"size:255" json:"waive_reason,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Entry) TableName() string { return "penalty_entries" }

// Outstanding is the unpaid remainder of the penalty.
func (e *Entry) Outstanding() decimal.Decimal {
	if e.Status == StatusWaived {
		return decimal.Zero
	}
	out := e.Amount.Sub(e.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
