package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mikopo-backend/pkg/amort"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusOverdue   Status = "OVERDUE"
	StatusCompleted Status = "COMPLETED"
	StatusDefaulted Status = "DEFAULTED"
	StatusCancelled Status = "CANCELLED"
)

// CanTransition reports whether the status machine permits s → to.
// Transitions are monotonic except the ACTIVE ⇄ OVERDUE oscillation.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusApproved || to == StatusCancelled
	case StatusApproved:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusOverdue || to == StatusCompleted || to == StatusDefaulted
	case StatusOverdue:
		return to == StatusActive || to == StatusCompleted || to == StatusDefaulted
	default: // COMPLETED, DEFAULTED, CANCELLED are terminal
		return false
	}
}

// Payable reports whether the loan can still receive payments.
func (s Status) Payable() bool { return s == StatusActive || s == StatusOverdue }

type Loan struct {
	ID               uint64           `gorm:"primaryKey;column:id" json:"-"`
	LoanID           string           `gorm:"size:32;uniqueIndex:ux_loans_loan_id_active" json:"loan_id"`
	BorrowerID       string           `gorm:"size:32;index:idx_loans_borrower_active" json:"borrower_id"`
	Principal        decimal.Decimal  `gorm:"type:decimal(18,2)" json:"principal"`
	AnnualRatePct    decimal.Decimal  `gorm:"type:decimal(7,3)" json:"annual_rate_pct"`
	TermPeriods      int              `json:"term_periods"`
	Convention       amort.Convention `gorm:"size:20" json:"convention"`
	Cadence          amort.Cadence    `gorm:"size:20" json:"cadence"`
	ProcessingFeePct decimal.Decimal  `gorm:"type:decimal(7,3)" json:"processing_fee_pct"`
	PenaltyRatePct   decimal.Decimal  `gorm:"type:decimal(7,3)" json:"penalty_rate_pct"`
	Status           Status           `gorm:"size:16;default:'PENDING'" json:"status"`
	// TotalDue covers scheduled principal + interest plus assessed penalties,
	// net of waivers. Invariant: TotalDue - TotalPaid is never negative.
	TotalDue        decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_due"`
	TotalPaid       decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_paid"`
	DisbursedAt     *time.Time      `json:"disbursed_at,omitempty"`
	StatusUpdatedAt time.Time       `gorm:"autoCreateTime" json:"status_updated_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
	DeletedBy       string          `gorm:"size:32" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// Outstanding returns the unpaid balance, floored at zero.
func (l *Loan) Outstanding() decimal.Decimal {
	out := l.TotalDue.Sub(l.TotalPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// SetStatus applies a guarded transition, stamping StatusUpdatedAt.
// Setting the current status again is a no-op.
func (l *Loan) SetStatus(to Status, at time.Time) error {
	if l.Status == to {
		return nil
	}
	if !l.Status.CanTransition(to) {
		return ErrInvalidTransition
	}
	l.Status = to
	l.StatusUpdatedAt = at.UTC()
	return nil
}
