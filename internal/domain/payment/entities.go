package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceManual      Source = "MANUAL"
	SourceMobileMoney Source = "MOBILE_MONEY"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusMatched Status = "MATCHED"
	StatusApplied Status = "APPLIED"
	StatusFailed  Status = "FAILED"
	StatusExpired Status = "EXPIRED"
)

// Intent is a payment accepted for processing. External intents hold the
// correlation token handed to the mobile-money gateway; the gateway's
// asynchronous callback is matched back through it. Intents are never
// deleted — failed ones stay behind as the audit trail of each retry.
type Intent struct {
	ID       uint64 `gorm:"primaryKey;column:id" json:"-"`
	IntentID string `gorm:"size:32;uniqueIndex:ux_intents_intent_id" json:"intent_id"`
	LoanID   uint64 `gorm:"index:idx_intents_loan" json:"-"`
	// TargetInstallmentID pins the allocation to one installment when set.
	TargetInstallmentID *uint64         `json:"target_installment_id,omitempty"`
	Amount              decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Source              Source          `gorm:"size:16" json:"source"`
	Phone               string          `gorm:"size:20" json:"phone,omitempty"`
	CorrelationToken    string          `gorm:"size:36;uniqueIndex:ux_intents_token" json:"correlation_token"`
	ExternalRef         string          `gorm:"size:64" json:"external_ref,omitempty"`
	Status              Status          `gorm:"size:16;default:'PENDING'" json:"status"`
	FailReason          string          `gorm:"size:255" json:"fail_reason,omitempty"`
	// Attempt counts initiations of the same logical payment; RetryOf chains
	// a retry to the failed intent it replaces.
	Attempt   int        `gorm:"default:1" json:"attempt"`
	RetryOf   string     `gorm:"size:32" json:"retry_of,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Intent) TableName() string { return "payment_intents" }

// Terminal reports whether no further transition may leave this status.
// FAILED is terminal for the intent itself; retries spawn a fresh intent.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusFailed || s == StatusExpired
}

// Allocation records how one applied intent was split across an installment's
// penalty, interest and principal components. Written in the same transaction
// as the application; read back when a payment is cancelled.
type Allocation struct {
	ID            uint64          `gorm:"primaryKey;column:id" json:"-"`
	IntentID      string          `gorm:"size:32;index:idx_allocations_intent" json:"intent_id"`
	LoanID        uint64          `gorm:"index:idx_allocations_loan" json:"-"`
	InstallmentID uint64          `json:"installment_id"`
	PenaltyID     *uint64         `json:"penalty_id,omitempty"`
	Penalty       decimal.Decimal `gorm:"type:decimal(18,2)" json:"penalty"`
	Interest      decimal.Decimal `gorm:"type:decimal(18,2)" json:"interest"`
	Principal     decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Allocation) TableName() string { return "payment_allocations" }

// Total is the full amount this allocation consumed.
func (a *Allocation) Total() decimal.Decimal {
	return a.Penalty.Add(a.Interest).Add(a.Principal)
}
