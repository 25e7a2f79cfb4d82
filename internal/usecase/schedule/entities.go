package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"mikopo-backend/internal/domain/installment"
	"mikopo-backend/internal/domain/loan"
)

type CreateLoanInput struct {
	BorrowerID       string          `json:"borrower_id"`
	Principal        decimal.Decimal `json:"principal"`
	AnnualRatePct    decimal.Decimal `json:"annual_rate_pct"`
	TermPeriods      int             `json:"term_periods"`
	Convention       string          `json:"convention"`
	Cadence          string          `json:"cadence"`
	ProcessingFeePct decimal.Decimal `json:"processing_fee_pct"`
	PenaltyRatePct   decimal.Decimal `json:"penalty_rate_pct"`
}

type LoanDTO struct {
	LoanID        string          `json:"loan_id"`
	BorrowerID    string          `json:"borrower_id"`
	Principal     decimal.Decimal `json:"principal"`
	AnnualRatePct decimal.Decimal `json:"annual_rate_pct"`
	TermPeriods   int             `json:"term_periods"`
	Convention    string          `json:"convention"`
	Cadence       string          `json:"cadence"`
	Status        string          `json:"status"`
	TotalDue      decimal.Decimal `json:"total_due"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toLoanDTO(l *loan.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:        l.LoanID,
		BorrowerID:    l.BorrowerID,
		Principal:     l.Principal,
		AnnualRatePct: l.AnnualRatePct,
		TermPeriods:   l.TermPeriods,
		Convention:    string(l.Convention),
		Cadence:       string(l.Cadence),
		Status:        string(l.Status),
		TotalDue:      l.TotalDue,
		TotalPaid:     l.TotalPaid,
		Outstanding:   l.Outstanding(),
		CreatedAt:     l.CreatedAt,
	}
}

type InstallmentDTO struct {
	ID           uint64          `json:"id"`
	Seq          int             `json:"seq"`
	DueDate      time.Time       `json:"due_date"`
	PrincipalDue decimal.Decimal `json:"principal_due"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	TotalDue     decimal.Decimal `json:"total_due"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Status       string          `json:"status"`
}

func toInstallmentDTO(e *installment.Entry) InstallmentDTO {
	return InstallmentDTO{
		ID:           e.ID,
		Seq:          e.Seq,
		DueDate:      e.DueDate,
		PrincipalDue: e.PrincipalDue,
		InterestDue:  e.InterestDue,
		TotalDue:     e.TotalDue,
		AmountPaid:   e.AmountPaid,
		Status:       string(e.Status),
	}
}

// Balance is the outstanding split exposed to the API and reporting layers.
type Balance struct {
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Penalty   decimal.Decimal `json:"penalty"`
	Total     decimal.Decimal `json:"total"`
}
