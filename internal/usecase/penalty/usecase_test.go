package penalty

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mikopo-backend/internal/domain/event"
	installmentDomain "mikopo-backend/internal/domain/installment"
	loanDomain "mikopo-backend/internal/domain/loan"
	penaltyDomain "mikopo-backend/internal/domain/penalty"
	"mikopo-backend/internal/domain/uow"
	"mikopo-backend/internal/testutil/installmentmock"
	"mikopo-backend/internal/testutil/loanmock"
	"mikopo-backend/internal/testutil/penaltymock"
	"mikopo-backend/internal/testutil/uowmock"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	loan    *loanDomain.Loan
	entries []*installmentDomain.Entry
	pens    []*penaltyDomain.Entry

	u *Usecase
}

func newFixture() *fixture {
	f := &fixture{
		loan: &loanDomain.Loan{
			ID:             42,
			LoanID:         "11111111111111111111111111111111",
			PenaltyRatePct: decimal.NewFromInt(5),
			Status:         loanDomain.StatusActive,
			TotalDue:       dec("10200.67"),
		},
	}

	loans := &loanmock.Repo{
		ListByStatusesFn: func(ctx context.Context, statuses ...loanDomain.Status) ([]*loanDomain.Loan, error) {
			for _, s := range statuses {
				if f.loan.Status == s {
					return []*loanDomain.Loan{f.loan}, nil
				}
			}
			return nil, nil
		},
	}
	insts := &installmentmock.Repo{
		ListByLoanFn: func(ctx context.Context, loanNumericID uint64) ([]*installmentDomain.Entry, error) {
			return f.entries, nil
		},
	}
	pens := &penaltymock.Repo{
		GetByInstallmentFn: func(ctx context.Context, installmentID uint64) (*penaltyDomain.Entry, error) {
			for _, p := range f.pens {
				if p.InstallmentID == installmentID {
					return p, nil
				}
			}
			return nil, gorm.ErrRecordNotFound
		},
		CreateFn: func(ctx context.Context, e *penaltyDomain.Entry) error {
			e.ID = uint64(len(f.pens) + 1)
			f.pens = append(f.pens, e)
			return nil
		},
	}
	tx := uowmock.Passthrough(
		uow.Repos{Loans: loans, Installments: insts, Penalties: pens},
		func(loanID string) (*loanDomain.Loan, error) {
			if loanID != f.loan.LoanID {
				return nil, gorm.ErrRecordNotFound
			}
			return f.loan, nil
		},
	)
	f.u = NewUsecase(loans, tx, Config{GraceDays: 7, DefaultAfterDays: 30}, testLogger())
	return f
}

func (f *fixture) addEntry(seq int, due time.Time, total string) *installmentDomain.Entry {
	e := &installmentDomain.Entry{
		ID:       uint64(seq),
		LoanID:   f.loan.ID,
		Seq:      seq,
		DueDate:  due,
		TotalDue: dec(total),
		Status:   installmentDomain.StatusPending,
	}
	f.entries = append(f.entries, e)
	return e
}

func TestAssessOverdue_GraceDaysExcludedFromBasis(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	// Due 20 days ago with 7 grace days: the basis is 13 days, not 20.
	f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if res.LoansProcessed != 1 || res.PenaltiesAssessed != 1 {
		t.Fatalf("unexpected sweep result: %+v", res)
	}
	if len(f.pens) != 1 {
		t.Fatalf("expected one penalty entry, got %d", len(f.pens))
	}
	pen := f.pens[0]
	// 3400.22 * 5% / 365 * 13 = 6.06
	if !pen.Amount.Equal(dec("6.06")) || pen.DaysOverdue != 13 {
		t.Errorf("penalty = %s over %d days, want 6.06 over 13", pen.Amount, pen.DaysOverdue)
	}
	if !res.TotalAssessed.Equal(dec("6.06")) {
		t.Errorf("TotalAssessed = %s", res.TotalAssessed)
	}
	if !f.loan.TotalDue.Equal(dec("10206.73")) {
		t.Errorf("loan TotalDue = %s, want 10206.73", f.loan.TotalDue)
	}
	if f.entries[0].Status != installmentDomain.StatusOverdue {
		t.Errorf("entry should be OVERDUE, got %s", f.entries[0].Status)
	}
}

func TestAssessOverdue_WithinGraceAssessesNothing(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -5), "3400.22")

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if res.PenaltiesAssessed != 0 || len(f.pens) != 0 {
		t.Fatalf("no penalty expected within grace: %+v", res)
	}
	if f.loan.Status != loanDomain.StatusActive {
		t.Errorf("loan should stay ACTIVE, got %s", f.loan.Status)
	}
}

func TestAssessOverdue_SameDayRerunIsNoop(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")

	if _, err := f.u.AssessOverdue(context.Background(), asOf); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	totalDue := f.loan.TotalDue

	// Same calendar day, later hour
	res, err := f.u.AssessOverdue(context.Background(), asOf.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.PenaltiesAssessed != 0 {
		t.Fatalf("re-run assessed %d penalties, want 0", res.PenaltiesAssessed)
	}
	if len(f.pens) != 1 || !f.loan.TotalDue.Equal(totalDue) {
		t.Errorf("re-run duplicated the charge: pens=%d totalDue=%s", len(f.pens), f.loan.TotalDue)
	}
}

func TestAssessOverdue_GrowsExistingEntry(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")

	if _, err := f.u.AssessOverdue(context.Background(), asOf); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	// Two days later: basis grows from 13 to 15 days
	later := asOf.AddDate(0, 0, 2)
	res, err := f.u.AssessOverdue(context.Background(), later)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(f.pens) != 1 {
		t.Fatalf("growth must not create a second entry, got %d", len(f.pens))
	}
	pen := f.pens[0]
	// 3400.22 * 5% / 365 * 15 = 6.99
	if !pen.Amount.Equal(dec("6.99")) || pen.DaysOverdue != 15 {
		t.Errorf("penalty = %s over %d days, want 6.99 over 15", pen.Amount, pen.DaysOverdue)
	}
	if !res.TotalAssessed.Equal(dec("0.93")) {
		t.Errorf("TotalAssessed delta = %s, want 0.93", res.TotalAssessed)
	}
	if !f.loan.TotalDue.Equal(dec("10207.66")) {
		t.Errorf("loan TotalDue = %s, want 10207.66", f.loan.TotalDue)
	}
}

func TestAssessOverdue_GrowthReopensPaidPenalty(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")
	// Assessed at 11 days and settled; two more overdue days have passed since.
	f.pens = []*penaltyDomain.Entry{{
		ID: 1, LoanID: f.loan.ID, InstallmentID: 1,
		Amount: dec("5.12"), AmountPaid: dec("5.12"),
		DaysOverdue: 11, AssessedOn: time.Date(2026, 4, 18, 0, 0, 0, 0, time.UTC),
		Status: penaltyDomain.StatusPaid,
	}}

	if _, err := f.u.AssessOverdue(context.Background(), asOf); err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	pen := f.pens[0]
	if pen.Status != penaltyDomain.StatusApplied {
		t.Errorf("grown penalty should reopen to APPLIED, got %s", pen.Status)
	}
	if !pen.Amount.Equal(dec("6.06")) || pen.DaysOverdue != 13 {
		t.Errorf("penalty not regrown: %+v", pen)
	}
	if !pen.Outstanding().Equal(dec("0.94")) {
		t.Errorf("outstanding should be the growth only, got %s", pen.Outstanding())
	}
}

func TestAssessOverdue_WaivedPenaltyIsFinal(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")
	f.pens = []*penaltyDomain.Entry{{
		ID: 1, LoanID: f.loan.ID, InstallmentID: 1,
		Amount: dec("6.06"), DaysOverdue: 13,
		AssessedOn: time.Date(2026, 4, 19, 0, 0, 0, 0, time.UTC),
		Status:     penaltyDomain.StatusWaived, WaiveReason: "goodwill",
	}}

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if res.PenaltiesAssessed != 0 || !f.pens[0].Amount.Equal(dec("6.06")) {
		t.Errorf("waived penalty must not grow: %+v", f.pens[0])
	}
}

func TestAssessOverdue_MarksLoanOverdue(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.addEntry(1, asOf.AddDate(0, 0, -10), "3400.22")

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if f.loan.Status != loanDomain.StatusOverdue {
		t.Fatalf("loan status = %s, want OVERDUE", f.loan.Status)
	}
	var sawOverdue bool
	for _, ev := range res.Events {
		if ev.Type == event.TypeLoanOverdue {
			sawOverdue = true
		}
	}
	if !sawOverdue {
		t.Errorf("expected loan.overdue event, got %+v", res.Events)
	}
}

func TestAssessOverdue_DefaultsLoanPastThreshold(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	f.loan.Status = loanDomain.StatusOverdue
	// 40 days past due beats DefaultAfterDays=30
	f.addEntry(1, asOf.AddDate(0, 0, -40), "3400.22")

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if f.loan.Status != loanDomain.StatusDefaulted {
		t.Fatalf("loan status = %s, want DEFAULTED", f.loan.Status)
	}
	var sawDefault bool
	for _, ev := range res.Events {
		if ev.Type == event.TypeLoanDefaulted {
			sawDefault = true
		}
	}
	if !sawDefault {
		t.Errorf("expected loan.defaulted event, got %+v", res.Events)
	}
}

func TestAssessOverdue_SkipsSettledEntries(t *testing.T) {
	asOf := time.Date(2026, 4, 20, 2, 0, 0, 0, time.UTC)
	f := newFixture()
	e := f.addEntry(1, asOf.AddDate(0, 0, -20), "3400.22")
	e.AmountPaid = e.TotalDue
	e.Status = installmentDomain.StatusPaid

	res, err := f.u.AssessOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("AssessOverdue: %v", err)
	}
	if res.PenaltiesAssessed != 0 || len(f.pens) != 0 {
		t.Fatalf("settled entry must not accrue penalties: %+v", res)
	}
	if f.loan.Status != loanDomain.StatusActive {
		t.Errorf("loan should stay ACTIVE, got %s", f.loan.Status)
	}
}
