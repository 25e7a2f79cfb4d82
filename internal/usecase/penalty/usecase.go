package penalty

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/installment"
	domainLoan "mikopo-backend/internal/domain/loan"
	domainPenalty "mikopo-backend/internal/domain/penalty"
	"mikopo-backend/internal/domain/uow"
	"mikopo-backend/pkg/amort"
)

type Config struct {
	// GraceDays after a due date accrue no penalty and are excluded from the
	// penalty basis: days overdue count from the end of the grace period.
	GraceDays int
	// DefaultAfterDays is measured from the due date; a loan whose oldest
	// unpaid installment is older than this defaults.
	DefaultAfterDays int
}

// Usecase is the overdue sweep. It is a pure function of (asOf, loan set):
// scheduling lives elsewhere, so tests can run it synchronously for any date.
type Usecase struct {
	loans domainLoan.Repository
	uow   uow.UnitOfWork
	cfg   Config
	log   *logrus.Logger
}

func NewUsecase(loans domainLoan.Repository, tx uow.UnitOfWork, cfg Config, log *logrus.Logger) *Usecase {
	return &Usecase{loans: loans, uow: tx, cfg: cfg, log: log}
}

// SweepResult summarises one AssessOverdue run.
type SweepResult struct {
	LoansProcessed    int
	PenaltiesAssessed int
	TotalAssessed     decimal.Decimal
	Events            []event.Event
}

// AssessOverdue walks every ACTIVE/OVERDUE loan and accrues late fees for
// installments past their grace period. Loans are processed in independent
// transactions, so one broken loan cannot stall the sweep. Re-running the
// sweep for the same day is a no-op.
func (u *Usecase) AssessOverdue(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	loans, err := u.loans.ListByStatuses(ctx, domainLoan.StatusActive, domainLoan.StatusOverdue)
	if err != nil {
		return nil, err
	}
	res := &SweepResult{TotalAssessed: decimal.Zero}
	for _, l := range loans {
		if err := u.assessLoan(ctx, l.LoanID, asOf, res); err != nil {
			u.log.WithError(err).WithField("loan_id", l.LoanID).Error("overdue sweep failed for loan")
			continue
		}
		res.LoansProcessed++
	}
	return res, nil
}

func (u *Usecase) assessLoan(ctx context.Context, loanID string, asOf time.Time, res *SweepResult) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if !l.Status.Payable() {
			return nil // raced with a payment that completed the loan
		}
		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}

		loanDirty := false
		var oldestDueDays int
		anyPastGrace := false
		for _, e := range entries {
			if e.Settled() || !e.Outstanding().IsPositive() {
				continue
			}
			graceEnd := e.DueDate.AddDate(0, 0, u.cfg.GraceDays)
			if !asOf.After(graceEnd) {
				continue
			}
			anyPastGrace = true
			if d := daysBetween(e.DueDate, asOf); d > oldestDueDays {
				oldestDueDays = d
			}
			if e.Status != installment.StatusOverdue {
				e.Status = installment.StatusOverdue
				if err := r.Installments.Save(ctx, e); err != nil {
					return err
				}
			}

			// Grace days never enter the basis: count from graceEnd.
			days := daysBetween(graceEnd, asOf)
			fee := amort.LateFee(e.Outstanding(), l.PenaltyRatePct, days)

			pen, err := r.Penalties.GetByInstallment(ctx, e.ID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if !fee.IsPositive() {
					continue
				}
				pen = &domainPenalty.Entry{
					LoanID:        l.ID,
					InstallmentID: e.ID,
					Amount:        fee,
					AmountPaid:    decimal.Zero,
					DaysOverdue:   days,
					AssessedOn:    dateOf(asOf),
					Status:        domainPenalty.StatusApplied,
				}
				if err := r.Penalties.Create(ctx, pen); err != nil {
					return err
				}
				l.TotalDue = l.TotalDue.Add(fee)
				loanDirty = true
				res.PenaltiesAssessed++
				res.TotalAssessed = res.TotalAssessed.Add(fee)
				res.Events = append(res.Events, event.New(event.TypePenaltyAssessed, l.LoanID, asOf, map[string]any{
					"installment_seq": e.Seq,
					"amount":          fee.String(),
					"days_overdue":    days,
				}))
			case err != nil:
				return err
			default:
				if pen.Status == domainPenalty.StatusWaived {
					continue // a manager waiver is final
				}
				if sameDay(pen.AssessedOn, asOf) && pen.DaysOverdue == days {
					continue // idempotent re-run
				}
				delta := fee.Sub(pen.Amount)
				if delta.IsPositive() {
					pen.Amount = fee
					if pen.Status == domainPenalty.StatusPaid {
						pen.Status = domainPenalty.StatusApplied
					}
					l.TotalDue = l.TotalDue.Add(delta)
					loanDirty = true
					res.PenaltiesAssessed++
					res.TotalAssessed = res.TotalAssessed.Add(delta)
				}
				pen.DaysOverdue = days
				pen.AssessedOn = dateOf(asOf)
				if err := r.Penalties.Save(ctx, pen); err != nil {
					return err
				}
			}
		}

		// Loan-level transitions ride along with the sweep.
		switch {
		case oldestDueDays > u.cfg.DefaultAfterDays:
			if l.Status != domainLoan.StatusDefaulted {
				if err := l.SetStatus(domainLoan.StatusDefaulted, asOf); err == nil {
					loanDirty = true
					res.Events = append(res.Events, event.New(event.TypeLoanDefaulted, l.LoanID, asOf, map[string]any{
						"days_overdue": oldestDueDays,
					}))
				}
			}
		case anyPastGrace && l.Outstanding().IsPositive():
			if l.Status == domainLoan.StatusActive {
				if err := l.SetStatus(domainLoan.StatusOverdue, asOf); err == nil {
					loanDirty = true
					res.Events = append(res.Events, event.New(event.TypeLoanOverdue, l.LoanID, asOf, nil))
				}
			}
		}
		if loanDirty {
			return r.Loans.Save(ctx, l)
		}
		return nil
	})
}

// daysBetween counts whole days from a to b, non-negative.
func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
