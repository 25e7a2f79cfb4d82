package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/installment"
	domainLoan "mikopo-backend/internal/domain/loan"
	"mikopo-backend/internal/domain/payment"
	"mikopo-backend/internal/domain/penalty"
	"mikopo-backend/internal/domain/uow"
	"mikopo-backend/pkg/id"
)

type Config struct {
	// GraceDays mirrors the penalty engine's grace period; the ledger needs
	// it to decide whether a cured loan may leave OVERDUE.
	GraceDays int
}

// Usecase is the repayment state machine. Every mutation runs inside a
// per-loan transaction (row lock on the loan), so concurrent applications on
// the same loan serialise and the FIFO/balance invariants hold.
type Usecase struct {
	uow uow.UnitOfWork
	cfg Config
	log *logrus.Logger
	now func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, cfg Config, log *logrus.Logger) *Usecase {
	return &Usecase{uow: tx, cfg: cfg, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the usecase clock, for tests.
func (u *Usecase) WithClock(now func() time.Time) *Usecase { u.now = now; return u }

// Apply allocates a payment against the loan's schedule. Within an
// installment money clears penalty, then interest, then principal; across
// installments the oldest unpaid entry fills first. Any remainder the loan
// cannot absorb aborts the whole application with ErrOverpayment.
func (u *Usecase) Apply(ctx context.Context, in ApplyInput) (*ApplicationResult, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	var res *ApplicationResult

	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if !l.Status.Payable() {
			return ErrLoanNotPayable
		}
		now := u.now()
		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		pens, err := r.Penalties.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		penByInst := make(map[uint64]*penalty.Entry, len(pens))
		for _, p := range pens {
			penByInst[p.InstallmentID] = p
		}

		targets, err := pickTargets(entries, in.TargetInstallmentID, in.Advance, now)
		if err != nil {
			return err
		}

		intentID := in.IntentID
		if intentID == "" {
			// Manual payments get their intent record here, already applied.
			appliedAt := now
			it := &payment.Intent{
				IntentID:         id.NewID32(),
				LoanID:           l.ID,
				Amount:           in.Amount,
				Source:           in.Source,
				CorrelationToken: uuid.NewString(),
				ExternalRef:      in.Reference,
				Status:           payment.StatusApplied,
				AppliedAt:        &appliedAt,
			}
			if it.Source == "" {
				it.Source = payment.SourceManual
			}
			if err := r.Payments.Create(ctx, it); err != nil {
				return err
			}
			intentID = it.IntentID
		}

		remaining := in.Amount
		var allocs []*payment.Allocation
		var lines []AllocationLine
		for _, e := range targets {
			alloc := &payment.Allocation{IntentID: intentID, LoanID: l.ID, InstallmentID: e.ID}
			line := AllocationLine{InstallmentSeq: e.Seq}

			if pen := penByInst[e.ID]; pen != nil && remaining.IsPositive() {
				if out := pen.Outstanding(); out.IsPositive() {
					take := decimal.Min(remaining, out)
					pen.AmountPaid = pen.AmountPaid.Add(take)
					if pen.Outstanding().IsZero() {
						pen.Status = penalty.StatusPaid
					}
					if err := r.Penalties.Save(ctx, pen); err != nil {
						return err
					}
					pid := pen.ID
					alloc.PenaltyID, alloc.Penalty = &pid, take
					line.Penalty = take
					remaining = remaining.Sub(take)
				}
			}

			if remaining.IsPositive() && e.Outstanding().IsPositive() {
				interestTake := decimal.Min(remaining, e.InterestOutstanding())
				remaining = remaining.Sub(interestTake)
				principalTake := decimal.Min(remaining, e.PrincipalOutstanding())
				remaining = remaining.Sub(principalTake)

				paid := interestTake.Add(principalTake)
				if paid.IsPositive() {
					e.AmountPaid = e.AmountPaid.Add(paid)
					if e.Outstanding().IsZero() {
						e.Status = installment.StatusPaid
						paidAt := now
						e.PaidAt = &paidAt
					} else if e.Status == installment.StatusPending {
						e.Status = installment.StatusPartial
					}
					if err := r.Installments.Save(ctx, e); err != nil {
						return err
					}
					alloc.Interest, alloc.Principal = interestTake, principalTake
					line.Interest, line.Principal = interestTake, principalTake
				}
			}

			if alloc.Total().IsPositive() {
				allocs = append(allocs, alloc)
				lines = append(lines, line)
			}
			if !remaining.IsPositive() {
				break
			}
		}
		if remaining.IsPositive() {
			// Rolling back leaves every balance untouched.
			return fmt.Errorf("%w: %s not allocatable", domainLoan.ErrOverpayment, remaining)
		}
		if err := r.Payments.CreateAllocations(ctx, allocs); err != nil {
			return err
		}

		l.TotalPaid = l.TotalPaid.Add(in.Amount)
		events := []event.Event{event.New(event.TypePaymentApplied, l.LoanID, now, map[string]any{
			"intent_id": intentID,
			"amount":    in.Amount.String(),
			"source":    string(in.Source),
		})}
		events = append(events, u.reevaluate(l, entries, now)...)
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}

		res = &ApplicationResult{
			IntentID:    intentID,
			LoanStatus:  string(l.Status),
			Outstanding: l.Outstanding(),
			Allocations: lines,
			Events:      events,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": in.LoanID, "intent_id": res.IntentID, "amount": in.Amount}).
		Info("payment applied")
	return res, nil
}

// Waive forgives part of an installment's dues without a payment. The
// forgiven amount is tracked apart from paid amounts so reporting can tell
// collected money from written-off money.
func (u *Usecase) Waive(ctx context.Context, loanID string, installmentID uint64, amount decimal.Decimal, reason string) (*ApplicationResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	var res *ApplicationResult
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		now := u.now()
		e, err := r.Installments.GetByID(ctx, installmentID)
		if err != nil || e.LoanID != l.ID {
			if err == nil {
				err = gorm.ErrRecordNotFound
			}
			return err
		}
		if e.Settled() {
			return fmt.Errorf("%w: installment %d already settled", ErrLoanNotPayable, e.Seq)
		}
		if amount.GreaterThan(e.Outstanding()) {
			return fmt.Errorf("%w: waiver exceeds installment outstanding", ErrInvalidAmount)
		}

		// Forgive interest before principal.
		interestCut := decimal.Min(amount, e.InterestOutstanding())
		principalCut := amount.Sub(interestCut)
		e.InterestDue = e.InterestDue.Sub(interestCut)
		e.PrincipalDue = e.PrincipalDue.Sub(principalCut)
		e.TotalDue = e.TotalDue.Sub(amount)
		e.WaivedAmount = e.WaivedAmount.Add(amount)
		e.WaiveReason = reason
		if e.Outstanding().IsZero() {
			e.Status = installment.StatusWaived
		}
		if err := r.Installments.Save(ctx, e); err != nil {
			return err
		}

		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		l.TotalDue = l.TotalDue.Sub(amount)
		events := []event.Event{event.New(event.TypeInstallmentWaived, l.LoanID, now, map[string]any{
			"installment_seq": e.Seq,
			"amount":          amount.String(),
			"reason":          reason,
		})}
		events = append(events, u.reevaluate(l, entries, now)...)
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		res = &ApplicationResult{LoanStatus: string(l.Status), Outstanding: l.Outstanding(), Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WaivePenalty writes off the full outstanding amount of one penalty entry.
func (u *Usecase) WaivePenalty(ctx context.Context, loanID string, penaltyID uint64, reason string) (*ApplicationResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	var res *ApplicationResult
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		now := u.now()
		pens, err := r.Penalties.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		var pen *penalty.Entry
		for _, p := range pens {
			if p.ID == penaltyID {
				pen = p
				break
			}
		}
		if pen == nil {
			return gorm.ErrRecordNotFound
		}
		out := pen.Outstanding()
		if out.IsZero() {
			return fmt.Errorf("%w: penalty %d has no outstanding amount", ErrLoanNotPayable, penaltyID)
		}
		pen.Status = penalty.StatusWaived
		pen.WaiveReason = reason
		if err := r.Penalties.Save(ctx, pen); err != nil {
			return err
		}

		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		l.TotalDue = l.TotalDue.Sub(out)
		events := []event.Event{event.New(event.TypeInstallmentWaived, l.LoanID, now, map[string]any{
			"penalty_id": penaltyID,
			"amount":     out.String(),
			"reason":     reason,
		})}
		events = append(events, u.reevaluate(l, entries, now)...)
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		res = &ApplicationResult{LoanStatus: string(l.Status), Outstanding: l.Outstanding(), Events: events}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel reverses a previously applied payment, reinstating the balances it
// cleared. Only the loan's most recent applied intent is reversible: later
// applications depend on the earlier ones being settled.
func (u *Usecase) Cancel(ctx context.Context, loanID, intentID, reason string) (*ApplicationResult, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	var res *ApplicationResult
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		now := u.now()
		it, err := r.Payments.GetByIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return payment.ErrUnknownIntent
			}
			return err
		}
		if it.LoanID != l.ID {
			return payment.ErrUnknownIntent
		}
		if it.Status != payment.StatusApplied {
			return payment.ErrNotReversible
		}
		last, err := r.Payments.LastAppliedByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		if last.IntentID != intentID {
			return payment.ErrNotReversible
		}

		allocs, err := r.Payments.ListAllocationsByIntent(ctx, intentID)
		if err != nil {
			return err
		}
		reversed := decimal.Zero
		for _, a := range allocs {
			e, err := r.Installments.GetByID(ctx, a.InstallmentID)
			if err != nil {
				return err
			}
			e.AmountPaid = e.AmountPaid.Sub(a.Interest).Sub(a.Principal)
			e.PaidAt = nil
			e.Status = entryStatusFor(e, now, u.cfg.GraceDays)
			if err := r.Installments.Save(ctx, e); err != nil {
				return err
			}
			if a.PenaltyID != nil {
				pen, err := r.Penalties.GetByInstallment(ctx, a.InstallmentID)
				if err != nil {
					return err
				}
				pen.AmountPaid = pen.AmountPaid.Sub(a.Penalty)
				if pen.Status == penalty.StatusPaid {
					pen.Status = penalty.StatusApplied
				}
				if err := r.Penalties.Save(ctx, pen); err != nil {
					return err
				}
			}
			reversed = reversed.Add(a.Total())
		}

		it.Status = payment.StatusFailed
		it.FailReason = reason
		if err := r.Payments.TransitionStatus(ctx, it, payment.StatusApplied); err != nil {
			return err
		}

		l.TotalPaid = l.TotalPaid.Sub(reversed)
		// Completion is derived from the balance, so a reversal un-derives
		// it; this is the one sanctioned exit from COMPLETED.
		if l.Outstanding().IsPositive() && !l.Status.Payable() {
			l.Status = domainLoan.StatusActive
			l.StatusUpdatedAt = now
		}
		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		if l.Status == domainLoan.StatusActive && anyOverdue(entries, now, u.cfg.GraceDays) {
			l.Status = domainLoan.StatusOverdue
			l.StatusUpdatedAt = now
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}

		res = &ApplicationResult{
			IntentID:    intentID,
			LoanStatus:  string(l.Status),
			Outstanding: l.Outstanding(),
			Events: []event.Event{event.New(event.TypePaymentCancelled, l.LoanID, now, map[string]any{
				"intent_id": intentID,
				"amount":    reversed.String(),
				"reason":    reason,
			})},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": loanID, "intent_id": intentID}).Info("payment cancelled")
	return res, nil
}

// pickTargets selects the installments a payment may fill, oldest first.
// Without the advance flag, only entries already due plus the next upcoming
// one are payable; advance mode opens up the rest of the schedule.
func pickTargets(entries []*installment.Entry, hint *uint64, advance bool, now time.Time) ([]*installment.Entry, error) {
	if hint != nil {
		for _, e := range entries {
			if e.ID == *hint {
				if e.Settled() {
					return nil, fmt.Errorf("%w: installment %d already settled", ErrLoanNotPayable, e.Seq)
				}
				return []*installment.Entry{e}, nil
			}
		}
		return nil, gorm.ErrRecordNotFound
	}
	var out []*installment.Entry
	futureTaken := false
	for _, e := range entries {
		if e.Settled() {
			continue
		}
		switch {
		case !e.DueDate.After(now), advance:
			out = append(out, e)
		case !futureTaken:
			out = append(out, e)
			futureTaken = true
		}
	}
	return out, nil
}

// reevaluate applies the automatic status rules after a balance change.
func (u *Usecase) reevaluate(l *domainLoan.Loan, entries []*installment.Entry, now time.Time) []event.Event {
	if l.Outstanding().IsZero() {
		if err := l.SetStatus(domainLoan.StatusCompleted, now); err == nil {
			return []event.Event{event.New(event.TypeLoanCompleted, l.LoanID, now, nil)}
		}
		return nil
	}
	if l.Status == domainLoan.StatusOverdue && !anyOverdue(entries, now, u.cfg.GraceDays) {
		_ = l.SetStatus(domainLoan.StatusActive, now)
	}
	return nil
}

func anyOverdue(entries []*installment.Entry, now time.Time, graceDays int) bool {
	for _, e := range entries {
		if e.Settled() || !e.Outstanding().IsPositive() {
			continue
		}
		if now.After(e.DueDate.AddDate(0, 0, graceDays)) {
			return true
		}
	}
	return false
}

func entryStatusFor(e *installment.Entry, now time.Time, graceDays int) installment.Status {
	switch {
	case e.Outstanding().IsPositive() && now.After(e.DueDate.AddDate(0, 0, graceDays)):
		return installment.StatusOverdue
	case e.AmountPaid.IsPositive():
		return installment.StatusPartial
	default:
		return installment.StatusPending
	}
}
