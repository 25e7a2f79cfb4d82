package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/installment"
	domainLoan "mikopo-backend/internal/domain/loan"
	"mikopo-backend/internal/domain/uow"
	"mikopo-backend/pkg/amort"
	"mikopo-backend/pkg/id"
)

// Usecase owns the loan lifecycle up to activation and the read side of the
// repayment schedule. Activation generates the full installment schedule from
// the amortization engine in one transaction.
type Usecase struct {
	loans domainLoan.Repository
	uow   uow.UnitOfWork
	log   *logrus.Logger
	now   func() time.Time
}

func NewUsecase(loans domainLoan.Repository, tx uow.UnitOfWork, log *logrus.Logger) *Usecase {
	return &Usecase{loans: loans, uow: tx, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the usecase clock, for tests.
func (u *Usecase) WithClock(now func() time.Time) *Usecase { u.now = now; return u }

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	if in.BorrowerID == "" || len(in.BorrowerID) != 32 {
		return nil, errors.New("invalid borrower id")
	}
	// Validate terms up-front by dry-running the amortization engine.
	if _, err := amort.Compute(amort.Input{
		Principal:        in.Principal,
		AnnualRatePct:    in.AnnualRatePct,
		TermPeriods:      in.TermPeriods,
		Convention:       amort.Convention(in.Convention),
		Cadence:          amort.Cadence(in.Cadence),
		ProcessingFeePct: in.ProcessingFeePct,
		StartDate:        u.now(),
	}); err != nil {
		return nil, err
	}
	if in.PenaltyRatePct.IsNegative() {
		return nil, fmt.Errorf("%w: penalty rate must not be negative", amort.ErrInvalidTerm)
	}

	l := &domainLoan.Loan{
		LoanID:           id.NewID32(),
		BorrowerID:       in.BorrowerID,
		Principal:        in.Principal,
		AnnualRatePct:    in.AnnualRatePct,
		TermPeriods:      in.TermPeriods,
		Convention:       amort.Convention(in.Convention),
		Cadence:          amort.Cadence(in.Cadence),
		ProcessingFeePct: in.ProcessingFeePct,
		PenaltyRatePct:   in.PenaltyRatePct,
		Status:           domainLoan.StatusPending,
		StatusUpdatedAt:  u.now(),
	}
	if err := u.loans.Create(ctx, l); err != nil {
		return nil, err
	}
	u.log.WithFields(logrus.Fields{"loan_id": l.LoanID, "borrower_id": l.BorrowerID}).Info("loan created")
	return toLoanDTO(l), nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return toLoanDTO(l), nil
}

// Approve moves a PENDING loan to APPROVED.
func (u *Usecase) Approve(ctx context.Context, loanID string) (*LoanDTO, []event.Event, error) {
	return u.transition(ctx, loanID, domainLoan.StatusApproved, event.TypeLoanApproved)
}

// Cancel voids a loan that has not yet been activated.
func (u *Usecase) Cancel(ctx context.Context, loanID string) (*LoanDTO, []event.Event, error) {
	return u.transition(ctx, loanID, domainLoan.StatusCancelled, event.TypeLoanCancelled)
}

func (u *Usecase) transition(ctx context.Context, loanID string, to domainLoan.Status, et event.Type) (*LoanDTO, []event.Event, error) {
	var dto *LoanDTO
	var events []event.Event
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if err := l.SetStatus(to, u.now()); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toLoanDTO(l)
		events = append(events, event.New(et, l.LoanID, u.now(), map[string]any{"status": string(l.Status)}))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return dto, events, nil
}

// Activate disburses an APPROVED loan: it computes the amortization schedule,
// persists every installment and moves the loan to ACTIVE, all in one
// transaction. A schedule is generated exactly once per loan.
func (u *Usecase) Activate(ctx context.Context, loanID string, startDate time.Time) (*LoanDTO, []event.Event, error) {
	if startDate.IsZero() {
		startDate = u.now()
	}
	var dto *LoanDTO
	var events []event.Event

	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if existing, err := r.Installments.ListByLoan(ctx, l.ID); err != nil {
			return err
		} else if len(existing) > 0 {
			return domainLoan.ErrScheduleExists
		}
		if !l.Status.CanTransition(domainLoan.StatusActive) {
			return domainLoan.ErrInvalidTransition
		}

		plan, err := amort.Compute(amort.Input{
			Principal:        l.Principal,
			AnnualRatePct:    l.AnnualRatePct,
			TermPeriods:      l.TermPeriods,
			Convention:       l.Convention,
			Cadence:          l.Cadence,
			ProcessingFeePct: l.ProcessingFeePct,
			StartDate:        startDate,
		})
		if err != nil {
			return err
		}

		entries := make([]*installment.Entry, 0, len(plan.Installments))
		for _, row := range plan.Installments {
			entries = append(entries, &installment.Entry{
				LoanID:       l.ID,
				Seq:          row.Seq,
				DueDate:      row.DueDate,
				PrincipalDue: row.Principal,
				InterestDue:  row.Interest,
				TotalDue:     row.Total,
				AmountPaid:   decimal.Zero,
				Status:       installment.StatusPending,
			})
		}
		if err := r.Installments.CreateBatch(ctx, entries); err != nil {
			return err
		}

		now := u.now()
		disbursed := startDate.UTC()
		l.TotalDue = plan.TotalDue
		l.TotalPaid = decimal.Zero
		l.DisbursedAt = &disbursed
		if err := l.SetStatus(domainLoan.StatusActive, now); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}

		dto = toLoanDTO(l)
		events = append(events, event.New(event.TypeLoanActivated, l.LoanID, now, map[string]any{
			"total_due":      plan.TotalDue.String(),
			"installments":   len(entries),
			"processing_fee": plan.ProcessingFee.String(),
		}))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	u.log.WithField("loan_id", loanID).Info("loan activated, schedule generated")
	return dto, events, nil
}

// GetSchedule returns the loan's installments ordered by sequence.
func (u *Usecase) GetSchedule(ctx context.Context, loanID string) ([]InstallmentDTO, error) {
	var out []InstallmentDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		out = make([]InstallmentDTO, 0, len(entries))
		for _, e := range entries {
			out = append(out, toInstallmentDTO(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOutstanding splits the loan's outstanding balance into principal,
// interest and penalty components.
func (u *Usecase) GetOutstanding(ctx context.Context, loanID string) (*Balance, error) {
	var b Balance
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		entries, err := r.Installments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		pens, err := r.Penalties.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		b = Balance{Principal: decimal.Zero, Interest: decimal.Zero, Penalty: decimal.Zero}
		for _, e := range entries {
			if e.Settled() {
				continue
			}
			b.Principal = b.Principal.Add(e.PrincipalOutstanding())
			b.Interest = b.Interest.Add(e.InterestOutstanding())
		}
		for _, p := range pens {
			b.Penalty = b.Penalty.Add(p.Outstanding())
		}
		b.Total = b.Principal.Add(b.Interest).Add(b.Penalty)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
