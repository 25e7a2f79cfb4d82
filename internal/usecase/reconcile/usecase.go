package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/gateway"
	domainLoan "mikopo-backend/internal/domain/loan"
	"mikopo-backend/internal/domain/payment"
	"mikopo-backend/internal/usecase/ledger"
	"mikopo-backend/pkg/id"
)

type Config struct {
	// AmountTolerance is the largest acceptable difference between the
	// intent amount and the gateway-confirmed amount.
	AmountTolerance decimal.Decimal
	// MaxRetries bounds re-initiations of one logical payment.
	MaxRetries int
	// MaxConflictRetries bounds the compare-and-set loop when callbacks race.
	MaxConflictRetries int
	// IntentTTL: a PENDING intent with no callback inside this window is
	// expired by the timeout sweep.
	IntentTTL time.Duration
}

// Usecase matches asynchronous gateway confirmations to payment intents
// exactly once, then hands the confirmed amount to the ledger. Duplicate and
// out-of-order callbacks are absorbed by compare-and-set transitions on the
// intent status.
type Usecase struct {
	payments payment.Repository
	loans    domainLoan.Repository
	ledger   *ledger.Usecase
	gw       gateway.Gateway
	cfg      Config
	log      *logrus.Logger
	now      func() time.Time
}

func NewUsecase(payments payment.Repository, loans domainLoan.Repository, led *ledger.Usecase, gw gateway.Gateway, cfg Config, log *logrus.Logger) *Usecase {
	return &Usecase{
		payments: payments,
		loans:    loans,
		ledger:   led,
		gw:       gw,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the usecase clock, for tests.
func (u *Usecase) WithClock(now func() time.Time) *Usecase { u.now = now; return u }

// Initiate creates a PENDING intent and asks the gateway to prompt the
// subscriber. The returned correlation token is echoed back in the callback.
func (u *Usecase) Initiate(ctx context.Context, loanID string, amount decimal.Decimal, phone string) (string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", ledger.ErrInvalidAmount
	}
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domainLoan.ErrNotFound
		}
		return "", err
	}
	if !l.Status.Payable() {
		return "", ledger.ErrLoanNotPayable
	}
	if amount.GreaterThan(l.Outstanding()) {
		return "", domainLoan.ErrOverpayment
	}

	it := &payment.Intent{
		IntentID:         id.NewID32(),
		LoanID:           l.ID,
		Amount:           amount,
		Source:           payment.SourceMobileMoney,
		Phone:            phone,
		CorrelationToken: uuid.NewString(),
		Status:           payment.StatusPending,
		Attempt:          1,
		ExpiresAt:        u.now().Add(u.cfg.IntentTTL),
	}
	if err := u.payments.Create(ctx, it); err != nil {
		return "", err
	}
	return u.dispatchToGateway(ctx, it)
}

// Retry re-initiates a FAILED logical payment under a fresh intent and
// correlation token. The failed predecessor is kept for the audit trail.
func (u *Usecase) Retry(ctx context.Context, intentID string) (string, error) {
	old, err := u.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", payment.ErrUnknownIntent
		}
		return "", err
	}
	if old.Status != payment.StatusFailed {
		return "", payment.ErrNotRetryable
	}
	if old.Attempt >= u.cfg.MaxRetries {
		return "", payment.ErrRetriesExhausted
	}

	it := &payment.Intent{
		IntentID:            id.NewID32(),
		LoanID:              old.LoanID,
		TargetInstallmentID: old.TargetInstallmentID,
		Amount:              old.Amount,
		Source:              old.Source,
		Phone:               old.Phone,
		CorrelationToken:    uuid.NewString(),
		Status:              payment.StatusPending,
		Attempt:             old.Attempt + 1,
		RetryOf:             old.IntentID,
		ExpiresAt:           u.now().Add(u.cfg.IntentTTL),
	}
	if err := u.payments.Create(ctx, it); err != nil {
		return "", err
	}
	return u.dispatchToGateway(ctx, it)
}

func (u *Usecase) dispatchToGateway(ctx context.Context, it *payment.Intent) (string, error) {
	providerRef, err := u.gw.InitiatePaymentRequest(ctx, it.Phone, it.Amount, it.CorrelationToken)
	if err != nil {
		it.Status = payment.StatusFailed
		it.FailReason = err.Error()
		if casErr := u.payments.TransitionStatus(ctx, it, payment.StatusPending); casErr != nil {
			u.log.WithError(casErr).WithField("intent_id", it.IntentID).Error("failed to mark intent failed")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", payment.ErrGatewayTimeout, err)
		}
		return "", err
	}
	it.ExternalRef = providerRef
	if err := u.payments.TransitionStatus(ctx, it, payment.StatusPending); err != nil {
		// A blisteringly fast callback beat us; the provider ref is lost but
		// the payment proceeds through the callback path.
		u.log.WithField("intent_id", it.IntentID).Warn("callback arrived before initiation completed")
	}
	u.log.WithFields(logrus.Fields{"intent_id": it.IntentID, "attempt": it.Attempt}).Info("payment request dispatched")
	return it.CorrelationToken, nil
}

// CallbackResult reports how a gateway confirmation was handled.
type CallbackResult struct {
	IntentID    string                    `json:"intent_id"`
	Status      string                    `json:"status"`
	Duplicate   bool                      `json:"duplicate"`
	Application *ledger.ApplicationResult `json:"application,omitempty"`
	Events      []event.Event             `json:"-"`
}

// OnCallback processes one asynchronous confirmation from the gateway.
// Semantics: unknown tokens error out; callbacks for terminal intents are
// acknowledged as no-ops (the gateway retries delivery, we absorb the
// duplicates); a success confirmation progresses PENDING→MATCHED→APPLIED
// with the ledger application in between. Whoever wins the compare-and-set
// race applies the money; everyone else no-ops.
func (u *Usecase) OnCallback(ctx context.Context, token, externalStatus string, externalAmount decimal.Decimal, externalRef string) (*CallbackResult, error) {
	for attempt := 0; attempt <= u.cfg.MaxConflictRetries; attempt++ {
		it, err := u.payments.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				u.log.WithField("token", token).Warn("callback for unknown correlation token")
				return nil, payment.ErrUnknownIntent
			}
			return nil, err
		}

		switch it.Status {
		case payment.StatusApplied:
			// Duplicate delivery of a processed confirmation: success, no effect.
			return &CallbackResult{IntentID: it.IntentID, Status: string(it.Status), Duplicate: true}, nil
		case payment.StatusFailed, payment.StatusExpired:
			// A late callback lost the race against failure/expiry.
			return &CallbackResult{IntentID: it.IntentID, Status: string(it.Status), Duplicate: true}, nil
		case payment.StatusMatched:
			// Another callback is mid-application; treat as in-flight duplicate.
			return &CallbackResult{IntentID: it.IntentID, Status: string(it.Status), Duplicate: true}, nil
		}

		if !successStatus(externalStatus) {
			it.Status = payment.StatusFailed
			it.FailReason = "gateway reported " + externalStatus
			it.ExternalRef = externalRef
			if err := u.payments.TransitionStatus(ctx, it, payment.StatusPending); err != nil {
				if errors.Is(err, payment.ErrConcurrentModification) {
					continue // somebody else moved it; re-read and re-dispatch
				}
				return nil, err
			}
			return &CallbackResult{
				IntentID: it.IntentID,
				Status:   string(it.Status),
				Events: []event.Event{event.New(event.TypePaymentFailed, "", u.now(), map[string]any{
					"intent_id": it.IntentID,
					"reason":    it.FailReason,
				})},
			}, nil
		}

		if externalAmount.Sub(it.Amount).Abs().GreaterThan(u.cfg.AmountTolerance) {
			it.Status = payment.StatusFailed
			it.FailReason = fmt.Sprintf("amount mismatch: confirmed %s, expected %s", externalAmount, it.Amount)
			it.ExternalRef = externalRef
			if err := u.payments.TransitionStatus(ctx, it, payment.StatusPending); err != nil {
				if errors.Is(err, payment.ErrConcurrentModification) {
					continue
				}
				return nil, err
			}
			return nil, fmt.Errorf("%w: confirmed %s, expected %s", payment.ErrAmountMismatch, externalAmount, it.Amount)
		}

		// Success path: claim the intent before touching the ledger.
		it.Status = payment.StatusMatched
		it.ExternalRef = externalRef
		if err := u.payments.TransitionStatus(ctx, it, payment.StatusPending); err != nil {
			if errors.Is(err, payment.ErrConcurrentModification) {
				continue
			}
			return nil, err
		}
		return u.applyMatched(ctx, it)
	}
	return nil, payment.ErrConcurrentModification
}

// applyMatched pushes a MATCHED intent through the ledger and settles the
// intent's final status.
func (u *Usecase) applyMatched(ctx context.Context, it *payment.Intent) (*CallbackResult, error) {
	l, err := u.loans.GetByID(ctx, it.LoanID)
	if err != nil {
		return nil, err
	}
	app, err := u.ledger.Apply(ctx, ledger.ApplyInput{
		LoanID:              l.LoanID,
		Amount:              it.Amount,
		Source:              payment.SourceMobileMoney,
		Reference:           it.ExternalRef,
		IntentID:            it.IntentID,
		TargetInstallmentID: it.TargetInstallmentID,
	})
	if err != nil {
		it.Status = payment.StatusFailed
		it.FailReason = err.Error()
		if casErr := u.payments.TransitionStatus(ctx, it, payment.StatusMatched); casErr != nil {
			u.log.WithError(casErr).WithField("intent_id", it.IntentID).Error("failed to mark matched intent failed")
		}
		// Surfaced for the manual reconciliation workflow.
		return nil, err
	}

	appliedAt := u.now()
	it.Status = payment.StatusApplied
	it.AppliedAt = &appliedAt
	if err := u.payments.TransitionStatus(ctx, it, payment.StatusMatched); err != nil {
		// The money is applied; losing this cosmetic update must not fail
		// the callback, or the gateway would redeliver forever.
		u.log.WithError(err).WithField("intent_id", it.IntentID).Error("intent stuck in MATCHED after application")
	}
	return &CallbackResult{
		IntentID:    it.IntentID,
		Status:      string(it.Status),
		Application: app,
		Events:      app.Events,
	}, nil
}

// ExpireStale transitions PENDING intents past their deadline to EXPIRED.
// The compare-and-set guard resolves the race with a late callback: whichever
// side commits first wins, the other becomes a no-op.
func (u *Usecase) ExpireStale(ctx context.Context, asOf time.Time) (int, []event.Event, error) {
	stale, err := u.payments.ListExpirable(ctx, asOf)
	if err != nil {
		return 0, nil, err
	}
	expired := 0
	var events []event.Event
	for _, it := range stale {
		it.Status = payment.StatusExpired
		if err := u.payments.TransitionStatus(ctx, it, payment.StatusPending); err != nil {
			if errors.Is(err, payment.ErrConcurrentModification) {
				continue // a callback claimed it first
			}
			return expired, events, err
		}
		expired++
		events = append(events, event.New(event.TypeIntentExpired, "", asOf, map[string]any{
			"intent_id": it.IntentID,
		}))
	}
	return expired, events, nil
}

// successStatus normalises the provider's terminal status. M-Pesa style
// gateways report a zero result code on success.
func successStatus(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "COMPLETED", "0":
		return true
	default:
		return false
	}
}
