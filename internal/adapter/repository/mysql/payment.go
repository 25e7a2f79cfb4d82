package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	paymentDomain "mikopo-backend/internal/domain/payment"
)

type PaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) *PaymentRepository { return &PaymentRepository{db: db} }

func (r *PaymentRepository) Create(ctx context.Context, i *paymentDomain.Intent) error {
	return r.db.WithContext(ctx).Create(i).Error
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*paymentDomain.Intent, error) {
	var out paymentDomain.Intent
	res := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&out)
	return &out, res.Error
}

func (r *PaymentRepository) GetByToken(ctx context.Context, correlationToken string) (*paymentDomain.Intent, error) {
	var out paymentDomain.Intent
	res := r.db.WithContext(ctx).Where("correlation_token = ?", correlationToken).First(&out)
	return &out, res.Error
}

// TransitionStatus writes the intent guarded by its previous status. The
// WHERE clause is the compare-and-set: concurrent writers race on it and
// exactly one wins; the rest observe ErrConcurrentModification.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, i *paymentDomain.Intent, from paymentDomain.Status) error {
	res := r.db.WithContext(ctx).Model(&paymentDomain.Intent{}).
		Where("id = ? AND status = ?", i.ID, from).
		Updates(map[string]any{
			"status":       i.Status,
			"fail_reason":  i.FailReason,
			"external_ref": i.ExternalRef,
			"applied_at":   i.AppliedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return paymentDomain.ErrConcurrentModification
	}
	return nil
}

func (r *PaymentRepository) ListExpirable(ctx context.Context, asOf time.Time) ([]*paymentDomain.Intent, error) {
	var out []*paymentDomain.Intent
	res := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", paymentDomain.StatusPending, asOf).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

func (r *PaymentRepository) CreateAllocations(ctx context.Context, allocs []*paymentDomain.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&allocs).Error
}

func (r *PaymentRepository) ListAllocationsByIntent(ctx context.Context, intentID string) ([]*paymentDomain.Allocation, error) {
	var out []*paymentDomain.Allocation
	res := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}

func (r *PaymentRepository) LastAppliedByLoan(ctx context.Context, loanNumericID uint64) (*paymentDomain.Intent, error) {
	var out paymentDomain.Intent
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND status = ?", loanNumericID, paymentDomain.StatusApplied).
		Order("applied_at DESC, id DESC").
		First(&out)
	return &out, res.Error
}
