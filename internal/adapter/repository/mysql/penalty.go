package mysql

import (
	"context"

	"gorm.io/gorm"

	penaltyDomain "mikopo-backend/internal/domain/penalty"
)

type PenaltyRepository struct{ db *gorm.DB }

func NewPenaltyRepository(db *gorm.DB) *PenaltyRepository { return &PenaltyRepository{db: db} }

func (r *PenaltyRepository) Create(ctx context.Context, e *penaltyDomain.Entry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *PenaltyRepository) Save(ctx context.Context, e *penaltyDomain.Entry) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *PenaltyRepository) GetByInstallment(ctx context.Context, installmentID uint64) (*penaltyDomain.Entry, error) {
	var out penaltyDomain.Entry
	res := r.db.WithContext(ctx).Where("installment_id = ?", installmentID).First(&out)
	return &out, res.Error
}

func (r *PenaltyRepository) ListByLoan(ctx context.Context, loanNumericID uint64) ([]*penaltyDomain.Entry, error) {
	var out []*penaltyDomain.Entry
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}
