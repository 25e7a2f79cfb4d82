package mysql

import (
	"context"

	"gorm.io/gorm"

	installmentDomain "mikopo-backend/internal/domain/installment"
)

type InstallmentRepository struct{ db *gorm.DB }

func NewInstallmentRepository(db *gorm.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) CreateBatch(ctx context.Context, entries []*installmentDomain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *InstallmentRepository) GetByID(ctx context.Context, id uint64) (*installmentDomain.Entry, error) {
	var out installmentDomain.Entry
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *InstallmentRepository) ListByLoan(ctx context.Context, loanNumericID uint64) ([]*installmentDomain.Entry, error) {
	var out []*installmentDomain.Entry
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		Order("seq ASC").
		Find(&out)
	return out, res.Error
}

func (r *InstallmentRepository) Save(ctx context.Context, e *installmentDomain.Entry) error {
	return r.db.WithContext(ctx).Save(e).Error
}
