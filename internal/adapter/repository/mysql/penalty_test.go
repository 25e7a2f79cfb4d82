package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	installmentDomain "mikopo-backend/internal/domain/installment"
	penaltyDomain "mikopo-backend/internal/domain/penalty"
)

func TestPenaltyCreateGrowAndGetByInstallment(t *testing.T) {
	db := openTestDB(t)
	repo := NewPenaltyRepository(db)
	ctx := context.Background()

	assessed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	e := &penaltyDomain.Entry{
		LoanID:        4,
		InstallmentID: 21,
		Amount:        decimal.RequireFromString("5.34"),
		DaysOverdue:   13,
		AssessedOn:    assessed,
		Status:        penaltyDomain.StatusApplied,
	}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Grow the same entry on a later sweep
	e.Amount = decimal.RequireFromString("5.75")
	e.DaysOverdue = 14
	e.AssessedOn = assessed.AddDate(0, 0, 1)
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByInstallment(ctx, 21)
	if err != nil {
		t.Fatalf("GetByInstallment: %v", err)
	}
	if got.DaysOverdue != 14 || !got.Amount.Equal(decimal.RequireFromString("5.75")) {
		t.Errorf("growth not persisted: %+v", got)
	}

	if _, err := repo.GetByInstallment(ctx, 999); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestPenaltyListByLoan(t *testing.T) {
	db := openTestDB(t)
	repo := NewPenaltyRepository(db)
	ctx := context.Background()

	for i, amt := range []string{"1.10", "2.20"} {
		if err := repo.Create(ctx, &penaltyDomain.Entry{
			LoanID:        6,
			InstallmentID: uint64(30 + i),
			Amount:        decimal.RequireFromString(amt),
			DaysOverdue:   i + 1,
			AssessedOn:    time.Now().UTC(),
			Status:        penaltyDomain.StatusApplied,
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := repo.Create(ctx, &penaltyDomain.Entry{
		LoanID:        7,
		InstallmentID: 40,
		Amount:        decimal.NewFromInt(9),
		DaysOverdue:   3,
		AssessedOn:    time.Now().UTC(),
		Status:        penaltyDomain.StatusApplied,
	}); err != nil {
		t.Fatalf("seed other loan: %v", err)
	}

	got, err := repo.ListByLoan(ctx, 6)
	if err != nil {
		t.Fatalf("ListByLoan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
}

func TestInstallmentSaveAndGetByID(t *testing.T) {
	db := openTestDB(t)
	repo := NewInstallmentRepository(db)
	ctx := context.Background()

	entries := makeEntries(5, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := repo.CreateBatch(ctx, entries); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	first := entries[0]
	first.AmountPaid = first.TotalDue
	first.Status = installmentDomain.StatusPaid
	now := time.Now().UTC()
	first.PaidAt = &now
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != installmentDomain.StatusPaid || !got.Outstanding().IsZero() {
		t.Errorf("settlement not persisted: %+v", got)
	}
}
