package loan

import "errors"

var (
	ErrNotFound          = errors.New("loan: not found")
	ErrInvalidTransition = errors.New("loan: invalid status transition")
	// ErrScheduleExists guards against regenerating a schedule once any
	// installment has received money.
	ErrScheduleExists = errors.New("loan: repayment schedule already exists")
	// ErrOverpayment rejects payments beyond what the loan can absorb.
	ErrOverpayment = errors.New("loan: payment exceeds outstanding balance")
)
