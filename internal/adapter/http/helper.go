package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mikopo-backend/internal/domain/loan"
	"mikopo-backend/internal/domain/payment"
	"mikopo-backend/internal/usecase/ledger"
	"mikopo-backend/pkg/amort"
)

// domainStatus maps a usecase error to the HTTP status a client should see.
// Unmapped errors fall through to 400 so internals never leak as 500s for
// plain rule violations.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, loan.ErrNotFound),
		errors.Is(err, payment.ErrUnknownIntent):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrInvalidTransition),
		errors.Is(err, loan.ErrScheduleExists),
		errors.Is(err, payment.ErrNotReversible),
		errors.Is(err, payment.ErrNotRetryable),
		errors.Is(err, payment.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, loan.ErrOverpayment),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrRetriesExhausted),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrLoanNotPayable),
		errors.Is(err, ledger.ErrReasonRequired),
		errors.Is(err, amort.ErrInvalidTerm):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}

func domainError(c echo.Context, err error) error {
	return c.JSON(domainStatus(err), ErrorResponse{Error: err.Error()})
}
