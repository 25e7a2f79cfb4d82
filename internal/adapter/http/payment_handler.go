package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/domain/payment"
	"mikopo-backend/internal/usecase/ledger"
	"mikopo-backend/internal/usecase/reconcile"
)

type PaymentHandler struct {
	ledger    *ledger.Usecase
	reconcile *reconcile.Usecase
	dispatch  *event.Dispatcher
}

func NewPaymentHandler(led *ledger.Usecase, rec *reconcile.Usecase, dispatch *event.Dispatcher) *PaymentHandler {
	return &PaymentHandler{ledger: led, reconcile: rec, dispatch: dispatch}
}

type applyPaymentReq struct {
	Amount              float64 `json:"amount"                validate:"required,gt=0,dec2"`
	Reference           string  `json:"reference"             validate:"omitempty,max=64"`
	TargetInstallmentID *uint64 `json:"target_installment_id" validate:"omitempty"`
	Advance             bool    `json:"advance"`
}

// ApplyPayment records a manual repayment (cash desk, bank transfer).
func (h *PaymentHandler) ApplyPayment(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	var req applyPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	res, err := h.ledger.Apply(c.Request().Context(), ledger.ApplyInput{
		LoanID:              loanID,
		Amount:              decimal.NewFromFloat(req.Amount),
		Source:              payment.SourceManual,
		Reference:           req.Reference,
		TargetInstallmentID: req.TargetInstallmentID,
		Advance:             req.Advance,
	})
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(res.Events...)
	return c.JSON(http.StatusCreated, res)
}

type waiveReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0,dec2"`
	Reason string  `json:"reason" validate:"required,max=255"`
}

func (h *PaymentHandler) WaiveInstallment(c echo.Context) error {
	loanID := c.Param("loan_id")
	installmentID, err := strconv.ParseUint(c.Param("installment_id"), 10, 64)
	if loanID == "" || err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid path params"})
	}
	var req waiveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	res, err := h.ledger.Waive(c.Request().Context(), loanID, installmentID, decimal.NewFromFloat(req.Amount), req.Reason)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(res.Events...)
	return c.JSON(http.StatusOK, res)
}

// A penalty is always waived whole, so only the reason travels.
type waivePenaltyReq struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

func (h *PaymentHandler) WaivePenalty(c echo.Context) error {
	loanID := c.Param("loan_id")
	penaltyID, err := strconv.ParseUint(c.Param("penalty_id"), 10, 64)
	if loanID == "" || err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing or invalid path params"})
	}
	var req waivePenaltyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	res, err := h.ledger.WaivePenalty(c.Request().Context(), loanID, penaltyID, req.Reason)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(res.Events...)
	return c.JSON(http.StatusOK, res)
}

type cancelPaymentReq struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

func (h *PaymentHandler) CancelPayment(c echo.Context) error {
	loanID := c.Param("loan_id")
	intentID := c.Param("intent_id")
	if loanID == "" || intentID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing path params"})
	}
	var req cancelPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	res, err := h.ledger.Cancel(c.Request().Context(), loanID, intentID, req.Reason)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(res.Events...)
	return c.JSON(http.StatusOK, res)
}

type initiatePaymentReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0,dec2"`
	Phone  string  `json:"phone"  validate:"required,e164"`
}

// InitiatePayment starts a mobile-money collection. The response carries the
// correlation token the gateway will echo back in its callback.
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	var req initiatePaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	token, err := h.reconcile.Initiate(c.Request().Context(), loanID, decimal.NewFromFloat(req.Amount), req.Phone)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"correlation_token": token})
}

func (h *PaymentHandler) RetryPayment(c echo.Context) error {
	intentID := c.Param("intent_id")
	if intentID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing intent_id path param"})
	}
	token, err := h.reconcile.Retry(c.Request().Context(), intentID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"correlation_token": token})
}

type gatewayCallbackReq struct {
	CorrelationToken string  `json:"correlation_token" validate:"required"`
	Status           string  `json:"status"            validate:"required"`
	Amount           float64 `json:"amount"            validate:"gte=0"`
	ExternalRef      string  `json:"external_ref"      validate:"omitempty,max=64"`
}

// GatewayCallback receives the asynchronous confirmation from the mobile-money
// provider. It must answer 200 for anything already settled, or the provider
// keeps redelivering.
func (h *PaymentHandler) GatewayCallback(c echo.Context) error {
	var req gatewayCallbackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	res, err := h.reconcile.OnCallback(c.Request().Context(), req.CorrelationToken,
		req.Status, decimal.NewFromFloat(req.Amount), req.ExternalRef)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(res.Events...)
	return c.JSON(http.StatusOK, res)
}
