package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"mikopo-backend/internal/domain/event"
	"mikopo-backend/internal/usecase/schedule"
)

type LoanHandler struct {
	uc       *schedule.Usecase
	dispatch *event.Dispatcher
}

func NewLoanHandler(uc *schedule.Usecase, dispatch *event.Dispatcher) *LoanHandler {
	return &LoanHandler{uc: uc, dispatch: dispatch}
}

type createLoanReq struct {
	BorrowerID       string  `json:"borrower_id"        validate:"required,hex32"`
	Principal        float64 `json:"principal"          validate:"required,gt=0,dec2"`
	AnnualRatePct    float64 `json:"annual_rate_pct"    validate:"gte=0,lte=100"`
	TermPeriods      int     `json:"term_periods"       validate:"required,gte=1"`
	Convention       string  `json:"convention"         validate:"required,oneof=FIXED FLAT_RATE REDUCING_BALANCE"`
	Cadence          string  `json:"cadence"            validate:"required,oneof=DAILY WEEKLY BIWEEKLY MONTHLY QUARTERLY BIANNUAL ANNUAL BULLET"`
	ProcessingFeePct float64 `json:"processing_fee_pct" validate:"gte=0,lte=100"`
	PenaltyRatePct   float64 `json:"penalty_rate_pct"   validate:"gte=0,lte=100"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Create(c.Request().Context(), schedule.CreateLoanInput{
		BorrowerID:       req.BorrowerID,
		Principal:        decimal.NewFromFloat(req.Principal),
		AnnualRatePct:    decimal.NewFromFloat(req.AnnualRatePct),
		TermPeriods:      req.TermPeriods,
		Convention:       req.Convention,
		Cadence:          req.Cadence,
		ProcessingFeePct: decimal.NewFromFloat(req.ProcessingFeePct),
		PenaltyRatePct:   decimal.NewFromFloat(req.PenaltyRatePct),
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, err := h.uc.Get(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ApproveLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, events, err := h.uc.Approve(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(events...)
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) CancelLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, events, err := h.uc.Cancel(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(events...)
	return c.JSON(http.StatusOK, dto)
}

type activateLoanReq struct {
	// Optional; defaults to today. Canonical date `YYYY-MM-DD`.
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *LoanHandler) ActivateLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	var req activateLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	var start time.Time
	if req.StartDate != "" {
		start, _ = time.Parse("2006-01-02", req.StartDate)
	}
	dto, events, err := h.uc.Activate(c.Request().Context(), loanID, start)
	if err != nil {
		return domainError(c, err)
	}
	h.dispatch.Dispatch(events...)
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetSchedule(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	rows, err := h.uc.GetSchedule(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loan_id": loanID, "installments": rows})
}

func (h *LoanHandler) GetOutstanding(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	b, err := h.uc.GetOutstanding(c.Request().Context(), loanID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
