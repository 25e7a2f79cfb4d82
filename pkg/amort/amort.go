// Package amort computes loan amortization schedules and late fees.
// It is pure: no I/O, no clocks, fully deterministic for a given input.
package amort

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTerm rejects inputs that cannot produce a schedule.
var ErrInvalidTerm = errors.New("amort: invalid loan terms")

type Convention string

const (
	ConventionFixed           Convention = "FIXED"
	ConventionFlatRate        Convention = "FLAT_RATE"
	ConventionReducingBalance Convention = "REDUCING_BALANCE"
)

type Cadence string

const (
	CadenceDaily     Cadence = "DAILY"
	CadenceWeekly    Cadence = "WEEKLY"
	CadenceBiweekly  Cadence = "BIWEEKLY"
	CadenceMonthly   Cadence = "MONTHLY"
	CadenceQuarterly Cadence = "QUARTERLY"
	CadenceBiannual  Cadence = "BIANNUAL"
	CadenceAnnual    Cadence = "ANNUAL"
	// CadenceBullet means a single payment at maturity; the term is given in months.
	CadenceBullet Cadence = "BULLET"
)

// PeriodsPerYear returns how many installments a year holds for recurring
// cadences, and 0 for BULLET.
func (c Cadence) PeriodsPerYear() int {
	switch c {
	case CadenceDaily:
		return 365
	case CadenceWeekly:
		return 52
	case CadenceBiweekly:
		return 26
	case CadenceMonthly:
		return 12
	case CadenceQuarterly:
		return 4
	case CadenceBiannual:
		return 2
	case CadenceAnnual:
		return 1
	default:
		return 0
	}
}

// dueDate returns the due date of the k-th installment (1-based) counted
// from start. For BULLET the single installment falls term months after start.
func (c Cadence) dueDate(start time.Time, k, termMonths int) time.Time {
	switch c {
	case CadenceDaily:
		return start.AddDate(0, 0, k)
	case CadenceWeekly:
		return start.AddDate(0, 0, 7*k)
	case CadenceBiweekly:
		return start.AddDate(0, 0, 14*k)
	case CadenceMonthly:
		return start.AddDate(0, k, 0)
	case CadenceQuarterly:
		return start.AddDate(0, 3*k, 0)
	case CadenceBiannual:
		return start.AddDate(0, 6*k, 0)
	case CadenceAnnual:
		return start.AddDate(k, 0, 0)
	default: // bullet
		return start.AddDate(0, termMonths, 0)
	}
}

type Input struct {
	Principal         decimal.Decimal
	AnnualRatePct     decimal.Decimal // e.g. 12 means 12% per annum
	TermPeriods       int             // installment count; months for BULLET
	Convention        Convention
	Cadence           Cadence
	ProcessingFeePct  decimal.Decimal // charged on principal at disbursement
	StartDate         time.Time
}

// Installment is one row of a computed schedule.
type Installment struct {
	Seq       int
	DueDate   time.Time
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Total     decimal.Decimal
}

// Schedule is the full amortization result. TotalDue excludes the processing
// fee, which is settled at disbursement rather than amortized.
type Schedule struct {
	Installments  []Installment
	Periodic      decimal.Decimal // recurring installment amount (0 for bullet)
	TotalInterest decimal.Decimal
	TotalDue      decimal.Decimal
	ProcessingFee decimal.Decimal
}

var (
	hundred    = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
	twelve     = decimal.NewFromInt(12)
)

// Compute builds the installment schedule for the given terms.
func Compute(in Input) (*Schedule, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var rows []Installment
	switch {
	case in.Cadence == CadenceBullet:
		rows = bulletSchedule(in)
	case in.Convention == ConventionReducingBalance:
		rows = annuitySchedule(in)
	default: // FIXED and FLAT_RATE share straight-line interest
		rows = flatSchedule(in)
	}

	s := &Schedule{
		Installments:  rows,
		ProcessingFee: in.Principal.Mul(in.ProcessingFeePct).Div(hundred).Round(2),
	}
	if in.Cadence != CadenceBullet && len(rows) > 0 {
		s.Periodic = rows[0].Total
	}
	for _, r := range rows {
		s.TotalInterest = s.TotalInterest.Add(r.Interest)
		s.TotalDue = s.TotalDue.Add(r.Total)
	}
	return s, nil
}

func validate(in Input) error {
	if in.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: principal must be positive", ErrInvalidTerm)
	}
	if in.TermPeriods <= 0 {
		return fmt.Errorf("%w: term must be positive", ErrInvalidTerm)
	}
	if in.AnnualRatePct.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidTerm)
	}
	if in.ProcessingFeePct.IsNegative() {
		return fmt.Errorf("%w: processing fee must not be negative", ErrInvalidTerm)
	}
	switch in.Convention {
	case ConventionFixed, ConventionFlatRate, ConventionReducingBalance:
	default:
		return fmt.Errorf("%w: unknown convention %q", ErrInvalidTerm, in.Convention)
	}
	if in.Cadence != CadenceBullet && in.Cadence.PeriodsPerYear() == 0 {
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidTerm, in.Cadence)
	}
	return nil
}

// annuitySchedule implements the standard annuity formula
// I = P*r*(1+r)^n / ((1+r)^n - 1) with r the per-period rate. The power term
// is computed in float64, monetary arithmetic stays in decimal.
func annuitySchedule(in Input) []Installment {
	n := in.TermPeriods
	ppy := in.Cadence.PeriodsPerYear()
	rate, _ := in.AnnualRatePct.Div(hundred).Div(decimal.NewFromInt(int64(ppy))).Float64()

	var payment decimal.Decimal
	if rate == 0 {
		payment = in.Principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	} else {
		factor := math.Pow(1+rate, float64(n))
		p, _ := in.Principal.Float64()
		payment = decimal.NewFromFloat(p * rate * factor / (factor - 1)).Round(2)
	}

	rateDec := decimal.NewFromFloat(rate)
	rows := make([]Installment, 0, n)
	remaining := in.Principal
	for k := 1; k <= n; k++ {
		interest := remaining.Mul(rateDec).Round(2)
		principal := payment.Sub(interest)
		if k == n {
			// Final installment absorbs the rounding residue so that the
			// principal components sum exactly to the loan principal.
			principal = remaining
		}
		remaining = remaining.Sub(principal)
		rows = append(rows, Installment{
			Seq:       k,
			DueDate:   in.Cadence.dueDate(in.StartDate, k, in.TermPeriods),
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
		})
	}
	return rows
}

// flatSchedule distributes principal and straight-line interest evenly.
// Total interest is P * annualRate * termMonths/12 regardless of cadence.
func flatSchedule(in Input) []Installment {
	n := int64(in.TermPeriods)
	months := termMonths(in)
	totalInterest := in.Principal.
		Mul(in.AnnualRatePct).Div(hundred).
		Mul(months).Div(twelve).Round(2)

	perPrincipal := in.Principal.Div(decimal.NewFromInt(n)).Round(2)
	perInterest := totalInterest.Div(decimal.NewFromInt(n)).Round(2)

	rows := make([]Installment, 0, in.TermPeriods)
	paidPrincipal, paidInterest := decimal.Zero, decimal.Zero
	for k := 1; k <= in.TermPeriods; k++ {
		principal, interest := perPrincipal, perInterest
		if k == in.TermPeriods {
			principal = in.Principal.Sub(paidPrincipal)
			interest = totalInterest.Sub(paidInterest)
		}
		paidPrincipal = paidPrincipal.Add(principal)
		paidInterest = paidInterest.Add(interest)
		rows = append(rows, Installment{
			Seq:       k,
			DueDate:   in.Cadence.dueDate(in.StartDate, k, in.TermPeriods),
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
		})
	}
	return rows
}

// bulletSchedule produces a single payment at maturity. Reducing balance
// compounds annually: total = P*(1+annualRate)^years. Fixed and flat use the
// same straight-line interest as recurring cadences.
func bulletSchedule(in Input) []Installment {
	var interest decimal.Decimal
	if in.Convention == ConventionReducingBalance {
		rate, _ := in.AnnualRatePct.Div(hundred).Float64()
		years, _ := termMonths(in).Div(twelve).Float64()
		p, _ := in.Principal.Float64()
		total := decimal.NewFromFloat(p * math.Pow(1+rate, years)).Round(2)
		interest = total.Sub(in.Principal)
	} else {
		interest = in.Principal.
			Mul(in.AnnualRatePct).Div(hundred).
			Mul(termMonths(in)).Div(twelve).Round(2)
	}
	return []Installment{{
		Seq:       1,
		DueDate:   in.Cadence.dueDate(in.StartDate, 1, in.TermPeriods),
		Principal: in.Principal,
		Interest:  interest,
		Total:     in.Principal.Add(interest),
	}}
}

// termMonths converts the term into months for interest conventions that are
// quoted per month. BULLET terms are already months.
func termMonths(in Input) decimal.Decimal {
	if in.Cadence == CadenceBullet {
		return decimal.NewFromInt(int64(in.TermPeriods))
	}
	return decimal.NewFromInt(int64(in.TermPeriods)).
		Mul(twelve).
		Div(decimal.NewFromInt(int64(in.Cadence.PeriodsPerYear())))
}

// LateFee computes the penalty for an overdue amount:
// overdue * annualPenaltyRate/365 * daysOverdue, capped at the overdue amount.
func LateFee(overdue, annualPenaltyRatePct decimal.Decimal, daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 || overdue.LessThanOrEqual(decimal.Zero) || annualPenaltyRatePct.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	fee := overdue.
		Mul(annualPenaltyRatePct).Div(hundred).
		Div(daysInYear).
		Mul(decimal.NewFromInt(int64(daysOverdue))).Round(2)
	if fee.GreaterThan(overdue) {
		return overdue
	}
	return fee
}
