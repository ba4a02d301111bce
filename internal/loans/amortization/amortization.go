// Package amortization computes weekly amortization, release deductions and
// net proceeds for term loans.
package amortization

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
)

var (
	// ErrInvalidTerm indicates a term of zero or fewer weeks.
	ErrInvalidTerm = errors.New("amortization: term must be positive")
	// ErrInvalidAmount indicates a negative principal, rate or fund.
	ErrInvalidAmount = errors.New("amortization: amount must not be negative")
)

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Policy holds the release deduction schedule.
type Policy struct {
	ServiceFeePerThousand       decimal.Decimal `yaml:"serviceFeePerThousand"`
	ServiceChargePct            decimal.Decimal `yaml:"serviceChargePct"`
	UnityFund                   decimal.Decimal `yaml:"unityFund"`
	InsurancePremiumPerThousand decimal.Decimal `yaml:"insurancePremiumPerThousand"`
	InsuranceKSB                decimal.Decimal `yaml:"insuranceKSB"`
	LegalFee                    decimal.Decimal `yaml:"legalFee"`
	// DivisionPrecision is the number of places kept by the weekly division.
	DivisionPrecision int32 `yaml:"divisionPrecision"`
}

// Deductions itemizes the amounts withheld at release.
type Deductions struct {
	ServiceCharge    decimal.Decimal `json:"serviceCharge"`
	UnityFund        decimal.Decimal `json:"unityFund"`
	InsurancePremium decimal.Decimal `json:"insurancePremium"`
	LegalFee         decimal.Decimal `json:"legalFee"`
	InsuranceKSB     decimal.Decimal `json:"insuranceKSB"`
}

// Total sums every deduction.
func (d Deductions) Total() decimal.Decimal {
	return d.ServiceCharge.Add(d.UnityFund).Add(d.InsurancePremium).Add(d.InsuranceKSB).Add(d.LegalFee)
}

// Result is the unrounded computation for one loan.
type Result struct {
	Principal          decimal.Decimal `json:"principal"`
	Interest           decimal.Decimal `json:"interest"`
	TermWeeks          int             `json:"termWeeks"`
	WeeklySavingsFund  decimal.Decimal `json:"weeklySavingsFund"`
	TotalPayment       decimal.Decimal `json:"totalPayment"`
	WeeklyAmortization decimal.Decimal `json:"weeklyAmortization"`
	Deductions         Deductions      `json:"deductions"`
	TotalDeductions    decimal.Decimal `json:"totalDeductions"`
	NetLoanProceeds    decimal.Decimal `json:"netLoanProceeds"`
}

// Display returns a copy rounded half-up to two places for presentation.
func (r Result) Display() Result {
	out := r
	out.Principal = ledger.Round(r.Principal)
	out.Interest = ledger.Round(r.Interest)
	out.WeeklySavingsFund = ledger.Round(r.WeeklySavingsFund)
	out.TotalPayment = ledger.Round(r.TotalPayment)
	out.WeeklyAmortization = ledger.Round(r.WeeklyAmortization)
	out.Deductions = Deductions{
		ServiceCharge:    ledger.Round(r.Deductions.ServiceCharge),
		UnityFund:        ledger.Round(r.Deductions.UnityFund),
		InsurancePremium: ledger.Round(r.Deductions.InsurancePremium),
		LegalFee:         ledger.Round(r.Deductions.LegalFee),
		InsuranceKSB:     ledger.Round(r.Deductions.InsuranceKSB),
	}
	out.TotalDeductions = ledger.Round(r.TotalDeductions)
	out.NetLoanProceeds = ledger.Round(r.NetLoanProceeds)
	return out
}

// Calculator applies a deduction policy.
type Calculator struct {
	policy Policy
}

// NewCalculator builds a calculator; a zero DivisionPrecision defaults to 16.
func NewCalculator(p Policy) *Calculator {
	if p.DivisionPrecision <= 0 {
		p.DivisionPrecision = 16
	}
	return &Calculator{policy: p}
}

// Policy returns the active policy.
func (c *Calculator) Policy() Policy { return c.policy }

// Compute derives the weekly amortization and release figures:
//
//	interest           = principal * annualInterestPct / 100
//	totalPayment       = (interest + principal + weeklySavingsFund) / termWeeks
//	weeklyAmortization = totalPayment + ceil(principal / 1000) * serviceFeePerThousand
//	netLoanProceeds    = principal - totalDeductions
func (c *Calculator) Compute(principal, annualInterestPct decimal.Decimal, termWeeks int, weeklySavingsFund decimal.Decimal) (Result, error) {
	if termWeeks <= 0 {
		return Result{}, fmt.Errorf("%w: %d weeks", ErrInvalidTerm, termWeeks)
	}
	if principal.IsNegative() || annualInterestPct.IsNegative() || weeklySavingsFund.IsNegative() {
		return Result{}, ErrInvalidAmount
	}
	thousands := principal.Div(thousand).Ceil()

	interest := principal.Mul(annualInterestPct).Div(hundred)
	totalPayment := interest.Add(principal).Add(weeklySavingsFund).
		DivRound(decimal.NewFromInt(int64(termWeeks)), c.policy.DivisionPrecision)
	weekly := totalPayment.Add(thousands.Mul(c.policy.ServiceFeePerThousand))

	deductions := c.Deductions(principal)
	total := deductions.Total()
	return Result{
		Principal:          principal,
		Interest:           interest,
		TermWeeks:          termWeeks,
		WeeklySavingsFund:  weeklySavingsFund,
		TotalPayment:       totalPayment,
		WeeklyAmortization: weekly,
		Deductions:         deductions,
		TotalDeductions:    total,
		NetLoanProceeds:    principal.Sub(total),
	}, nil
}

// Deductions itemizes release deductions for principal.
func (c *Calculator) Deductions(principal decimal.Decimal) Deductions {
	thousands := principal.Div(thousand).Ceil()
	return Deductions{
		ServiceCharge:    principal.Mul(c.policy.ServiceChargePct).Div(hundred),
		UnityFund:        c.policy.UnityFund,
		InsurancePremium: thousands.Mul(c.policy.InsurancePremiumPerThousand),
		LegalFee:         c.policy.LegalFee,
		InsuranceKSB:     c.policy.InsuranceKSB,
	}
}
