package amortization

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// LoanTerms describes one loan of a release batch.
type LoanTerms struct {
	LoanID            string          `json:"loanId" validate:"required"`
	ClientID          string          `json:"clientId"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualInterestPct decimal.Decimal `json:"annualInterestPct"`
	TermWeeks         int             `json:"termWeeks"`
}

// BatchResult pairs a loan with its computation or the error that stopped it.
type BatchResult struct {
	LoanID   string  `json:"loanId"`
	ClientID string  `json:"clientId"`
	Result   *Result `json:"result,omitempty"`
	Err      error   `json:"-"`
	Error    string  `json:"error,omitempty"`
}

// Batch computes every loan with at most concurrency workers. A failing loan
// records its error and never affects the others. Output order matches input.
func (c *Calculator) Batch(ctx context.Context, loans []LoanTerms, savings SavingsTable, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	out := make([]BatchResult, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range loans {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.computeOne(loans[i], savings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Calculator) computeOne(loan LoanTerms, savings SavingsTable) BatchResult {
	res := BatchResult{LoanID: loan.LoanID, ClientID: loan.ClientID}
	fund, err := savings.Lookup(loan.Principal)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	computed, err := c.Compute(loan.Principal, loan.AnnualInterestPct, loan.TermWeeks, fund)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Result = &computed
	return res
}
