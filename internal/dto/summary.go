package dto

import "github.com/shopspring/decimal"

// PortfolioSummaryResponse aggregates an owner's loan portfolio.
type PortfolioSummaryResponse struct {
	TotalLoans     int `json:"totalLoans"`
	ActiveLoans    int `json:"activeLoans"`
	SimulatedLoans int `json:"simulatedLoans"`
	CompletedLoans int `json:"completedLoans"`

	// Principal and balance sums cover Active and Simulated loans.
	TotalPrincipal        decimal.Decimal `json:"totalPrincipal"`
	TotalRemainingBalance decimal.Decimal `json:"totalRemainingBalance"`
	// TotalInterestPaid is summed from actual payment history.
	TotalInterestPaid decimal.Decimal `json:"totalInterestPaid"`
	// AverageInterestRate is the arithmetic mean across Active and Simulated loans.
	AverageInterestRate decimal.Decimal `json:"averageInterestRate"`
}
