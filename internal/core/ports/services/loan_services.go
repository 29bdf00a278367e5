package services

import (
	"context"

	"github.com/finflow/loan_engine_app/internal/core/calculation"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/finflow/loan_engine_app/internal/dto"
)

// LoanCalculatorSvc defines persistence-free calculation operations.
type LoanCalculatorSvc interface {
	// CalculateMetrics validates terms and runs the calculation engine
	// without persisting anything.
	CalculateMetrics(ctx context.Context, terms domain.LoanTerms) (*calculation.Result, error)
}

// LoanReaderSvc defines read operations for loan data.
type LoanReaderSvc interface {
	// GetLoan retrieves a loan with its full schedule, scoped to the owner.
	GetLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, []domain.ScheduleItem, error)

	// ListLoans retrieves a paginated list of an owner's loans.
	ListLoans(ctx context.Context, ownerID string, params dto.ListLoansParams) ([]domain.Loan, *string, error)

	// GetSchedule retrieves a loan's schedule with overdue flags refreshed.
	GetSchedule(ctx context.Context, ownerID string, loanID string) ([]domain.ScheduleItem, error)

	// ListPayments retrieves the payment history of a loan.
	ListPayments(ctx context.Context, ownerID string, loanID string) ([]domain.PaymentRecord, error)

	// GetPortfolioSummary aggregates counts, balances and interest paid
	// across an owner's loans.
	GetPortfolioSummary(ctx context.Context, ownerID string) (*dto.PortfolioSummaryResponse, error)
}

// LoanWriterSvc defines mutating operations for loan data.
type LoanWriterSvc interface {
	// CreateSimulation validates terms, computes the schedule, and persists
	// the loan and schedule atomically. Status is SIMULATED when isSimulation
	// is true, ACTIVE otherwise.
	CreateSimulation(ctx context.Context, ownerID string, terms domain.LoanTerms, isSimulation bool) (*domain.Loan, []domain.ScheduleItem, error)

	// ApplyPayment records a payment against the oldest unpaid installment.
	ApplyPayment(ctx context.Context, ownerID string, loanID string, req dto.ApplyPaymentRequest) (*domain.PaymentRecord, error)

	// ActivateLoan promotes a simulation to a tracked loan.
	ActivateLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error)

	// CancelLoan soft-cancels a loan; allowed only from SIMULATED, or from
	// ACTIVE with zero payments made.
	CancelLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error)

	// MarkDefaulted records an explicit operator default decision.
	MarkDefaulted(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error)
}

// LoanSvcFacade combines all loan-related service interfaces.
// This is a facade for clients that need access to all operations.
type LoanSvcFacade interface {
	LoanCalculatorSvc
	LoanReaderSvc
	LoanWriterSvc
}
