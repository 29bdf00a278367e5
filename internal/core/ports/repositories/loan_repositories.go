package repositories

import (
	"context"
	"time"

	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LoanListFilter narrows ListLoansByOwner results.
type LoanListFilter struct {
	Status *domain.LoanStatus
}

// LoanReader defines read operations for loan data.
type LoanReader interface {
	// FindLoanByID retrieves a loan by ID, scoped to the owner. Loans owned by
	// other users surface as not found.
	FindLoanByID(ctx context.Context, loanID string, ownerID string) (*domain.Loan, error)

	// ListLoansByOwner retrieves a paginated list of an owner's loans using
	// token-based pagination. Returns the loans, a token for the next page,
	// and an error.
	ListLoansByOwner(ctx context.Context, ownerID string, filter LoanListFilter, limit int, nextToken *string) ([]domain.Loan, *string, error)

	// FindLoansByOwner retrieves all of an owner's loans, for portfolio aggregation.
	FindLoansByOwner(ctx context.Context, ownerID string) ([]domain.Loan, error)
}

// LoanWriter defines write operations for loan data.
type LoanWriter interface {
	// SaveLoanWithSchedule persists a loan header and its entire schedule
	// batch as one atomic unit. A partially written schedule must never be
	// observable.
	SaveLoanWithSchedule(ctx context.Context, loan domain.Loan, schedule []domain.ScheduleItem) error

	// UpdateLoanStatus transitions a loan's status, stamping a completion
	// date when the transition is to COMPLETED.
	UpdateLoanStatus(ctx context.Context, loanID string, status domain.LoanStatus, completionDate *time.Time, updatedBy string, updatedAt time.Time) error
}

// ScheduleReader defines read operations for schedule rows.
type ScheduleReader interface {
	// FindScheduleByLoanID retrieves all schedule rows for a loan ordered by
	// installment number.
	FindScheduleByLoanID(ctx context.Context, loanID string) ([]domain.ScheduleItem, error)
}

// PaymentReader defines read operations for payment records.
type PaymentReader interface {
	// FindPaymentsByLoanID retrieves all payments recorded against a loan,
	// oldest first.
	FindPaymentsByLoanID(ctx context.Context, loanID string) ([]domain.PaymentRecord, error)

	// SumInterestPaidByOwner totals the interest components of every payment
	// recorded across an owner's loans.
	SumInterestPaidByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error)
}

// PaymentWriter defines write operations for payment application.
type PaymentWriter interface {
	// SavePayment persists a payment, the schedule rows it settled, and the
	// loan's updated aggregates within one transaction. expectedPaymentsMade
	// is the payments_made value the loan held when the caller read it; the
	// write fails with a conflict if another payment landed in between, so
	// two concurrent payments can never double-apply against one installment.
	SavePayment(ctx context.Context, loan domain.Loan, settledItems []domain.ScheduleItem, payment domain.PaymentRecord, expectedPaymentsMade int) error
}

// LoanRepositoryFacade combines all loan-related repository interfaces.
// This is a facade for clients that need access to all operations.
type LoanRepositoryFacade interface {
	LoanReader
	LoanWriter
	ScheduleReader
	PaymentReader
	PaymentWriter
}

// LoanRepositoryWithTx extends LoanRepositoryFacade with transaction capabilities.
type LoanRepositoryWithTx interface {
	LoanRepositoryFacade
	TransactionManager
}
