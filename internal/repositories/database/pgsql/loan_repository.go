package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/finflow/loan_engine_app/internal/apperrors"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	portsrepo "github.com/finflow/loan_engine_app/internal/core/ports/repositories"
	"github.com/finflow/loan_engine_app/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgxLoanRepository struct {
	BaseRepository
}

// newPgxLoanRepository creates a new repository for loan, schedule and payment data.
func newPgxLoanRepository(pool *pgxpool.Pool) portsrepo.LoanRepositoryWithTx {
	return &PgxLoanRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure PgxLoanRepository implements portsrepo.LoanRepositoryWithTx
var _ portsrepo.LoanRepositoryWithTx = (*PgxLoanRepository)(nil)

const loanColumns = `
	loan_id, owner_id,
	principal, annual_rate, term_months, frequency, amortization_type, start_date,
	interest_type, rate_adjustment_frequency_months, fixed_period_months,
	emi_amount, total_interest, total_payment, current_balance,
	status, payments_made, last_payment_date, next_payment_date, maturity_date, completion_date,
	created_at, created_by, last_updated_at, last_updated_by`

// scanLoan reads one loans row into a domain.Loan. Column order must match
// loanColumns.
func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var loan domain.Loan
	err := row.Scan(
		&loan.LoanID,
		&loan.OwnerID,
		&loan.Terms.Principal,
		&loan.Terms.AnnualRate,
		&loan.Terms.TermMonths,
		&loan.Terms.Frequency,
		&loan.Terms.AmortizationType,
		&loan.Terms.StartDate,
		&loan.Terms.InterestType,
		&loan.Terms.RateAdjustmentFrequencyMonths,
		&loan.Terms.FixedPeriodMonths,
		&loan.EMIAmount,
		&loan.TotalInterest,
		&loan.TotalPayment,
		&loan.CurrentBalance,
		&loan.Status,
		&loan.PaymentsMade,
		&loan.LastPaymentDate,
		&loan.NextPaymentDate,
		&loan.MaturityDate,
		&loan.CompletionDate,
		&loan.CreatedAt,
		&loan.CreatedBy,
		&loan.LastUpdatedAt,
		&loan.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// FindLoanByID retrieves a loan by its ID, scoped to the owner.
func (r *PgxLoanRepository) FindLoanByID(ctx context.Context, loanID string, ownerID string) (*domain.Loan, error) {
	query := `SELECT` + loanColumns + `
		FROM loans
		WHERE loan_id = $1 AND owner_id = $2;`

	loan, err := scanLoan(r.Pool.QueryRow(ctx, query, loanID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Map db not found error to application specific error
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find loan by ID "+loanID, err)
	}
	return loan, nil
}

// ListLoansByOwner retrieves a page of an owner's loans ordered by
// (created_at DESC, loan_id DESC) with token-based pagination.
func (r *PgxLoanRepository) ListLoansByOwner(ctx context.Context, ownerID string, filter portsrepo.LoanListFilter, limit int, nextToken *string) ([]domain.Loan, *string, error) {
	args := []any{ownerID}
	query := `SELECT` + loanColumns + `
		FROM loans
		WHERE owner_id = $1`

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	if nextToken != nil {
		cursorCreatedAt, cursorLoanID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			verr := &apperrors.ValidationError{}
			return nil, nil, verr.Add("nextToken", "is not a valid pagination token")
		}
		args = append(args, cursorCreatedAt, cursorLoanID)
		query += fmt.Sprintf(` AND (created_at, loan_id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	// Fetch one extra row to know whether another page exists.
	args = append(args, limit+1)
	query += ` ORDER BY created_at DESC, loan_id DESC LIMIT $` + strconv.Itoa(len(args)) + `;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to query loans for owner "+ownerID, err)
	}
	defer rows.Close()

	loans := []domain.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to scan loan row for owner "+ownerID, err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed reading loan rows for owner "+ownerID, err)
	}

	var newToken *string
	if len(loans) > limit {
		loans = loans[:limit]
		last := loans[len(loans)-1]
		token := pagination.EncodeCursor(last.CreatedAt, last.LoanID)
		newToken = &token
	}
	return loans, newToken, nil
}

// FindLoansByOwner retrieves all of an owner's loans, for portfolio aggregation.
func (r *PgxLoanRepository) FindLoansByOwner(ctx context.Context, ownerID string) ([]domain.Loan, error) {
	query := `SELECT` + loanColumns + `
		FROM loans
		WHERE owner_id = $1
		ORDER BY created_at DESC, loan_id DESC;`

	rows, err := r.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query loans for owner "+ownerID, err)
	}
	defer rows.Close()

	loans := []domain.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan loan row for owner "+ownerID, err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed reading loan rows for owner "+ownerID, err)
	}
	return loans, nil
}

// SaveLoanWithSchedule persists a loan and its full schedule batch within a DB
// transaction, so a partially written schedule is never observable.
func (r *PgxLoanRepository) SaveLoanWithSchedule(ctx context.Context, loan domain.Loan, schedule []domain.ScheduleItem) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	// Will be ignored if transaction is committed successfully
	defer r.Rollback(ctx, tx)

	loanQuery := `
		INSERT INTO loans (
			loan_id, owner_id,
			principal, annual_rate, term_months, frequency, amortization_type, start_date,
			interest_type, rate_adjustment_frequency_months, fixed_period_months,
			emi_amount, total_interest, total_payment, current_balance,
			status, payments_made, last_payment_date, next_payment_date, maturity_date, completion_date,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25);
	`
	_, err = tx.Exec(ctx, loanQuery,
		loan.LoanID,
		loan.OwnerID,
		loan.Terms.Principal,
		loan.Terms.AnnualRate,
		loan.Terms.TermMonths,
		loan.Terms.Frequency,
		loan.Terms.AmortizationType,
		loan.Terms.StartDate,
		loan.Terms.InterestType,
		loan.Terms.RateAdjustmentFrequencyMonths,
		loan.Terms.FixedPeriodMonths,
		loan.EMIAmount,
		loan.TotalInterest,
		loan.TotalPayment,
		loan.CurrentBalance,
		loan.Status,
		loan.PaymentsMade,
		loan.LastPaymentDate,
		loan.NextPaymentDate,
		loan.MaturityDate,
		loan.CompletionDate,
		loan.CreatedAt,
		loan.CreatedBy,
		loan.LastUpdatedAt,
		loan.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert loan "+loan.LoanID, err)
	}

	batch := &pgx.Batch{}
	itemQuery := `
		INSERT INTO loan_schedule_items (
			schedule_item_id, loan_id, installment_number, due_date,
			installment_amount, principal_component, interest_component,
			opening_balance, closing_balance,
			is_paid, paid_date, paid_amount, late_fee
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	for _, item := range schedule {
		batch.Queue(itemQuery,
			item.ScheduleItemID,
			item.LoanID,
			item.InstallmentNumber,
			item.DueDate,
			item.InstallmentAmount,
			item.PrincipalComponent,
			item.InterestComponent,
			item.OpeningBalance,
			item.ClosingBalance,
			item.IsPaid,
			item.PaidDate,
			item.PaidAmount,
			item.LateFee,
		)
	}

	br := tx.SendBatch(ctx, batch)
	// Important: Close the batch results to check for errors in each command
	if err := br.Close(); err != nil {
		return apperrors.NewAppError(500, "failed to execute schedule batch for loan "+loan.LoanID, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction for loan "+loan.LoanID, err)
	}
	return nil
}

// UpdateLoanStatus transitions a loan's status.
func (r *PgxLoanRepository) UpdateLoanStatus(ctx context.Context, loanID string, status domain.LoanStatus, completionDate *time.Time, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE loans
		SET status = $2, completion_date = $3, last_updated_by = $4, last_updated_at = $5
		WHERE loan_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, loanID, status, completionDate, updatedBy, updatedAt)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update status for loan "+loanID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindScheduleByLoanID retrieves all schedule rows for a loan ordered by
// installment number.
func (r *PgxLoanRepository) FindScheduleByLoanID(ctx context.Context, loanID string) ([]domain.ScheduleItem, error) {
	query := `
		SELECT schedule_item_id, loan_id, installment_number, due_date,
		       installment_amount, principal_component, interest_component,
		       opening_balance, closing_balance,
		       is_paid, paid_date, paid_amount, late_fee
		FROM loan_schedule_items
		WHERE loan_id = $1
		ORDER BY installment_number;
	`
	rows, err := r.Pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query schedule for loan "+loanID, err)
	}
	defer rows.Close()

	items := []domain.ScheduleItem{}
	for rows.Next() {
		var item domain.ScheduleItem
		err := rows.Scan(
			&item.ScheduleItemID,
			&item.LoanID,
			&item.InstallmentNumber,
			&item.DueDate,
			&item.InstallmentAmount,
			&item.PrincipalComponent,
			&item.InterestComponent,
			&item.OpeningBalance,
			&item.ClosingBalance,
			&item.IsPaid,
			&item.PaidDate,
			&item.PaidAmount,
			&item.LateFee,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan schedule row for loan "+loanID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed reading schedule rows for loan "+loanID, err)
	}
	return items, nil
}

// FindPaymentsByLoanID retrieves all payments recorded against a loan, oldest first.
func (r *PgxLoanRepository) FindPaymentsByLoanID(ctx context.Context, loanID string) ([]domain.PaymentRecord, error) {
	query := `
		SELECT payment_id, loan_id, schedule_item_id, payment_date, payment_amount, payment_type,
		       principal_paid, interest_paid, late_fee_paid, is_simulated,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM loan_payments
		WHERE loan_id = $1
		ORDER BY created_at, payment_id;
	`
	rows, err := r.Pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query payments for loan "+loanID, err)
	}
	defer rows.Close()

	payments := []domain.PaymentRecord{}
	for rows.Next() {
		var p domain.PaymentRecord
		err := rows.Scan(
			&p.PaymentID,
			&p.LoanID,
			&p.ScheduleItemID,
			&p.PaymentDate,
			&p.PaymentAmount,
			&p.PaymentType,
			&p.PrincipalPaid,
			&p.InterestPaid,
			&p.LateFeePaid,
			&p.IsSimulated,
			&p.CreatedAt,
			&p.CreatedBy,
			&p.LastUpdatedAt,
			&p.LastUpdatedBy,
		)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan payment row for loan "+loanID, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed reading payment rows for loan "+loanID, err)
	}
	return payments, nil
}

// SumInterestPaidByOwner totals the interest components of every real payment
// across an owner's loans.
func (r *PgxLoanRepository) SumInterestPaidByOwner(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(p.interest_paid), 0)
		FROM loan_payments p
		JOIN loans l ON l.loan_id = p.loan_id
		WHERE l.owner_id = $1 AND NOT p.is_simulated;
	`
	var total decimal.Decimal
	if err := r.Pool.QueryRow(ctx, query, ownerID).Scan(&total); err != nil {
		return decimal.Zero, apperrors.NewAppError(500, "failed to sum interest paid for owner "+ownerID, err)
	}
	return total, nil
}

// SavePayment persists a payment, the schedule rows it settled, and the loan's
// updated aggregates within a DB transaction. The loan update is guarded by
// the payments_made value observed at read time; losing the race surfaces as
// ErrConflict instead of a double-applied installment.
func (r *PgxLoanRepository) SavePayment(ctx context.Context, loan domain.Loan, settledItems []domain.ScheduleItem, payment domain.PaymentRecord, expectedPaymentsMade int) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	loanQuery := `
		UPDATE loans
		SET current_balance = $3, status = $4, payments_made = $5,
		    last_payment_date = $6, next_payment_date = $7, completion_date = $8,
		    last_updated_at = $9, last_updated_by = $10
		WHERE loan_id = $1 AND payments_made = $2;
	`
	tag, err := tx.Exec(ctx, loanQuery,
		loan.LoanID,
		expectedPaymentsMade,
		loan.CurrentBalance,
		loan.Status,
		loan.PaymentsMade,
		loan.LastPaymentDate,
		loan.NextPaymentDate,
		loan.CompletionDate,
		loan.LastUpdatedAt,
		loan.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update loan "+loan.LoanID+" for payment", err)
	}
	if tag.RowsAffected() == 0 {
		// Another payment landed between our read and this write.
		return fmt.Errorf("%w: loan %s changed since it was read", apperrors.ErrConflict, loan.LoanID)
	}

	batch := &pgx.Batch{}
	itemQuery := `
		UPDATE loan_schedule_items
		SET is_paid = $2, paid_date = $3, paid_amount = $4
		WHERE schedule_item_id = $1;
	`
	for _, item := range settledItems {
		batch.Queue(itemQuery, item.ScheduleItemID, item.IsPaid, item.PaidDate, item.PaidAmount)
	}

	paymentQuery := `
		INSERT INTO loan_payments (
			payment_id, loan_id, schedule_item_id, payment_date, payment_amount, payment_type,
			principal_paid, interest_paid, late_fee_paid, is_simulated,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	batch.Queue(paymentQuery,
		payment.PaymentID,
		payment.LoanID,
		payment.ScheduleItemID,
		payment.PaymentDate,
		payment.PaymentAmount,
		payment.PaymentType,
		payment.PrincipalPaid,
		payment.InterestPaid,
		payment.LateFeePaid,
		payment.IsSimulated,
		payment.CreatedAt,
		payment.CreatedBy,
		payment.LastUpdatedAt,
		payment.LastUpdatedBy,
	)

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return apperrors.NewAppError(500, "failed to execute payment batch for loan "+loan.LoanID, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return apperrors.NewAppError(500, "failed to commit payment for loan "+loan.LoanID, err)
	}
	return nil
}
