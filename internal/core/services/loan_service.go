package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finflow/loan_engine_app/internal/apperrors"
	"github.com/finflow/loan_engine_app/internal/core/calculation"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	portsrepo "github.com/finflow/loan_engine_app/internal/core/ports/repositories"
	portssvc "github.com/finflow/loan_engine_app/internal/core/ports/services"
	"github.com/finflow/loan_engine_app/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Business-rule bounds enforced on top of the engine's numeric validation.
var (
	maxPrincipal = decimal.NewFromInt(10_000_000)
	// centTolerance is the matching window for settling an installment.
	centTolerance = decimal.RequireFromString("0.01")
)

const (
	minRateAdjustmentMonths = 1
	maxRateAdjustmentMonths = 36
	minFixedPeriodMonths    = 1
	maxFixedPeriodMonths    = 120
)

// loanService orchestrates the calculation engine against persisted loan
// state: validation, simulation creation, payment application and portfolio
// analytics. The engine itself stays pure; every mutating operation here goes
// through the repository's transactional contract.
type loanService struct {
	BaseService
	loanRepo  portsrepo.LoanRepositoryWithTx
	calcCache portsrepo.CalculationCache
	now       func() time.Time
}

// LoanServiceOption is a functional option for configuring the loan service.
type LoanServiceOption func(*loanService)

// WithCalculationCache adds a cache for calculation previews.
func WithCalculationCache(cache portsrepo.CalculationCache) LoanServiceOption {
	return func(s *loanService) {
		s.calcCache = cache
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) LoanServiceOption {
	return func(s *loanService) {
		s.now = now
	}
}

// NewLoanService creates a new loan service with the provided options.
func NewLoanService(repo portsrepo.LoanRepositoryWithTx, options ...LoanServiceOption) portssvc.LoanSvcFacade {
	svc := &loanService{
		loanRepo: repo,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

// Ensure loanService implements the LoanSvcFacade interface
var _ portssvc.LoanSvcFacade = (*loanService)(nil)

// validateTerms layers the orchestrator's business rules on top of the
// engine's numeric validation, accumulating every violation so callers see
// all problems at once.
func (s *loanService) validateTerms(terms domain.LoanTerms) error {
	verr := &apperrors.ValidationError{}

	if err := calculation.ValidateTerms(terms); err != nil {
		var engineErr *apperrors.ValidationError
		if !errors.As(err, &engineErr) {
			return err
		}
		verr.Violations = append(verr.Violations, engineErr.Violations...)
	}

	if terms.Principal.GreaterThan(maxPrincipal) {
		verr.Add("principal", fmt.Sprintf("must not exceed %s", maxPrincipal))
	}

	switch terms.InterestType {
	case domain.InterestVariable:
		m := terms.RateAdjustmentFrequencyMonths
		if m == nil || *m < minRateAdjustmentMonths || *m > maxRateAdjustmentMonths {
			verr.Add("rateAdjustmentFrequencyMonths",
				fmt.Sprintf("required for variable rate loans, between %d and %d", minRateAdjustmentMonths, maxRateAdjustmentMonths))
		}
	case domain.InterestHybrid:
		m := terms.FixedPeriodMonths
		if m == nil || *m < minFixedPeriodMonths || *m > maxFixedPeriodMonths {
			verr.Add("fixedPeriodMonths",
				fmt.Sprintf("required for hybrid rate loans, between %d and %d", minFixedPeriodMonths, maxFixedPeriodMonths))
		}
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// calcCacheKey canonicalizes terms for the preview cache. Decimal String() is
// canonical for a given value, so equal terms always produce equal keys.
func calcCacheKey(terms domain.LoanTerms) string {
	return fmt.Sprintf("loan:calc:%s:%s:%d:%s:%s:%s",
		terms.Principal.String(),
		terms.AnnualRate.String(),
		terms.TermMonths,
		terms.Frequency,
		terms.AmortizationType,
		terms.StartDate.Format("2006-01-02"),
	)
}

func (s *loanService) CalculateMetrics(ctx context.Context, terms domain.LoanTerms) (*calculation.Result, error) {
	if err := s.validateTerms(terms); err != nil {
		return nil, err
	}

	key := calcCacheKey(terms)
	if s.calcCache != nil {
		if cached, ok := s.calcCache.Get(ctx, key); ok {
			var result calculation.Result
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				s.LogDebug(ctx, "Calculation served from cache", slog.String("cache_key", key))
				return &result, nil
			}
			// A corrupt entry falls through to recomputation.
		}
	}

	result, err := calculation.Metrics(terms)
	if err != nil {
		return nil, err
	}

	if s.calcCache != nil {
		if encoded, err := json.Marshal(result); err == nil {
			if err := s.calcCache.Set(ctx, key, string(encoded)); err != nil {
				s.LogDebug(ctx, "Failed to cache calculation result", slog.String("error", err.Error()))
			}
		}
	}

	return &result, nil
}

func (s *loanService) CreateSimulation(ctx context.Context, ownerID string, terms domain.LoanTerms, isSimulation bool) (*domain.Loan, []domain.ScheduleItem, error) {
	if err := s.validateTerms(terms); err != nil {
		s.LogWarn(ctx, "Loan terms failed validation", slog.String("error", err.Error()))
		return nil, nil, err
	}

	schedule, err := calculation.GenerateSchedule(terms)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := calculation.Metrics(terms)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	loanID := uuid.NewString()

	status := domain.StatusActive
	if isSimulation {
		status = domain.StatusSimulated
	}

	firstDue := schedule[0].DueDate
	maturityDate := schedule[len(schedule)-1].DueDate

	loan := domain.Loan{
		LoanID:          loanID,
		OwnerID:         ownerID,
		Terms:           terms,
		EMIAmount:       metrics.EMIAmount,
		TotalInterest:   metrics.TotalInterest,
		TotalPayment:    metrics.TotalPayment,
		CurrentBalance:  terms.Principal,
		Status:          status,
		PaymentsMade:    0,
		NextPaymentDate: &firstDue,
		MaturityDate:    maturityDate,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     ownerID,
			LastUpdatedAt: now,
			LastUpdatedBy: ownerID,
		},
	}

	for i := range schedule {
		schedule[i].ScheduleItemID = uuid.NewString()
		schedule[i].LoanID = loanID
	}

	if err := s.loanRepo.SaveLoanWithSchedule(ctx, loan, schedule); err != nil {
		s.LogError(ctx, err, "Failed to persist loan with schedule",
			slog.String("loan_id", loanID),
			slog.String("owner_id", ownerID))
		return nil, nil, err
	}

	s.LogInfo(ctx, "Loan created",
		slog.String("loan_id", loanID),
		slog.String("status", string(status)),
		slog.Int("installments", len(schedule)))
	return &loan, schedule, nil
}

func (s *loanService) GetLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, []domain.ScheduleItem, error) {
	loan, err := s.loanRepo.FindLoanByID(ctx, loanID, ownerID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find loan", slog.String("loan_id", loanID))
		}
		return nil, nil, err
	}

	schedule, err := s.loanRepo.FindScheduleByLoanID(ctx, loanID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load schedule", slog.String("loan_id", loanID))
		return nil, nil, err
	}

	now := s.now()
	for i := range schedule {
		schedule[i].RefreshOverdue(now)
	}

	return loan, schedule, nil
}

func (s *loanService) GetSchedule(ctx context.Context, ownerID string, loanID string) ([]domain.ScheduleItem, error) {
	_, schedule, err := s.GetLoan(ctx, ownerID, loanID)
	return schedule, err
}

func (s *loanService) ListLoans(ctx context.Context, ownerID string, params dto.ListLoansParams) ([]domain.Loan, *string, error) {
	filter := portsrepo.LoanListFilter{}
	if params.Status != "" {
		status := domain.LoanStatus(params.Status)
		filter.Status = &status
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	var nextToken *string
	if params.NextToken != "" {
		nextToken = &params.NextToken
	}

	loans, newToken, err := s.loanRepo.ListLoansByOwner(ctx, ownerID, filter, limit, nextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list loans", slog.String("owner_id", ownerID))
		return nil, nil, err
	}
	if loans == nil {
		loans = []domain.Loan{}
	}
	return loans, newToken, nil
}

func (s *loanService) ListPayments(ctx context.Context, ownerID string, loanID string) ([]domain.PaymentRecord, error) {
	// Ownership check; loans of other owners surface as not found.
	if _, err := s.loanRepo.FindLoanByID(ctx, loanID, ownerID); err != nil {
		return nil, err
	}

	payments, err := s.loanRepo.FindPaymentsByLoanID(ctx, loanID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list payments", slog.String("loan_id", loanID))
		return nil, err
	}
	if payments == nil {
		payments = []domain.PaymentRecord{}
	}
	return payments, nil
}

func (s *loanService) ApplyPayment(ctx context.Context, ownerID string, loanID string, req dto.ApplyPaymentRequest) (*domain.PaymentRecord, error) {
	paymentDate, err := req.ParsedDate()
	if err != nil {
		verr := &apperrors.ValidationError{}
		return nil, verr.Add("paymentDate", "must be a valid date in YYYY-MM-DD format")
	}
	if !req.Amount.IsPositive() {
		verr := &apperrors.ValidationError{}
		return nil, verr.Add("amount", "must be greater than zero")
	}
	if !req.PaymentType.Valid() {
		verr := &apperrors.ValidationError{}
		return nil, verr.Add("paymentType", "unsupported payment type")
	}

	loan, err := s.loanRepo.FindLoanByID(ctx, loanID, ownerID)
	if err != nil {
		return nil, err
	}
	if loan.Status != domain.StatusActive {
		s.LogWarn(ctx, "Payment attempted against non-active loan",
			slog.String("loan_id", loanID),
			slog.String("status", string(loan.Status)))
		return nil, fmt.Errorf("%w: loan is %s", apperrors.ErrNotPayable, loan.Status)
	}

	schedule, err := s.loanRepo.FindScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	// Oldest unpaid installment; rows are ordered by installment number.
	var due *domain.ScheduleItem
	for i := range schedule {
		if !schedule[i].IsPaid {
			due = &schedule[i]
			break
		}
	}
	if due == nil {
		return nil, fmt.Errorf("%w: no unpaid installments remain", apperrors.ErrNotPayable)
	}

	amountDue := due.InstallmentAmount.Add(due.LateFee)
	shortfall := amountDue.Sub(req.Amount)
	if shortfall.GreaterThan(centTolerance) {
		verr := &apperrors.ValidationError{}
		return nil, verr.Add("amount",
			fmt.Sprintf("is less than the %s due for installment %d", amountDue, due.InstallmentNumber))
	}

	// Settle the installment with its stored principal/interest split.
	principalPaid := due.PrincipalComponent
	interestPaid := due.InterestComponent
	lateFeePaid := due.LateFee

	// Excess beyond the installment is a prepayment against future principal:
	// it reduces the balance directly without regenerating remaining rows, so
	// later rows keep their original amounts and the payoff shortens.
	excess := req.Amount.Sub(amountDue)
	if excess.GreaterThan(centTolerance) {
		principalPaid = principalPaid.Add(excess)
	}
	if principalPaid.GreaterThan(loan.CurrentBalance) {
		principalPaid = loan.CurrentBalance
	}

	newBalance := loan.CurrentBalance.Sub(principalPaid)
	if newBalance.IsNegative() {
		// The clamp above makes this unreachable; a negative balance is a
		// defect, not a user error.
		panic(fmt.Sprintf("loan %s balance driven negative: %s", loanID, newBalance))
	}

	due.IsPaid = true
	due.PaidDate = &paymentDate
	due.PaidAmount = req.Amount

	expectedPaymentsMade := loan.PaymentsMade
	loan.PaymentsMade++
	loan.CurrentBalance = newBalance
	loan.LastPaymentDate = &paymentDate
	loan.NextPaymentDate = nil
	for i := range schedule {
		if !schedule[i].IsPaid {
			loan.NextPaymentDate = &schedule[i].DueDate
			break
		}
	}

	now := s.now()
	if newBalance.IsZero() {
		loan.Status = domain.StatusCompleted
		loan.CompletionDate = &paymentDate
		loan.NextPaymentDate = nil
	}
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = ownerID

	payment := domain.PaymentRecord{
		PaymentID:      uuid.NewString(),
		LoanID:         loanID,
		ScheduleItemID: &due.ScheduleItemID,
		PaymentDate:    paymentDate,
		PaymentAmount:  req.Amount,
		PaymentType:    req.PaymentType,
		PrincipalPaid:  principalPaid,
		InterestPaid:   interestPaid,
		LateFeePaid:    lateFeePaid,
		IsSimulated:    false,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     ownerID,
			LastUpdatedAt: now,
			LastUpdatedBy: ownerID,
		},
	}

	if err := s.loanRepo.SavePayment(ctx, *loan, []domain.ScheduleItem{*due}, payment, expectedPaymentsMade); err != nil {
		s.LogError(ctx, err, "Failed to persist payment",
			slog.String("loan_id", loanID),
			slog.String("payment_id", payment.PaymentID))
		return nil, err
	}

	s.LogInfo(ctx, "Payment applied",
		slog.String("loan_id", loanID),
		slog.Int("installment", due.InstallmentNumber),
		slog.String("amount", req.Amount.String()),
		slog.String("new_balance", newBalance.String()))
	return &payment, nil
}

// transitionStatus performs a guarded state-machine transition and persists it.
func (s *loanService) transitionStatus(ctx context.Context, ownerID, loanID string, target domain.LoanStatus) (*domain.Loan, error) {
	loan, err := s.loanRepo.FindLoanByID(ctx, loanID, ownerID)
	if err != nil {
		return nil, err
	}

	if !loan.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, loan.Status, target)
	}
	// Cancellation of an active loan is only allowed before any payment lands.
	if target == domain.StatusCancelled && loan.Status == domain.StatusActive && loan.PaymentsMade > 0 {
		return nil, fmt.Errorf("%w: active loan with recorded payments cannot be cancelled", apperrors.ErrInvalidTransition)
	}

	now := s.now()
	var completionDate *time.Time
	if target == domain.StatusCompleted {
		completionDate = &now
	}

	if err := s.loanRepo.UpdateLoanStatus(ctx, loanID, target, completionDate, ownerID, now); err != nil {
		s.LogError(ctx, err, "Failed to update loan status",
			slog.String("loan_id", loanID),
			slog.String("target_status", string(target)))
		return nil, err
	}

	loan.Status = target
	loan.CompletionDate = completionDate
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = ownerID

	s.LogInfo(ctx, "Loan status updated",
		slog.String("loan_id", loanID),
		slog.String("status", string(target)))
	return loan, nil
}

func (s *loanService) ActivateLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error) {
	return s.transitionStatus(ctx, ownerID, loanID, domain.StatusActive)
}

func (s *loanService) CancelLoan(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error) {
	return s.transitionStatus(ctx, ownerID, loanID, domain.StatusCancelled)
}

func (s *loanService) MarkDefaulted(ctx context.Context, ownerID string, loanID string) (*domain.Loan, error) {
	return s.transitionStatus(ctx, ownerID, loanID, domain.StatusDefaulted)
}

func (s *loanService) GetPortfolioSummary(ctx context.Context, ownerID string) (*dto.PortfolioSummaryResponse, error) {
	loans, err := s.loanRepo.FindLoansByOwner(ctx, ownerID)
	if err != nil {
		s.LogError(ctx, err, "Failed to load loans for portfolio summary", slog.String("owner_id", ownerID))
		return nil, err
	}

	interestPaid, err := s.loanRepo.SumInterestPaidByOwner(ctx, ownerID)
	if err != nil {
		s.LogError(ctx, err, "Failed to sum interest paid", slog.String("owner_id", ownerID))
		return nil, err
	}

	summary := &dto.PortfolioSummaryResponse{
		TotalLoans:            len(loans),
		TotalPrincipal:        decimal.Zero,
		TotalRemainingBalance: decimal.Zero,
		TotalInterestPaid:     interestPaid,
		AverageInterestRate:   decimal.Zero,
	}

	rateSum := decimal.Zero
	rated := 0
	for i := range loans {
		loan := &loans[i]
		switch loan.Status {
		case domain.StatusActive:
			summary.ActiveLoans++
		case domain.StatusSimulated:
			summary.SimulatedLoans++
		case domain.StatusCompleted:
			summary.CompletedLoans++
		}

		if loan.Status == domain.StatusActive || loan.Status == domain.StatusSimulated {
			summary.TotalPrincipal = summary.TotalPrincipal.Add(loan.Terms.Principal)
			summary.TotalRemainingBalance = summary.TotalRemainingBalance.Add(loan.CurrentBalance)
			rateSum = rateSum.Add(loan.Terms.AnnualRate)
			rated++
		}
	}
	if rated > 0 {
		summary.AverageInterestRate = rateSum.Div(decimal.NewFromInt(int64(rated))).Round(2)
	}

	return summary, nil
}
