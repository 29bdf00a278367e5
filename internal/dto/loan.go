package dto

import (
	"time"

	"github.com/finflow/loan_engine_app/internal/core/calculation"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// dateLayout is the wire format for calendar dates. Amounts travel as decimal
// strings (shopspring's default JSON encoding), never binary floats.
const dateLayout = "2006-01-02"

// LoanTermsRequest carries the calculation inputs for a loan.
type LoanTermsRequest struct {
	Principal        decimal.Decimal           `json:"principal" binding:"required,gt=0"`
	AnnualRate       decimal.Decimal           `json:"annualRate" binding:"gte=0,lte=100"`
	TermMonths       int                       `json:"termMonths" binding:"required"`
	Frequency        domain.RepaymentFrequency `json:"frequency" binding:"required,oneof=MONTHLY QUARTERLY SEMI_ANNUALLY ANNUALLY"`
	AmortizationType domain.AmortizationType   `json:"amortizationType" binding:"required,oneof=REDUCING_BALANCE FLAT_RATE BULLET_PAYMENT"`
	StartDate        string                    `json:"startDate" binding:"required,datetime=2006-01-02"`
	InterestType     domain.InterestType       `json:"interestType" binding:"omitempty,oneof=FIXED VARIABLE HYBRID"`

	RateAdjustmentFrequencyMonths *int `json:"rateAdjustmentFrequencyMonths"`
	FixedPeriodMonths             *int `json:"fixedPeriodMonths"`
}

// ToDomainTerms converts the request into immutable domain terms.
func (r LoanTermsRequest) ToDomainTerms() (domain.LoanTerms, error) {
	startDate, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return domain.LoanTerms{}, err
	}

	interestType := r.InterestType
	if interestType == "" {
		interestType = domain.InterestFixed
	}

	return domain.LoanTerms{
		Principal:                     r.Principal,
		AnnualRate:                    r.AnnualRate,
		TermMonths:                    r.TermMonths,
		Frequency:                     r.Frequency,
		AmortizationType:              r.AmortizationType,
		StartDate:                     startDate,
		InterestType:                  interestType,
		RateAdjustmentFrequencyMonths: r.RateAdjustmentFrequencyMonths,
		FixedPeriodMonths:             r.FixedPeriodMonths,
	}, nil
}

// CreateLoanRequest defines the data needed to create a loan or simulation.
type CreateLoanRequest struct {
	LoanTermsRequest
	IsSimulation bool `json:"isSimulation"`
}

// LoanCalculationResponse is the persistence-free preview result.
type LoanCalculationResponse struct {
	EMIAmount         decimal.Decimal `json:"emiAmount"`
	TotalInterest     decimal.Decimal `json:"totalInterest"`
	TotalPayment      decimal.Decimal `json:"totalPayment"`
	PaymentCount      int             `json:"paymentCount"`
	MonthlyEquivalent decimal.Decimal `json:"monthlyEquivalent"`
}

// ToLoanCalculationResponse converts an engine result to its response DTO.
func ToLoanCalculationResponse(result calculation.Result) LoanCalculationResponse {
	return LoanCalculationResponse{
		EMIAmount:         result.EMIAmount,
		TotalInterest:     result.TotalInterest,
		TotalPayment:      result.TotalPayment,
		PaymentCount:      result.PaymentCount,
		MonthlyEquivalent: result.MonthlyEquivalent,
	}
}

// LoanResponse defines the data returned for a loan header.
type LoanResponse struct {
	LoanID           string                    `json:"loanID"`
	Principal        decimal.Decimal           `json:"principal"`
	AnnualRate       decimal.Decimal           `json:"annualRate"`
	TermMonths       int                       `json:"termMonths"`
	Frequency        domain.RepaymentFrequency `json:"frequency"`
	AmortizationType domain.AmortizationType   `json:"amortizationType"`
	InterestType     domain.InterestType       `json:"interestType"`
	StartDate        string                    `json:"startDate"`
	MaturityDate     string                    `json:"maturityDate"`
	EMIAmount        decimal.Decimal           `json:"emiAmount"`
	TotalInterest    decimal.Decimal           `json:"totalInterest"`
	TotalPayment     decimal.Decimal           `json:"totalPayment"`
	CurrentBalance   decimal.Decimal           `json:"currentBalance"`
	Status           domain.LoanStatus         `json:"status"`
	PaymentsMade     int                       `json:"paymentsMade"`
	LastPaymentDate  *string                   `json:"lastPaymentDate,omitempty"`
	NextPaymentDate  *string                   `json:"nextPaymentDate,omitempty"`
	CompletionDate   *string                   `json:"completionDate,omitempty"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// ScheduleItemResponse defines the data returned for one schedule row.
type ScheduleItemResponse struct {
	InstallmentNumber  int             `json:"installmentNumber"`
	DueDate            string          `json:"dueDate"`
	InstallmentAmount  decimal.Decimal `json:"installmentAmount"`
	PrincipalComponent decimal.Decimal `json:"principalComponent"`
	InterestComponent  decimal.Decimal `json:"interestComponent"`
	OpeningBalance     decimal.Decimal `json:"openingBalance"`
	ClosingBalance     decimal.Decimal `json:"closingBalance"`
	IsPaid             bool            `json:"isPaid"`
	PaidDate           *string         `json:"paidDate,omitempty"`
	IsOverdue          bool            `json:"isOverdue"`
	DaysOverdue        *int            `json:"daysOverdue,omitempty"`
	LateFee            decimal.Decimal `json:"lateFee"`
}

// LoanDetailResponse combines a loan header with its full schedule.
type LoanDetailResponse struct {
	Loan     LoanResponse           `json:"loan"`
	Schedule []ScheduleItemResponse `json:"schedule"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// ToLoanResponse converts a domain.Loan to LoanResponse DTO.
func ToLoanResponse(loan *domain.Loan) LoanResponse {
	return LoanResponse{
		LoanID:           loan.LoanID,
		Principal:        loan.Terms.Principal,
		AnnualRate:       loan.Terms.AnnualRate,
		TermMonths:       loan.Terms.TermMonths,
		Frequency:        loan.Terms.Frequency,
		AmortizationType: loan.Terms.AmortizationType,
		InterestType:     loan.Terms.InterestType,
		StartDate:        loan.Terms.StartDate.Format(dateLayout),
		MaturityDate:     loan.MaturityDate.Format(dateLayout),
		EMIAmount:        loan.EMIAmount,
		TotalInterest:    loan.TotalInterest,
		TotalPayment:     loan.TotalPayment,
		CurrentBalance:   loan.CurrentBalance,
		Status:           loan.Status,
		PaymentsMade:     loan.PaymentsMade,
		LastPaymentDate:  formatDatePtr(loan.LastPaymentDate),
		NextPaymentDate:  formatDatePtr(loan.NextPaymentDate),
		CompletionDate:   formatDatePtr(loan.CompletionDate),
		CreatedAt:        loan.CreatedAt,
	}
}

// ToScheduleItemResponse converts a domain.ScheduleItem to its response DTO.
func ToScheduleItemResponse(item *domain.ScheduleItem) ScheduleItemResponse {
	return ScheduleItemResponse{
		InstallmentNumber:  item.InstallmentNumber,
		DueDate:            item.DueDate.Format(dateLayout),
		InstallmentAmount:  item.InstallmentAmount,
		PrincipalComponent: item.PrincipalComponent,
		InterestComponent:  item.InterestComponent,
		OpeningBalance:     item.OpeningBalance,
		ClosingBalance:     item.ClosingBalance,
		IsPaid:             item.IsPaid,
		PaidDate:           formatDatePtr(item.PaidDate),
		IsOverdue:          item.IsOverdue,
		DaysOverdue:        item.DaysOverdue,
		LateFee:            item.LateFee,
	}
}

// ToScheduleItemResponses converts a slice of schedule rows.
func ToScheduleItemResponses(items []domain.ScheduleItem) []ScheduleItemResponse {
	responses := make([]ScheduleItemResponse, len(items))
	for i := range items {
		responses[i] = ToScheduleItemResponse(&items[i])
	}
	return responses
}

// ToLoanDetailResponse combines a loan with its schedule.
func ToLoanDetailResponse(loan *domain.Loan, schedule []domain.ScheduleItem) LoanDetailResponse {
	return LoanDetailResponse{
		Loan:     ToLoanResponse(loan),
		Schedule: ToScheduleItemResponses(schedule),
	}
}

// ListLoansParams defines query parameters for listing loans.
type ListLoansParams struct {
	Status    string `form:"status" binding:"omitempty,oneof=SIMULATED ACTIVE COMPLETED DEFAULTED CANCELLED"`
	Limit     int    `form:"limit,default=20"`
	NextToken string `form:"nextToken"`
}

// ListLoansResponse wraps a page of loans.
type ListLoansResponse struct {
	Loans     []LoanResponse `json:"loans"`
	NextToken *string        `json:"nextToken,omitempty"`
}

// ToListLoansResponse converts a page of domain loans.
func ToListLoansResponse(loans []domain.Loan, nextToken *string) ListLoansResponse {
	res := make([]LoanResponse, len(loans))
	for i := range loans {
		res[i] = ToLoanResponse(&loans[i])
	}
	return ListLoansResponse{Loans: res, NextToken: nextToken}
}
