package dto

import (
	"time"

	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ApplyPaymentRequest defines the data needed to record a payment against a loan.
type ApplyPaymentRequest struct {
	Amount      decimal.Decimal    `json:"amount" binding:"required,gt=0"`
	PaymentDate string             `json:"paymentDate" binding:"required,datetime=2006-01-02"`
	PaymentType domain.PaymentType `json:"paymentType" binding:"required,oneof=REGULAR EXTRA PREPAYMENT"`
}

// ParsedDate returns the payment date as a time.Time.
func (r ApplyPaymentRequest) ParsedDate() (time.Time, error) {
	return time.Parse(dateLayout, r.PaymentDate)
}

// PaymentResponse defines the data returned for a recorded payment.
type PaymentResponse struct {
	PaymentID      string             `json:"paymentID"`
	LoanID         string             `json:"loanID"`
	ScheduleItemID *string            `json:"scheduleItemID,omitempty"`
	PaymentDate    string             `json:"paymentDate"`
	PaymentAmount  decimal.Decimal    `json:"paymentAmount"`
	PaymentType    domain.PaymentType `json:"paymentType"`
	PrincipalPaid  decimal.Decimal    `json:"principalPaid"`
	InterestPaid   decimal.Decimal    `json:"interestPaid"`
	LateFeePaid    decimal.Decimal    `json:"lateFeePaid"`
	IsSimulated    bool               `json:"isSimulated"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// ToPaymentResponse converts a domain.PaymentRecord to its response DTO.
func ToPaymentResponse(p *domain.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		PaymentID:      p.PaymentID,
		LoanID:         p.LoanID,
		ScheduleItemID: p.ScheduleItemID,
		PaymentDate:    p.PaymentDate.Format(dateLayout),
		PaymentAmount:  p.PaymentAmount,
		PaymentType:    p.PaymentType,
		PrincipalPaid:  p.PrincipalPaid,
		InterestPaid:   p.InterestPaid,
		LateFeePaid:    p.LateFeePaid,
		IsSimulated:    p.IsSimulated,
		CreatedAt:      p.CreatedAt,
	}
}

// ToPaymentResponses converts a slice of payment records.
func ToPaymentResponses(payments []domain.PaymentRecord) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = ToPaymentResponse(&payments[i])
	}
	return responses
}
