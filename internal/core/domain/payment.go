package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType classifies how a payment relates to the schedule.
type PaymentType string

const (
	PaymentRegular    PaymentType = "REGULAR"
	PaymentExtra      PaymentType = "EXTRA"
	PaymentPrepayment PaymentType = "PREPAYMENT"
)

// Valid reports whether the payment type is one of the closed set.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentRegular, PaymentExtra, PaymentPrepayment:
		return true
	default:
		return false
	}
}

// PaymentRecord is an immutable record of a payment applied against a loan.
// Corrections are compensating records, never edits. ScheduleItemID links the
// installment the payment settled, when there is one.
type PaymentRecord struct {
	PaymentID      string          `json:"paymentID"`
	LoanID         string          `json:"loanID"`
	ScheduleItemID *string         `json:"scheduleItemID,omitempty"`
	PaymentDate    time.Time       `json:"paymentDate"`
	PaymentAmount  decimal.Decimal `json:"paymentAmount"`
	PaymentType    PaymentType     `json:"paymentType"`
	PrincipalPaid  decimal.Decimal `json:"principalPaid"`
	InterestPaid   decimal.Decimal `json:"interestPaid"`
	LateFeePaid    decimal.Decimal `json:"lateFeePaid"`
	IsSimulated    bool            `json:"isSimulated"`

	AuditFields
}
