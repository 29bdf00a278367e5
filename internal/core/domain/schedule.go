package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleItem is one installment row of an amortization schedule. Rows are
// created in a single batch at loan creation and are never reordered or
// partially regenerated; if terms change the whole set is discarded.
//
// Invariants: OpeningBalance of row k equals ClosingBalance of row k-1 (the
// principal for k=1), and the final row's ClosingBalance is exactly zero.
type ScheduleItem struct {
	ScheduleItemID    string          `json:"scheduleItemID"`
	LoanID            string          `json:"loanID"`
	InstallmentNumber int             `json:"installmentNumber"` // 1-based
	DueDate           time.Time       `json:"dueDate"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount"`
	PrincipalComponent decimal.Decimal `json:"principalComponent"`
	InterestComponent  decimal.Decimal `json:"interestComponent"`
	OpeningBalance    decimal.Decimal `json:"openingBalance"`
	ClosingBalance    decimal.Decimal `json:"closingBalance"`

	IsPaid      bool            `json:"isPaid"`
	PaidDate    *time.Time      `json:"paidDate,omitempty"`
	PaidAmount  decimal.Decimal `json:"paidAmount"`
	IsOverdue   bool            `json:"isOverdue"`
	DaysOverdue *int            `json:"daysOverdue,omitempty"`
	LateFee     decimal.Decimal `json:"lateFee"`
}

// RefreshOverdue recomputes the overdue flag and day count against now.
// Paid rows are never overdue.
func (s *ScheduleItem) RefreshOverdue(now time.Time) {
	if s.IsPaid || !now.After(s.DueDate) {
		s.IsOverdue = false
		s.DaysOverdue = nil
		return
	}
	s.IsOverdue = true
	days := int(now.Sub(s.DueDate).Hours() / 24)
	s.DaysOverdue = &days
}
