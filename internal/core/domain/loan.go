package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RepaymentFrequency determines how often an installment falls due.
type RepaymentFrequency string

const (
	FrequencyMonthly      RepaymentFrequency = "MONTHLY"
	FrequencyQuarterly    RepaymentFrequency = "QUARTERLY"
	FrequencySemiAnnually RepaymentFrequency = "SEMI_ANNUALLY"
	FrequencyAnnually     RepaymentFrequency = "ANNUALLY"
)

// PaymentsPerYear returns the number of installments per year for the frequency.
// The second return value is false for an unrecognized frequency.
func (f RepaymentFrequency) PaymentsPerYear() (int, bool) {
	switch f {
	case FrequencyMonthly:
		return 12, true
	case FrequencyQuarterly:
		return 4, true
	case FrequencySemiAnnually:
		return 2, true
	case FrequencyAnnually:
		return 1, true
	default:
		return 0, false
	}
}

// MonthsPerPeriod returns the calendar months between consecutive due dates.
func (f RepaymentFrequency) MonthsPerPeriod() (int, bool) {
	ppy, ok := f.PaymentsPerYear()
	if !ok {
		return 0, false
	}
	return 12 / ppy, true
}

// AmortizationType selects the algorithm used to split installments into
// principal and interest components.
type AmortizationType string

const (
	AmortizationReducingBalance AmortizationType = "REDUCING_BALANCE"
	AmortizationFlatRate        AmortizationType = "FLAT_RATE"
	AmortizationBulletPayment   AmortizationType = "BULLET_PAYMENT"
)

// Valid reports whether the amortization type is one of the closed set.
func (a AmortizationType) Valid() bool {
	switch a {
	case AmortizationReducingBalance, AmortizationFlatRate, AmortizationBulletPayment:
		return true
	default:
		return false
	}
}

// InterestType distinguishes fixed-rate loans from variable and hybrid products.
type InterestType string

const (
	InterestFixed    InterestType = "FIXED"
	InterestVariable InterestType = "VARIABLE"
	InterestHybrid   InterestType = "HYBRID"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	StatusSimulated LoanStatus = "SIMULATED"
	StatusActive    LoanStatus = "ACTIVE"
	StatusCompleted LoanStatus = "COMPLETED"
	StatusDefaulted LoanStatus = "DEFAULTED"
	StatusCancelled LoanStatus = "CANCELLED"
)

// CanTransitionTo enforces the loan lifecycle:
// Simulated -> Active -> {Completed, Defaulted, Cancelled}.
// Completed, Defaulted and Cancelled are terminal.
func (s LoanStatus) CanTransitionTo(target LoanStatus) bool {
	switch s {
	case StatusSimulated:
		return target == StatusActive || target == StatusCancelled
	case StatusActive:
		return target == StatusCompleted || target == StatusDefaulted || target == StatusCancelled
	case StatusCompleted, StatusDefaulted, StatusCancelled:
		return false
	default:
		return false
	}
}

// LoanTerms is the immutable input to the calculation engine. It carries no
// identity; two loans created from equal terms produce identical schedules.
type LoanTerms struct {
	Principal        decimal.Decimal    `json:"principal"`
	AnnualRate       decimal.Decimal    `json:"annualRate"` // percentage, 0-100
	TermMonths       int                `json:"termMonths"`
	Frequency        RepaymentFrequency `json:"frequency"`
	AmortizationType AmortizationType   `json:"amortizationType"`
	StartDate        time.Time          `json:"startDate"`

	InterestType InterestType `json:"interestType"`
	// RateAdjustmentFrequencyMonths is required when InterestType is VARIABLE.
	RateAdjustmentFrequencyMonths *int `json:"rateAdjustmentFrequencyMonths,omitempty"`
	// FixedPeriodMonths is required when InterestType is HYBRID.
	FixedPeriodMonths *int `json:"fixedPeriodMonths,omitempty"`
}

// Loan is the aggregate root. It exclusively owns its ScheduleItems and
// PaymentRecords. EMIAmount, TotalInterest and TotalPayment are computed once
// at creation; CurrentBalance is mutated only by payment application.
type Loan struct {
	LoanID  string    `json:"loanID"`
	OwnerID string    `json:"ownerID"`
	Terms   LoanTerms `json:"terms"`

	EMIAmount      decimal.Decimal `json:"emiAmount"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
	TotalPayment   decimal.Decimal `json:"totalPayment"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`

	Status          LoanStatus `json:"status"`
	PaymentsMade    int        `json:"paymentsMade"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty"`
	NextPaymentDate *time.Time `json:"nextPaymentDate,omitempty"`
	MaturityDate    time.Time  `json:"maturityDate"`
	CompletionDate  *time.Time `json:"completionDate,omitempty"`

	AuditFields
}

// IsSimulation reports whether the loan is a simulation rather than a tracked loan.
func (l *Loan) IsSimulation() bool {
	return l.Status == StatusSimulated
}
