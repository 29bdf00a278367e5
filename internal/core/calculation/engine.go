// Package calculation implements the pure loan calculation engine: payment
// amount derivation and full amortization schedule generation for reducing
// balance, flat rate and bullet payment loans.
//
// Every function here is side-effect free and deterministic: identical terms
// always produce identical output, which callers rely on for audit
// reproducibility and offline previews. All money math uses
// shopspring/decimal, with rounding applied once per schedule row (round
// half up to two decimal places), never mid-calculation.
package calculation

import (
	"fmt"

	"github.com/finflow/loan_engine_app/internal/apperrors"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

const (
	// MinTermMonths and MaxTermMonths bound the loan term accepted by the engine.
	MinTermMonths = 1
	MaxTermMonths = 360
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Result carries the engine's aggregate outputs for a set of terms.
type Result struct {
	EMIAmount         decimal.Decimal `json:"emiAmount"`
	TotalInterest     decimal.Decimal `json:"totalInterest"`
	TotalPayment      decimal.Decimal `json:"totalPayment"`
	PaymentCount      int             `json:"paymentCount"`
	MonthlyEquivalent decimal.Decimal `json:"monthlyEquivalent"`
}

// ValidateTerms checks the numeric bounds the engine requires. It accumulates
// every violation rather than failing on the first.
func ValidateTerms(terms domain.LoanTerms) error {
	verr := &apperrors.ValidationError{}

	if !terms.Principal.IsPositive() {
		verr.Add("principal", "must be greater than zero")
	}
	if terms.AnnualRate.IsNegative() || terms.AnnualRate.GreaterThan(hundred) {
		verr.Add("annualRate", "must be between 0 and 100")
	}
	if terms.TermMonths < MinTermMonths || terms.TermMonths > MaxTermMonths {
		verr.Add("termMonths", fmt.Sprintf("must be between %d and %d", MinTermMonths, MaxTermMonths))
	}
	if _, ok := terms.Frequency.PaymentsPerYear(); !ok {
		verr.Add("frequency", "unsupported repayment frequency")
	} else if terms.TermMonths >= MinTermMonths && terms.TermMonths <= MaxTermMonths &&
		totalPayments(terms.TermMonths, terms.Frequency) < 1 {
		verr.Add("termMonths", "term is shorter than one repayment period for the chosen frequency")
	}
	if !terms.AmortizationType.Valid() {
		verr.Add("amortizationType", "unsupported amortization type")
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// periodRate returns (annualRate/100)/paymentsPerYear at full precision.
func periodRate(terms domain.LoanTerms) decimal.Decimal {
	ppy, ok := terms.Frequency.PaymentsPerYear()
	if !ok {
		// Unreachable after ValidateTerms; a closed enum was extended without
		// updating the engine.
		panic(fmt.Sprintf("calculation: unsupported repayment frequency %q", terms.Frequency))
	}
	return terms.AnnualRate.Div(hundred).Div(decimal.NewFromInt(int64(ppy)))
}

func totalPayments(termMonths int, frequency domain.RepaymentFrequency) int {
	ppy, ok := frequency.PaymentsPerYear()
	if !ok {
		return 0
	}
	return termMonths * ppy / 12
}

// flatTotalInterest is the simple interest charged once on the original
// principal: principal * (rate/100) * (termMonths/12).
func flatTotalInterest(terms domain.LoanTerms) decimal.Decimal {
	return terms.Principal.
		Mul(terms.AnnualRate.Div(hundred)).
		Mul(decimal.NewFromInt(int64(terms.TermMonths)).Div(twelve)).
		Round(2)
}

// PaymentAmount computes the canonical per-period payment for the terms.
//
// For REDUCING_BALANCE this is the annuity payment that exactly zeroes the
// balance over the term under compound interest. For FLAT_RATE it spreads
// principal plus simple interest evenly. For BULLET_PAYMENT it is the interim
// interest-only amount; the final installment additionally carries the full
// principal, so callers needing the true final payment must consult the
// schedule.
func PaymentAmount(terms domain.LoanTerms) (decimal.Decimal, error) {
	if err := ValidateTerms(terms); err != nil {
		return decimal.Zero, err
	}
	payment := paymentAmountUnchecked(terms)
	if payment.IsNegative() {
		// Contract violation, not a user error.
		panic(fmt.Sprintf("calculation: negative payment %s for terms %+v", payment, terms))
	}
	return payment, nil
}

func paymentAmountUnchecked(terms domain.LoanTerms) decimal.Decimal {
	n := totalPayments(terms.TermMonths, terms.Frequency)
	nDec := decimal.NewFromInt(int64(n))
	rate := periodRate(terms)

	switch terms.AmortizationType {
	case domain.AmortizationReducingBalance:
		if rate.IsZero() {
			return terms.Principal.Div(nDec).Round(2)
		}
		// payment = P * r * (1+r)^n / ((1+r)^n - 1)
		compound := one.Add(rate).Pow(nDec)
		return terms.Principal.Mul(rate).Mul(compound).
			Div(compound.Sub(one)).
			Round(2)

	case domain.AmortizationFlatRate:
		return terms.Principal.Add(flatTotalInterest(terms)).Div(nDec).Round(2)

	case domain.AmortizationBulletPayment:
		return terms.Principal.Mul(rate).Round(2)

	default:
		panic(fmt.Sprintf("calculation: unsupported amortization type %q", terms.AmortizationType))
	}
}

// GenerateSchedule produces the full ordered installment breakdown for the
// terms. The returned items are drafts: no IDs, no loan reference, unpersisted.
//
// The final installment's principal component is forced to the remaining
// opening balance, absorbing cumulative per-row rounding so that principal
// components sum exactly to the original principal and the last closing
// balance is exactly zero.
func GenerateSchedule(terms domain.LoanTerms) ([]domain.ScheduleItem, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}

	n := totalPayments(terms.TermMonths, terms.Frequency)
	rate := periodRate(terms)
	payment := paymentAmountUnchecked(terms)
	monthsPerPeriod, _ := terms.Frequency.MonthsPerPeriod()

	flatInterestTotal := decimal.Zero
	if terms.AmortizationType == domain.AmortizationFlatRate {
		flatInterestTotal = flatTotalInterest(terms)
	}

	items := make([]domain.ScheduleItem, 0, n)
	currentBalance := terms.Principal
	interestAccrued := decimal.Zero

	for k := 1; k <= n; k++ {
		// Guards against a future amortization type under-drawing the
		// balance; must not fire for the three supported types.
		if !currentBalance.IsPositive() {
			break
		}

		isFinal := k == n
		var principal, interest, installment decimal.Decimal

		switch terms.AmortizationType {
		case domain.AmortizationReducingBalance:
			interest = currentBalance.Mul(rate).Round(2)
			if isFinal {
				principal = currentBalance
			} else {
				principal = payment.Sub(interest)
			}
			installment = principal.Add(interest)

		case domain.AmortizationFlatRate:
			// Interest accrues on the original principal every period.
			interest = terms.Principal.Mul(rate).Round(2)
			if isFinal {
				// The last row absorbs both principal and interest rounding
				// so the schedule totals are cent-exact.
				principal = currentBalance
				interest = flatInterestTotal.Sub(interestAccrued)
			} else {
				principal = payment.Sub(interest)
			}
			installment = principal.Add(interest)

		case domain.AmortizationBulletPayment:
			interest = currentBalance.Mul(rate).Round(2)
			if isFinal {
				principal = currentBalance
			} else {
				principal = decimal.Zero
			}
			installment = principal.Add(interest)

		default:
			panic(fmt.Sprintf("calculation: unsupported amortization type %q", terms.AmortizationType))
		}

		// Clamp so a row can never draw the balance negative; by construction
		// this binds only on the final row.
		if principal.GreaterThan(currentBalance) {
			principal = currentBalance
			installment = principal.Add(interest)
		}

		closing := currentBalance.Sub(principal)
		if closing.IsNegative() {
			panic(fmt.Sprintf("calculation: negative closing balance %s at installment %d", closing, k))
		}

		items = append(items, domain.ScheduleItem{
			InstallmentNumber:  k,
			DueDate:            AddMonthsClamped(terms.StartDate, k*monthsPerPeriod),
			InstallmentAmount:  installment,
			PrincipalComponent: principal,
			InterestComponent:  interest,
			OpeningBalance:     currentBalance,
			ClosingBalance:     closing,
			PaidAmount:         decimal.Zero,
			LateFee:            decimal.Zero,
		})

		currentBalance = closing
		interestAccrued = interestAccrued.Add(interest)
	}

	return items, nil
}

// Metrics runs the engine without persisting anything: the canonical payment
// amount plus schedule-derived totals for the terms.
func Metrics(terms domain.LoanTerms) (Result, error) {
	schedule, err := GenerateSchedule(terms)
	if err != nil {
		return Result{}, err
	}

	emi := paymentAmountUnchecked(terms)
	totalInterest := decimal.Zero
	totalPayment := decimal.Zero
	for _, item := range schedule {
		totalInterest = totalInterest.Add(item.InterestComponent)
		totalPayment = totalPayment.Add(item.InstallmentAmount)
	}

	ppy, _ := terms.Frequency.PaymentsPerYear()
	monthlyEquivalent := emi.Mul(decimal.NewFromInt(int64(ppy))).Div(twelve).Round(2)

	return Result{
		EMIAmount:         emi,
		TotalInterest:     totalInterest,
		TotalPayment:      totalPayment,
		PaymentCount:      len(schedule),
		MonthlyEquivalent: monthlyEquivalent,
	}, nil
}
