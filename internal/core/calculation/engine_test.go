package calculation_test

import (
	"testing"
	"time"

	"github.com/finflow/loan_engine_app/internal/apperrors"
	"github.com/finflow/loan_engine_app/internal/core/calculation"
	"github.com/finflow/loan_engine_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTerms(principal string, rate string, termMonths int, freq domain.RepaymentFrequency, amort domain.AmortizationType) domain.LoanTerms {
	return domain.LoanTerms{
		Principal:        decimal.RequireFromString(principal),
		AnnualRate:       decimal.RequireFromString(rate),
		TermMonths:       termMonths,
		Frequency:        freq,
		AmortizationType: amort,
		StartDate:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		InterestType:     domain.InterestFixed,
	}
}

func TestPaymentAmount_ReducingBalance_ReferenceEMI(t *testing.T) {
	// Standard annuity-table reference: 100000 at 10% over 12 monthly payments.
	terms := makeTerms("100000", "10", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	payment, err := calculation.PaymentAmount(terms)
	require.NoError(t, err)
	assert.True(t, payment.Equal(decimal.RequireFromString("8791.59")),
		"expected EMI 8791.59, got %s", payment)
}

func TestPaymentAmount_FlatRate(t *testing.T) {
	terms := makeTerms("10000", "10", 12, domain.FrequencyMonthly, domain.AmortizationFlatRate)

	payment, err := calculation.PaymentAmount(terms)
	require.NoError(t, err)
	// (10000 + 1000) / 12 = 916.67
	assert.True(t, payment.Equal(decimal.RequireFromString("916.67")),
		"expected flat-rate payment 916.67, got %s", payment)
}

func TestPaymentAmount_Bullet_InterimInterestOnly(t *testing.T) {
	terms := makeTerms("5000", "6", 6, domain.FrequencyMonthly, domain.AmortizationBulletPayment)

	payment, err := calculation.PaymentAmount(terms)
	require.NoError(t, err)
	// 5000 * 0.5%/month = 25.00
	assert.True(t, payment.Equal(decimal.RequireFromString("25")),
		"expected interest-only payment 25.00, got %s", payment)
}

func TestPaymentAmount_ZeroRate(t *testing.T) {
	terms := makeTerms("12000", "0", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	payment, err := calculation.PaymentAmount(terms)
	require.NoError(t, err)
	assert.True(t, payment.Equal(decimal.RequireFromString("1000")),
		"expected 1000 per installment at zero rate, got %s", payment)
}

func TestValidateTerms_AccumulatesAllViolations(t *testing.T) {
	terms := makeTerms("0", "150", 0, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	err := calculation.ValidateTerms(terms)
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	assert.Contains(t, fields, "principal")
	assert.Contains(t, fields, "annualRate")
	assert.Contains(t, fields, "termMonths")
}

func TestValidateTerms_IndividualFieldRejections(t *testing.T) {
	base := makeTerms("10000", "10", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	tests := []struct {
		name   string
		mutate func(*domain.LoanTerms)
		field  string
	}{
		{"zero principal", func(tt *domain.LoanTerms) { tt.Principal = decimal.Zero }, "principal"},
		{"negative principal", func(tt *domain.LoanTerms) { tt.Principal = decimal.NewFromInt(-5) }, "principal"},
		{"rate above 100", func(tt *domain.LoanTerms) { tt.AnnualRate = decimal.NewFromInt(150) }, "annualRate"},
		{"negative rate", func(tt *domain.LoanTerms) { tt.AnnualRate = decimal.NewFromInt(-1) }, "annualRate"},
		{"zero term", func(tt *domain.LoanTerms) { tt.TermMonths = 0 }, "termMonths"},
		{"term above 360", func(tt *domain.LoanTerms) { tt.TermMonths = 361 }, "termMonths"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			terms := base
			tc.mutate(&terms)

			err := calculation.ValidateTerms(terms)
			require.Error(t, err)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Violations, 1)
			assert.Equal(t, tc.field, verr.Violations[0].Field)
		})
	}
}

func TestValidateTerms_TermShorterThanPeriod(t *testing.T) {
	// 6 months annually gives zero whole payments.
	terms := makeTerms("10000", "5", 6, domain.FrequencyAnnually, domain.AmortizationReducingBalance)

	err := calculation.ValidateTerms(terms)
	require.Error(t, err)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "termMonths", verr.Violations[0].Field)
}

func TestGenerateSchedule_BalanceTelescoping(t *testing.T) {
	cases := []domain.LoanTerms{
		makeTerms("100000", "10", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance),
		makeTerms("250000", "7.5", 360, domain.FrequencyMonthly, domain.AmortizationReducingBalance),
		makeTerms("10000", "10", 12, domain.FrequencyMonthly, domain.AmortizationFlatRate),
		makeTerms("5000", "6", 6, domain.FrequencyMonthly, domain.AmortizationBulletPayment),
		makeTerms("60000", "9", 36, domain.FrequencyQuarterly, domain.AmortizationReducingBalance),
		makeTerms("80000", "4", 120, domain.FrequencySemiAnnually, domain.AmortizationFlatRate),
		makeTerms("40000", "12", 60, domain.FrequencyAnnually, domain.AmortizationBulletPayment),
		makeTerms("12000", "0", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance),
	}

	for _, terms := range cases {
		schedule, err := calculation.GenerateSchedule(terms)
		require.NoError(t, err)
		require.NotEmpty(t, schedule)

		opening := terms.Principal
		totalPrincipal := decimal.Zero
		for i, item := range schedule {
			assert.Equal(t, i+1, item.InstallmentNumber)
			assert.True(t, item.OpeningBalance.Equal(opening),
				"row %d opening balance %s != previous closing %s (%s/%s)",
				item.InstallmentNumber, item.OpeningBalance, opening, terms.AmortizationType, terms.Frequency)
			assert.True(t, item.ClosingBalance.Equal(item.OpeningBalance.Sub(item.PrincipalComponent)))
			assert.False(t, item.PrincipalComponent.IsNegative())
			assert.False(t, item.InterestComponent.IsNegative())
			opening = item.ClosingBalance
			totalPrincipal = totalPrincipal.Add(item.PrincipalComponent)
		}

		last := schedule[len(schedule)-1]
		assert.True(t, last.ClosingBalance.IsZero(),
			"final closing balance must be exactly zero, got %s (%s/%s)",
			last.ClosingBalance, terms.AmortizationType, terms.Frequency)
		assert.True(t, totalPrincipal.Equal(terms.Principal),
			"principal components must sum exactly to principal: got %s, want %s",
			totalPrincipal, terms.Principal)
	}
}

func TestGenerateSchedule_Determinism(t *testing.T) {
	terms := makeTerms("123456.78", "11.25", 84, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	first, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)
	second, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].DueDate, second[i].DueDate)
		assert.True(t, first[i].InstallmentAmount.Equal(second[i].InstallmentAmount))
		assert.True(t, first[i].PrincipalComponent.Equal(second[i].PrincipalComponent))
		assert.True(t, first[i].InterestComponent.Equal(second[i].InterestComponent))
		assert.True(t, first[i].OpeningBalance.Equal(second[i].OpeningBalance))
		assert.True(t, first[i].ClosingBalance.Equal(second[i].ClosingBalance))
	}
}

func TestGenerateSchedule_ZeroInterestReducingBalance(t *testing.T) {
	terms := makeTerms("10000", "0", 36, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	schedule, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, schedule, 36)

	// 10000 / 36 = 277.78 rounded; the final row absorbs the remainder.
	even := decimal.RequireFromString("277.78")
	for _, item := range schedule[:35] {
		assert.True(t, item.InterestComponent.IsZero())
		assert.True(t, item.PrincipalComponent.Equal(even),
			"row %d principal %s != %s", item.InstallmentNumber, item.PrincipalComponent, even)
	}
	last := schedule[35]
	assert.True(t, last.InterestComponent.IsZero())
	assert.True(t, last.ClosingBalance.IsZero())
	assert.True(t, last.PrincipalComponent.Equal(decimal.RequireFromString("277.70")),
		"last row should absorb the division remainder, got %s", last.PrincipalComponent)
}

func TestGenerateSchedule_FlatRateInterestSpread(t *testing.T) {
	terms := makeTerms("10000", "10", 12, domain.FrequencyMonthly, domain.AmortizationFlatRate)

	schedule, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	perPeriod := decimal.RequireFromString("83.33")
	totalInterest := decimal.Zero
	for _, item := range schedule[:11] {
		assert.True(t, item.InterestComponent.Equal(perPeriod),
			"row %d interest %s != 83.33", item.InstallmentNumber, item.InterestComponent)
		totalInterest = totalInterest.Add(item.InterestComponent)
	}
	totalInterest = totalInterest.Add(schedule[11].InterestComponent)

	// Simple interest on the original principal: exactly 1000.00.
	assert.True(t, totalInterest.Equal(decimal.RequireFromString("1000")),
		"flat-rate total interest must be exactly 1000.00, got %s", totalInterest)

	// The final row absorbs at most totalPayments-1 cents of rounding.
	diff := schedule[11].InterestComponent.Sub(perPeriod).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.11")),
		"final-row interest deviation %s exceeds rounding bound", diff)
}

func TestGenerateSchedule_BulletStructure(t *testing.T) {
	terms := makeTerms("5000", "6", 6, domain.FrequencyMonthly, domain.AmortizationBulletPayment)

	schedule, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, schedule, 6)

	interestOnly := decimal.RequireFromString("25")
	for _, item := range schedule[:5] {
		assert.True(t, item.InstallmentAmount.Equal(interestOnly),
			"interim installment %d should be 25.00, got %s", item.InstallmentNumber, item.InstallmentAmount)
		assert.True(t, item.PrincipalComponent.IsZero())
		assert.True(t, item.OpeningBalance.Equal(terms.Principal),
			"principal stays constant until maturity")
	}

	final := schedule[5]
	assert.True(t, final.PrincipalComponent.Equal(terms.Principal))
	assert.True(t, final.InterestComponent.Equal(interestOnly))
	assert.True(t, final.InstallmentAmount.Equal(decimal.RequireFromString("5025")),
		"final bullet installment should be 5025.00, got %s", final.InstallmentAmount)
	assert.True(t, final.ClosingBalance.IsZero())
}

func TestGenerateSchedule_QuarterlyDueDates(t *testing.T) {
	terms := makeTerms("10000", "8", 24, domain.FrequencyQuarterly, domain.AmortizationReducingBalance)

	schedule, err := calculation.GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, schedule, 8)

	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), schedule[0].DueDate)
	assert.Equal(t, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC), schedule[1].DueDate)
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), schedule[7].DueDate)
}

func TestMetrics_FlatRate(t *testing.T) {
	terms := makeTerms("10000", "10", 12, domain.FrequencyMonthly, domain.AmortizationFlatRate)

	result, err := calculation.Metrics(terms)
	require.NoError(t, err)

	assert.Equal(t, 12, result.PaymentCount)
	assert.True(t, result.TotalInterest.Equal(decimal.RequireFromString("1000")),
		"total interest should be exactly 1000.00, got %s", result.TotalInterest)
	assert.True(t, result.TotalPayment.Equal(decimal.RequireFromString("11000")),
		"total payment should be exactly 11000.00, got %s", result.TotalPayment)
	assert.True(t, result.EMIAmount.Equal(decimal.RequireFromString("916.67")))
	assert.True(t, result.MonthlyEquivalent.Equal(result.EMIAmount),
		"monthly loans have a monthly equivalent equal to the EMI")
}

func TestMetrics_MonthlyEquivalentForQuarterly(t *testing.T) {
	terms := makeTerms("12000", "0", 12, domain.FrequencyQuarterly, domain.AmortizationReducingBalance)

	result, err := calculation.Metrics(terms)
	require.NoError(t, err)

	// 4 quarterly payments of 3000; monthly equivalent 3000*4/12 = 1000.
	assert.Equal(t, 4, result.PaymentCount)
	assert.True(t, result.EMIAmount.Equal(decimal.RequireFromString("3000")))
	assert.True(t, result.MonthlyEquivalent.Equal(decimal.RequireFromString("1000")))
}

func TestMetrics_ReducingBalanceTotals(t *testing.T) {
	terms := makeTerms("100000", "10", 12, domain.FrequencyMonthly, domain.AmortizationReducingBalance)

	result, err := calculation.Metrics(terms)
	require.NoError(t, err)

	assert.True(t, result.EMIAmount.Equal(decimal.RequireFromString("8791.59")))
	// Total payment stays within rounding distance of EMI * 12.
	naive := result.EMIAmount.Mul(decimal.NewFromInt(12))
	assert.True(t, result.TotalPayment.Sub(naive).Abs().LessThan(decimal.RequireFromString("0.15")),
		"total payment %s deviates too far from %s", result.TotalPayment, naive)
	assert.True(t, result.TotalPayment.Sub(result.TotalInterest).Equal(terms.Principal),
		"total payment minus total interest must equal principal exactly")
}
