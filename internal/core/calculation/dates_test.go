package calculation_test

import (
	"testing"
	"time"

	"github.com/finflow/loan_engine_app/internal/core/calculation"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"simple step", date(2025, 1, 15), 1, date(2025, 2, 15)},
		{"year rollover", date(2025, 11, 10), 3, date(2026, 2, 10)},
		{"clamp jan 31 to feb 28", date(2025, 1, 31), 1, date(2025, 2, 28)},
		{"clamp jan 31 to leap feb 29", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"clamp to 30-day month", date(2025, 3, 31), 1, date(2025, 4, 30)},
		{"multi-year", date(2025, 6, 30), 24, date(2027, 6, 30)},
		{"quarterly step", date(2025, 1, 31), 3, date(2025, 4, 30)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, calculation.AddMonthsClamped(tc.start, tc.months))
		})
	}
}

func TestAddMonthsClamped_AnchorsOnOriginalDay(t *testing.T) {
	// Stepping from Jan 31 lands on the 31st again in months long enough,
	// rather than sticking to the clamped 28th.
	start := date(2025, 1, 31)
	assert.Equal(t, date(2025, 2, 28), calculation.AddMonthsClamped(start, 1))
	assert.Equal(t, date(2025, 3, 31), calculation.AddMonthsClamped(start, 2))
	assert.Equal(t, date(2025, 4, 30), calculation.AddMonthsClamped(start, 3))
	assert.Equal(t, date(2025, 5, 31), calculation.AddMonthsClamped(start, 4))
}
