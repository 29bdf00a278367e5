package calculation

import "time"

// AddMonthsClamped advances a date by the given number of calendar months,
// keeping the day-of-month of the original date and clamping to the last valid
// day when the target month is shorter (Jan 31 + 1 month = Feb 28/29).
//
// Stepping is always anchored on the original date, never on the previous
// step's result, so a schedule starting on the 31st returns to the 31st in
// months long enough to hold it.
func AddMonthsClamped(date time.Time, months int) time.Time {
	year, month, day := date.Date()

	totalMonths := int(month) - 1 + months
	targetYear := year + totalMonths/12
	targetMonth := time.Month(totalMonths%12 + 1)
	if totalMonths < 0 && totalMonths%12 != 0 {
		targetYear--
		targetMonth += 12
	}

	if max := daysInMonth(targetYear, targetMonth); day > max {
		day = max
	}

	return time.Date(targetYear, targetMonth, day,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
