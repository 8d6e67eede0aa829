package entitlement

import "time"

// MonthWindow returns the UTC calendar month containing t as a half-open
// interval [start, end). Export counters use this window rather than a
// rolling 30 days, so the quota resets at midnight UTC on the first of each
// month.
func MonthWindow(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
