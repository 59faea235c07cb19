package utils

import "time"

// Korea Standard Time (+09:00). Billing dates are KST calendar dates.
var krLoc = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*3600)
}()

func KSTLocation() *time.Location { return krLoc }

// CalendarDate returns the calendar date of t in loc as midnight UTC.
// Dates are stored this way so that DATE columns compare by value.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = krLoc
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds n calendar months, clamping to the last day of the target
// month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func FormatRFC3339KST(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(krLoc).Format(time.RFC3339)
}
