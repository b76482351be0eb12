package domain

import "time"

// DateOnly truncates a time to its calendar day in the time's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsDue decides whether a recurring definition should materialize an entry
// on the given day. It is pure: firing and LastRun advancement happen in the
// service.
//
// A definition already run today is never due again, regardless of schedule,
// which bounds materialization to one entry per definition per calendar day.
func IsDue(rec *RecurringEntry, today time.Time) bool {
	if rec == nil || !rec.Active {
		return false
	}

	day := DateOnly(today)
	if DateOnly(rec.StartDate).After(day) {
		return false
	}
	if rec.EndDate != nil && DateOnly(*rec.EndDate).Before(day) {
		return false
	}
	if rec.LastRun != nil && SameDay(*rec.LastRun, day) {
		return false
	}

	switch rec.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		weekday := int(day.Weekday())
		for _, d := range rec.WeekdayList() {
			if d == weekday {
				return true
			}
		}
		return false
	case FrequencyMonthly:
		// Days past the end of a short month never fire; a day-31 monthly
		// definition skips February. Callers wanting month-end semantics
		// should schedule day 28 or lower.
		return rec.DayOfMonth != nil && day.Day() == *rec.DayOfMonth
	default:
		return false
	}
}
