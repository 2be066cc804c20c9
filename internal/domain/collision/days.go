package collision

import "time"

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar date.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// IsDayBlocked reports whether the calendar day containing day falls inside a
// block once the block is widened to whole days. A block from Mon 15:00 to
// Wed 09:00 tints Monday, Tuesday and Wednesday.
func IsDayBlocked(day time.Time, blocks []Block) bool {
	dayStart := StartOfDay(day)
	loc := day.Location()
	for _, b := range blocks {
		from := StartOfDay(b.Start.In(loc))
		to := EndOfDay(b.End.In(loc))
		if !dayStart.Before(from) && !dayStart.After(to) {
			return true
		}
	}
	return false
}

// IsNonWorkingDay reports whether no rule is declared for day's weekday.
func IsNonWorkingDay(day time.Time, rules []AvailabilityRule) bool {
	wd := day.Weekday()
	for _, r := range rules {
		if r.Weekday == wd {
			return false
		}
	}
	return true
}

// RulesFor returns the rules declared for weekday, in input order.
func RulesFor(weekday time.Weekday, rules []AvailabilityRule) []AvailabilityRule {
	var out []AvailabilityRule
	for _, r := range rules {
		if r.Weekday == weekday {
			out = append(out, r)
		}
	}
	return out
}
