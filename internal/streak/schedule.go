package streak

import (
	"fmt"
	"time"
)

// Rule is a routine's recurrence rule
type Rule string

// Supported recurrence rules
const (
	RuleDaily        Rule = "daily"
	RuleWeekdays     Rule = "weekdays"
	RuleWeekly       Rule = "weekly"
	RuleMonthly      Rule = "monthly"
	RuleTimesPerWeek Rule = "times_per_week"
)

// ParseRule validates a recurrence rule name
func ParseRule(s string) (Rule, error) {
	switch r := Rule(s); r {
	case RuleDaily, RuleWeekdays, RuleWeekly, RuleMonthly, RuleTimesPerWeek:
		return r, nil
	}
	return "", fmt.Errorf("unknown recurrence rule %q", s)
}

// DueOn reports whether a routine created on created must be completed on day.
// Weekly routines fall on the creation weekday; monthly routines on the
// creation day-of-month, clamped to the last day of shorter months.
// times_per_week routines are never required on a specific day.
func (r Rule) DueOn(created, day time.Time) bool {
	switch r {
	case RuleDaily:
		return true
	case RuleWeekdays:
		wd := day.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case RuleWeekly:
		return day.Weekday() == created.Weekday()
	case RuleMonthly:
		want := created.Day()
		if last := daysIn(day); want > last {
			want = last
		}
		return day.Day() == want
	default:
		return false
	}
}

func daysIn(day time.Time) int {
	return time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
