// Package streak counts consecutive completed days for a single routine and
// for the aggregate "gold" streak across all of a user's routines.
package streak

import (
	"time"
)

// MaxLookback bounds the backward walk. A walk that uses every iteration
// reports Truncated rather than stopping the streak.
const MaxLookback = 365

// DayLayout is the calendar date wire format
const DayLayout = "2006-01-02"

// Day normalises t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Window is the activity window of a routine
type Window struct {
	Created     time.Time
	Deactivated *time.Time
}

// ActiveOn reports whether day lies within the window
func (w Window) ActiveOn(day time.Time) bool {
	if day.Before(Day(w.Created)) {
		return false
	}
	if w.Deactivated != nil && !day.Before(Day(*w.Deactivated)) {
		return false
	}
	return true
}

// Result is the outcome of a backward walk
type Result struct {
	Days int
	// Truncated is set when the walk hit MaxLookback; the real streak may be longer.
	Truncated bool
}

// Evaluate counts consecutive completed days ending at from, stepping
// backward one day at a time. The walk stops before the routine's creation
// date, on or after its deactivation date, or at the first day not done.
func Evaluate(w Window, from time.Time, done func(day time.Time) bool) Result {
	day := Day(from)
	var res Result
	for i := 0; i < MaxLookback; i++ {
		if !w.ActiveOn(day) || !done(day) {
			return res
		}
		res.Days++
		day = day.AddDate(0, 0, -1)
	}
	res.Truncated = true
	return res
}

// Routine is the view of a routine the gold streak needs
type Routine struct {
	ID     uint
	Rule   Rule
	Window Window
	// TimesPerWeek is the weekly target for RuleTimesPerWeek
	TimesPerWeek int
}

// Gold counts consecutive days ending at from on which every routine that was
// active and due had been completed. Days on which routines are active but
// none is due are neutral: they neither extend nor break the streak. The walk
// ends on the first day with no active routine at all.
func Gold(routines []Routine, from time.Time, done func(routineID uint, day time.Time) bool) Result {
	var res Result
	if len(routines) == 0 {
		return res
	}

	day := Day(from)
	for i := 0; i < MaxLookback; i++ {
		active, due := 0, 0
		for _, r := range routines {
			if !r.Window.ActiveOn(day) {
				continue
			}
			active++
			if !r.Rule.DueOn(Day(r.Window.Created), day) {
				continue
			}
			due++
			if !done(r.ID, day) {
				return res
			}
		}
		if active == 0 {
			return res
		}
		if due > 0 {
			res.Days++
		}
		day = day.AddDate(0, 0, -1)
	}
	res.Truncated = true
	return res
}

// Habit is the per-routine streak honouring the recurrence rule. Daily
// routines use Evaluate directly; times_per_week routines are judged per
// calendar week; for other rules days on which the routine is not due are
// skipped. A routine inactive at from has no streak.
func Habit(r Routine, from time.Time, done func(day time.Time) bool) Result {
	switch {
	case r.Rule == RuleDaily || r.Rule == "":
		return Evaluate(r.Window, from, done)
	case !r.Window.ActiveOn(Day(from)):
		return Result{}
	case r.Rule == RuleTimesPerWeek:
		return weekly(r, Day(from), done)
	}
	return Gold([]Routine{r}, from, func(_ uint, day time.Time) bool { return done(day) })
}

// weekly walks back over Monday-based weeks. A week is kept when its
// completions reach the target, lowered to the active days for the week the
// routine was created in. A kept week adds its active days up to from. The
// week containing from may still be in progress, so falling short there is
// neutral.
func weekly(r Routine, from time.Time, done func(day time.Time) bool) Result {
	target := r.TimesPerWeek
	if target < 1 {
		target = 1
	}

	var res Result
	walked := 0
	start := weekStart(from)
	for current := true; ; current = false {
		active, elapsed, completed := 0, 0, 0
		for i := 0; i < 7; i++ {
			day := start.AddDate(0, 0, i)
			if !r.Window.ActiveOn(day) {
				continue
			}
			active++
			if day.After(from) {
				continue
			}
			elapsed++
			if done(day) {
				completed++
			}
		}
		if active == 0 {
			return res
		}

		need := target
		if active < need {
			need = active
		}
		switch {
		case completed >= need:
			res.Days += elapsed
		case !current:
			return res
		}

		walked += 7
		if !r.Window.ActiveOn(start) {
			return res
		}
		if walked >= MaxLookback {
			res.Truncated = true
			return res
		}
		start = start.AddDate(0, 0, -7)
	}
}

// weekStart returns the Monday on or before day
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Current applies the grace rule for an unfinished today: when the streak
// evaluated at today is zero, the streak ending yesterday is reported.
func Current(eval func(from time.Time) Result, today time.Time) Result {
	today = Day(today)
	if res := eval(today); res.Days > 0 {
		return res
	}
	return eval(today.AddDate(0, 0, -1))
}
