// Package milestone compares streak values against fixed ascending threshold tables.
package milestone

// Threshold tables, ascending
var (
	// Gold applies to the aggregate streak (all routines done on a day)
	Gold = []int{1, 7, 30, 100, 365, 1000}
	// Habit applies to a single routine's streak
	Habit = []int{3, 7, 14, 21, 30, 60, 100, 365}
)

// Exact returns the thresholds equal to v (zero or one element for a table
// without duplicates).
func Exact(table []int, v int) []int {
	var out []int
	for _, t := range table {
		if t == v {
			out = append(out, t)
		}
	}
	return out
}

// Upcoming returns the thresholds that will be crossed on the next completed day.
func Upcoming(table []int, current int) []int {
	return Exact(table, current+1)
}

// Qualifying returns every threshold already met by v.
func Qualifying(table []int, v int) []int {
	var out []int
	for _, t := range table {
		if t > v {
			break
		}
		out = append(out, t)
	}
	return out
}

// Effective is the value lifetime milestones are gated on: the larger of the
// current and best streaks.
func Effective(current, best int) int {
	if best > current {
		return best
	}
	return current
}
