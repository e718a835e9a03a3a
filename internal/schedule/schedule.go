// Package schedule decides when a recurring allocation rule is due.
//
// Due-ness is period based, not duration based: a daily rule executed at
// 23:59 is due again at 00:01 the next day. All comparisons use UTC.
package schedule

import (
	"time"

	"zrlda-finance/internal/domain"
)

// PeriodKey identifies one calendar period. Two instants fall in the same
// period of a frequency iff their keys are equal.
type PeriodKey struct {
	Year  int // calendar year, or ISO week-year for weekly periods
	Index int // day of year, ISO week, or month
}

// IsoWeekOf returns the ISO 8601 week-year and week number of t in UTC.
// Weeks start on Monday and week 1 is the week containing the year's first
// Thursday, so the week-year can differ from t's calendar year around
// January 1st.
func IsoWeekOf(t time.Time) (year, week int) {
	return t.UTC().ISOWeek()
}

// Period returns the period of t for freq. ok is false for an unknown frequency.
func Period(freq domain.Frequency, t time.Time) (key PeriodKey, ok bool) {
	t = t.UTC()
	switch freq {
	case domain.FrequencyDaily:
		return PeriodKey{Year: t.Year(), Index: t.YearDay()}, true
	case domain.FrequencyWeekly:
		y, w := IsoWeekOf(t)
		return PeriodKey{Year: y, Index: w}, true
	case domain.FrequencyMonthly:
		return PeriodKey{Year: t.Year(), Index: int(t.Month())}, true
	}
	return PeriodKey{}, false
}

// IsDue reports whether a rule with the given frequency and last execution
// time may execute at now. A rule that never executed is always due. An
// unknown frequency is never due; callers should check Frequency.Valid first
// and report the rule rather than skip it silently.
func IsDue(freq domain.Frequency, lastExecuted *time.Time, now time.Time) bool {
	cur, ok := Period(freq, now)
	if !ok {
		return false
	}
	if lastExecuted == nil {
		return true
	}
	prev, _ := Period(freq, *lastExecuted)
	return cur != prev
}

// IsRuleDue is IsDue applied to a rule.
func IsRuleDue(rule *domain.AllocationRule, now time.Time) bool {
	return IsDue(rule.Frequency, rule.LastExecutedAt, now)
}
