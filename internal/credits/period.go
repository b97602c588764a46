package credits

import "time"

// PeriodKey returns the billing period a moment in time falls into.
// Pools are monthly and keyed by UTC so every region sees the same rollover.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CurrentPeriod is the period key for "now".
func CurrentPeriod() string {
	return PeriodKey(time.Now())
}

// UntilRollover is the time remaining until the next period begins and a
// fresh allowance applies. Used as the retry hint on credit denials.
func UntilRollover(now time.Time) time.Duration {
	t := now.UTC()
	next := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return next.Sub(t)
}
