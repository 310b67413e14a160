package schedule

import (
	"time"
)

// NextTick returns the next run time after now. With align set, ticks land on
// multiples of interval counted from the UTC day start (an hourly interval
// fires on the hour); otherwise the next tick is simply now+interval.
func NextTick(now time.Time, interval time.Duration, align bool) time.Time {
	if interval <= 0 {
		interval = time.Hour
	}
	if !align {
		return now.Add(interval)
	}
	u := now.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	n := u.Sub(day)/interval + 1
	return day.Add(n * interval).In(now.Location())
}

// Delay is how long to wait from now until the next tick.
func Delay(now time.Time, interval time.Duration, align bool) time.Duration {
	return NextTick(now, interval, align).Sub(now)
}
