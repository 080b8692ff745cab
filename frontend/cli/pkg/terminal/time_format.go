package terminal

import (
	"fmt"
	"math"
	"time"
)

// RelativeTime renders a timestamp as a human distance from now, in the
// largest unit that keeps the value readable.
func RelativeTime(t time.Time) string {
	now := time.Now()
	duration := t.Sub(now)

	absDuration := duration
	if absDuration < 0 {
		absDuration = -absDuration
	}

	var value int
	var unit string

	if absDuration < time.Hour {
		value = int(math.Round(absDuration.Minutes()))
		unit = "minute"
	} else if absDuration < 24*time.Hour {
		value = int(math.Round(absDuration.Hours()))
		unit = "hour"
	} else {
		value = int(math.Round(absDuration.Hours() / 24))
		unit = "day"
	}

	if value != 1 {
		unit += "s"
	}

	if duration < 0 {
		return fmt.Sprintf("%d %s ago", value, unit)
	}

	return fmt.Sprintf("in %d %s", value, unit)
}
