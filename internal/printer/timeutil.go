package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	name string
	size time.Duration
	max  time.Duration
}{
	{"second", time.Second, time.Minute},
	{"minute", time.Minute, time.Hour},
	{"hour", time.Hour, 24 * time.Hour},
	{"day", 24 * time.Hour, 0},
}

// TimeAgo returns a human-readable relative time string in UTC, like
// "5 seconds ago (UTC)" or "3 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	for _, u := range agoUnits {
		if u.max != 0 && diff >= u.max {
			continue
		}
		n := int(diff / u.size)
		if n == 1 {
			return fmt.Sprintf("1 %s ago (UTC)", u.name)
		}
		return fmt.Sprintf("%d %ss ago (UTC)", n, u.name)
	}

	return ""
}

// FormatTimestamp returns the timestamp as "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
