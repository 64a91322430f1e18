package spell

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Relative time units with fixed multipliers. "mo" and "y" are fixed-length
// approximations (30/365 days), not calendar-aware.
var unitSeconds = map[string]int64{
	"s":  1,
	"m":  60,
	"h":  3600,
	"d":  86400,
	"w":  604800,
	"mo": 2592000,
	"y":  31536000,
}

// "mo" must be tried before "m".
var relativeTimeRe = regexp.MustCompile(`^([0-9]+)(mo|[smhdwy])$`)

// ParseTimeValue parses a --since/--until value at the given reference time.
// Accepted forms: exactly 10 ASCII digits (absolute unix seconds), the
// literal "now" (case-insensitive), and "<n><unit>" with unit in
// s/m/h/d/w/mo/y meaning now minus that span. Anything else is undefined and
// reports ok=false so the caller can drop the flag.
func ParseTimeValue(raw string, now time.Time) (int64, bool) {
	raw = strings.TrimSpace(raw)

	if len(raw) == 10 && isAllDigits(raw) {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return ts, true
	}

	if strings.EqualFold(raw, "now") {
		return now.Unix(), true
	}

	m := relativeTimeRe.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return now.Unix() - amount*unitSeconds[m[2]], true
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
