package wizard

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nonagon/core/internal/resulterr"
)

// ParseEpochSeconds parses a modal's integer-string input as Unix epoch
// seconds, per spec.md §4.4: non-digit or out-of-range input is an error,
// and "0" parses to 1970-01-01 UTC.
func ParseEpochSeconds(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, resulterr.Validationf("a timestamp is required")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, resulterr.Validationf("%q is not a whole number of seconds", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, resulterr.Validationf("%q is not a whole number of seconds", s)
	}
	return time.Unix(n, 0).UTC(), nil
}

// ParsePositiveHours parses a decimal-string duration in hours, per
// spec.md §4.4: must be a positive decimal, else an error.
func ParsePositiveHours(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, resulterr.Validationf("%q is not a number", s)
	}
	if f <= 0 {
		return 0, resulterr.Validationf("duration must be greater than zero hours")
	}
	return time.Duration(f * float64(time.Hour)), nil
}

// ParseCommaSeparatedList splits on commas, strips whitespace, drops
// empties, and returns an error if more than max entries remain (max <= 0
// means no limit), per spec.md §4.4. The list is never truncated.
func ParseCommaSeparatedList(s string, max int) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if max > 0 && len(out) > max {
		return nil, resulterr.Validationf("at most %d entries are allowed", max)
	}
	return out, nil
}

// ParseHTTPURL requires an http or https scheme and a non-empty host,
// per spec.md §4.4.
func ParseHTTPURL(s string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", resulterr.Validationf("%q is not a valid URL", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", resulterr.Validationf("URL must use http or https")
	}
	if u.Host == "" {
		return "", resulterr.Validationf("URL must include a host")
	}
	return u.String(), nil
}

// ParseBoundedLength validates s's length is within [min, max] inclusive,
// per spec.md §4.4.
func ParseBoundedLength(s string, min, max int) (string, error) {
	if len(s) < min || len(s) > max {
		return "", resulterr.Validationf("must be between %d and %d characters", min, max)
	}
	return s, nil
}
