package validate

// values.go converts cell text into typed values.
//
// Spreadsheet exports are messy: prices arrive as "$1,250.00", booleans as
// "Y" or "1", dates in several layouts. Each parser accepts the common
// forms and returns an error naming the problem for anything else.

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative number, tolerating a currency symbol and
// thousands separators, and rounds it half-up to an integer.
func ParseAmount(s string) (int64, error) {
	v, _, err := RoundAmount(s)
	return v, err
}

// RoundAmount is ParseAmount that also reports whether rounding changed the
// value.
func RoundAmount(s string) (int64, bool, error) {
	clean := strings.TrimSpace(s)
	for _, sym := range []string{"$", "€", "£", ","} {
		clean = strings.ReplaceAll(clean, sym, "")
	}
	clean = strings.TrimSpace(clean)
	d, err := decimal.NewFromString(clean)
	if err != nil || clean == "" {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if d.IsNegative() {
		return 0, false, fmt.Errorf("invalid number %q: must not be negative", s)
	}
	r := d.Round(0)
	return r.IntPart(), !r.Equal(d), nil
}

// ParseBool accepts true/false, yes/no, y/n and 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q (use true/false, yes/no or 1/0)", s)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate parses a timestamp and renders it as RFC 3339 in UTC.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC 3339)", s)
}

// MatchEnum returns the lower-cased allow-list entry equal to s ignoring case.
func MatchEnum(s string, allowed []string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid enum value %q (allowed: %s)", s, strings.Join(allowed, ", "))
}
