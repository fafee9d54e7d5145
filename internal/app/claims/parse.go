package claims

import (
	"fmt"
	"strconv"
	"strings"
)

// deriveNumeric normalizes scraped numeric text into an integer witness
// value. Currency symbols and thousands separators are stripped, decimals
// are truncated towards zero, and the common k/m/b suffixes are expanded.
// "$1,234.56" becomes 1234 and "2.5k" becomes 2500.
func deriveNumeric(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty numeric value")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimLeft(s, "$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	multiplier := int64(1)
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "k"):
		multiplier = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "m"):
		multiplier = 1_000_000
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "b"):
		multiplier = 1_000_000_000
		s = s[:len(s)-1]
	}
	s = strings.TrimSpace(s)

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse numeric value %q: %w", raw, err)
	}

	result := int64(value * float64(multiplier))
	if negative {
		result = -result
	}
	if result < 0 {
		// Field elements have no sign; negative balances clamp to zero so a
		// greater-than claim over them always fails.
		return 0, nil
	}
	return result, nil
}

// deriveBoolean maps truthy text to 1 and everything else to 0.
func deriveBoolean(raw string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "verified", "active", "on":
		return 1, nil
	default:
		return 0, nil
	}
}

// IsBooleanShaped reports whether raw text reads as a flag value at all,
// truthy or falsy.
func IsBooleanShaped(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "verified", "active", "on",
		"false", "no", "0", "unverified", "inactive", "off":
		return true
	}
	return false
}

// deriveInfluencer derives the influencer flag from a raw follower count.
func deriveInfluencer(raw string) (int64, error) {
	followers, err := deriveNumeric(raw)
	if err != nil {
		return 0, err
	}
	if followers > influencerFollowerFloor {
		return 1, nil
	}
	return 0, nil
}

// deriveRecentActivity maps "N days ago" style text (or a bare day count) to
// a recency flag.
func deriveRecentActivity(raw string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}
	switch s {
	case "today", "yesterday", "just now", "now":
		return 1, nil
	}
	s = strings.TrimSuffix(s, " ago")
	for _, unit := range []string{" days", " day", "d"} {
		if strings.HasSuffix(s, unit) {
			s = strings.TrimSuffix(s, unit)
			break
		}
	}
	days, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse activity age %q: %w", raw, err)
	}
	if days >= 0 && days < recentActivityMaxDays {
		return 1, nil
	}
	return 0, nil
}
