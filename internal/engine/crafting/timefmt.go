package crafting

import (
	"fmt"
	"strconv"
	"strings"
)

// Display value for an operation with nothing left on the clock.
const Ready = "READY"

// FormatRemaining renders seconds as "{h}h {m}m {s}s", omitting zero units.
// Non-positive values render as READY.
func FormatRemaining(seconds float64) string {
	if seconds <= 0 {
		return Ready
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	if len(parts) == 0 {
		return Ready
	}
	return strings.Join(parts, " ")
}

// ParseRemaining converts a formatted time string back to seconds. READY
// parses to 0. Returns false for unparseable values ("Unknown", "Error",
// empty).
func ParseRemaining(value string) (int, bool) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "~")
	if value == Ready {
		return 0, true
	}
	if value == "" || value == "Unknown" || value == "Error" {
		return 0, false
	}
	total := 0
	for _, part := range strings.Fields(value) {
		unit := part[len(part)-1]
		n, err := strconv.Atoi(part[:len(part)-1])
		if err != nil {
			return 0, false
		}
		switch unit {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		case 's':
			total += n
		default:
			return 0, false
		}
	}
	return total, true
}

// LongestActive returns the longest non-READY time from values, ties broken
// by first encounter. Returns READY when no active time exists.
func LongestActive(values []string) string {
	best := ""
	bestSeconds := -1
	for _, v := range values {
		if v == Ready {
			continue
		}
		seconds, ok := ParseRemaining(v)
		if !ok {
			continue
		}
		if seconds > bestSeconds {
			bestSeconds = seconds
			best = v
		}
	}
	if best == "" {
		return Ready
	}
	return best
}

// MostUrgent returns the shortest time from values; READY always wins.
func MostUrgent(values []string) string {
	best := ""
	bestSeconds := -1
	for _, v := range values {
		if v == Ready {
			return Ready
		}
		seconds, ok := ParseRemaining(v)
		if !ok {
			continue
		}
		if bestSeconds < 0 || seconds < bestSeconds {
			bestSeconds = seconds
			best = v
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}
