package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Hours is a work duration in hours with two decimal places.
//
// It is stored as an integer number of hundredths so sums and differences
// are exact (a split always reconstructs the original duration).
type Hours int64

const hoursScale = 100

// MaxHours is the largest duration ParseHours accepts: eight digits, two of
// them decimals.
const MaxHours Hours = 99999999

// WholeHours returns h full hours.
func WholeHours(h int64) Hours { return Hours(h * hoursScale) }

// HoursFromCenti returns a duration of c hundredths of an hour.
func HoursFromCenti(c int64) Hours { return Hours(c) }

// ParseHours parses decimal hours like "3", "1.5" or "0.25".
// More than two decimal places are rejected rather than rounded, and so is
// anything beyond MaxHours in either direction.
func ParseHours(raw string) (Hours, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("invalid hours %q", raw)
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && (!hasFrac || fracPart == "") {
		return 0, fmt.Errorf("invalid hours %q", raw)
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("invalid hours %q: at most two decimal places", raw)
	}
	var whole int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid hours %q", raw)
		}
		if v > int64(MaxHours/hoursScale) {
			return 0, fmt.Errorf("invalid hours %q: at most %s", raw, MaxHours)
		}
		whole = v
	}
	var frac int64
	if fracPart != "" {
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		v, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid hours %q", raw)
		}
		frac = v
	}
	h := Hours(whole*hoursScale + frac)
	if neg {
		h = -h
	}
	return h, nil
}

// MustHours is ParseHours for literals; it panics on malformed input.
func MustHours(s string) Hours {
	h, err := ParseHours(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Centi returns the duration in hundredths of an hour.
func (h Hours) Centi() int64 { return int64(h) }

func (h Hours) Float64() float64 { return float64(h) / hoursScale }

func (h Hours) Mul(n int) Hours { return h * Hours(n) }

func (h Hours) String() string {
	sign := ""
	v := int64(h)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/hoursScale, v%hoursScale)
}

func (h Hours) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hours) UnmarshalText(b []byte) error {
	v, err := ParseHours(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// UnmarshalJSON accepts both JSON numbers (7.5) and strings ("7.5").
func (h *Hours) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		return nil
	}
	return h.UnmarshalText([]byte(s))
}

func (h Hours) MarshalJSON() ([]byte, error) { return []byte(h.String()), nil }

// Value stores hundredths as an integer column.
func (h Hours) Value() (driver.Value, error) { return int64(h), nil }

func (h *Hours) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*h = 0
	case int64:
		*h = Hours(v)
	case float64:
		*h = Hours(int64(v))
	case []byte:
		return h.scanString(string(v))
	case string:
		return h.scanString(v)
	default:
		return fmt.Errorf("hours: cannot scan %T", src)
	}
	return nil
}

func (h *Hours) scanString(s string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("hours: cannot scan %q: %w", s, err)
	}
	*h = Hours(v)
	return nil
}
