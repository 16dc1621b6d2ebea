// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formats a money amount with two decimals and comma separators.
// e.g., 1234.5 -> "$1,234.50"
func FormatAmount(d decimal.Decimal, currency string) string {
	neg := d.Sign() < 0
	s := d.Abs().StringFixed(2)

	intPart, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err == nil {
		intPart = FormatNumber(n)
	}

	out := currency + intPart + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatCompact formats an amount with human-readable suffixes.
// e.g., 1234 -> "1.2K", 1234567 -> "1.2M"
func FormatCompact(d decimal.Decimal) string {
	f := d.InexactFloat64()
	abs := f
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", f/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", f/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", f/1_000)
	default:
		return d.StringFixed(0)
	}
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatShare returns part as a percentage of total, or "-" when total is zero.
func FormatShare(part, total decimal.Decimal) string {
	if total.IsZero() {
		return "-"
	}
	return FormatPercent(part.Div(total).InexactFloat64())
}

// FormatDelta formats an amount delta with an explicit sign.
func FormatDelta(current, previous decimal.Decimal, currency string) string {
	delta := current.Sub(previous)
	if delta.Sign() >= 0 {
		return "+" + FormatAmount(delta, currency)
	}
	return FormatAmount(delta, currency)
}
