// Package format renders amounts, account numbers and timestamps the way
// the payment screens display them.
package format

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const rupee = "₹"

var maskPattern = regexp.MustCompile(`^(\d{2})(\d+)(\d{2})$`)

// MaskAccount keeps the first and last two digits and replaces every digit
// in between with '*'. The result has the same length as the input.
// Values that are not at least five digits long are returned unchanged.
func MaskAccount(account string) string {
	m := maskPattern.FindStringSubmatch(account)
	if m == nil {
		return account
	}
	return m[1] + strings.Repeat("*", len(m[2])) + m[3]
}

// Rupees renders d with two decimals and Indian digit grouping, e.g. ₹5,00,000.00.
func Rupees(d decimal.Decimal) string {
	return rupee + GroupIndian(d.StringFixed(2))
}

// GroupIndian inserts separators into the integer part of a plain decimal
// string: the last three digits form one group, the rest groups of two.
func GroupIndian(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	out := intPart
	if n := len(intPart); n > 3 {
		head := intPart[:n-3]
		groups := make([]string, 0, len(head)/2+2)
		first := len(head) % 2
		if first > 0 {
			groups = append(groups, head[:first])
		}
		for i := first; i < len(head); i += 2 {
			groups = append(groups, head[i:i+2])
		}
		groups = append(groups, intPart[n-3:])
		out = strings.Join(groups, ",")
	}
	if neg {
		out = "-" + out
	}
	if hasFrac {
		out += "." + frac
	}
	return out
}

// AmountInput re-groups what the user typed so far ("500000" -> "5,00,000").
// Input that is not a plain number is returned as typed.
func AmountInput(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return ""
	}
	intPart, _, _ := strings.Cut(raw, ".")
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return GroupIndian(raw)
}

// Timestamp renders t like "Jan 1, 2024, 10:00 AM" in loc.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("Jan 2, 2006, 03:04 PM")
}
