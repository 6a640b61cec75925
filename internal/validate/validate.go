// Package validate holds the local input rules of the payment flow:
// account numbers, amounts and PIN digits. Violations are returned as
// apperr errors carrying the inline message for the offending field.
package validate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
)

// MaxAmount is the largest amount a single payment may carry.
var MaxAmount = decimal.NewFromInt(500000)

var (
	accountPattern = regexp.MustCompile(`^\d{10,12}$`)
	amountPattern  = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	pinPattern     = regexp.MustCompile(`^\d{4}$`)
	digitsPattern  = regexp.MustCompile(`^\d*$`)
)

// AccountNumber accepts exactly 10 to 12 decimal digits.
func AccountNumber(s string) error {
	if strings.TrimSpace(s) == "" {
		return apperr.New(apperr.ErrInvalidAccount, "Account number is required")
	}
	if !accountPattern.MatchString(s) {
		return apperr.New(apperr.ErrInvalidAccount, "Enter a valid 10-12 digit account number")
	}
	return nil
}

// Amount parses user input into a money value. Grouping commas are ignored.
func Amount(s string) (decimal.Decimal, error) {
	raw := StripGrouping(s)
	if raw == "" {
		return decimal.Zero, apperr.New(apperr.ErrInvalidAmount, "Amount is required")
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, apperr.New(apperr.ErrInvalidAmount, "Enter a valid amount")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperr.New(apperr.ErrInvalidAmount, "Enter a valid amount")
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount enforces 0 < d <= MaxAmount with at most two fractional digits.
func CheckAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperr.New(apperr.ErrInvalidAmount, "Amount must be greater than ₹0")
	}
	if d.GreaterThan(MaxAmount) {
		return apperr.New(apperr.ErrInvalidAmount, "Amount cannot exceed ₹5,00,000")
	}
	if !d.Equal(d.Truncate(2)) {
		return apperr.New(apperr.ErrInvalidAmount, "Enter a valid amount")
	}
	return nil
}

// StripGrouping removes surrounding blanks and thousands separators.
func StripGrouping(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// Digits reports whether s consists of ASCII digits only.
func Digits(s string) bool {
	return digitsPattern.MatchString(s)
}

// PIN accepts exactly four decimal digits.
func PIN(s string) error {
	if !pinPattern.MatchString(s) {
		return apperr.New(apperr.ErrInvalidPIN, "Please enter a 4-digit PIN")
	}
	return nil
}
