package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
)

func TestAccountNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr bool
		wantMsg string
	}{
		{name: "ten_digits", in: "1234567890"},
		{name: "twelve_digits", in: "123456789012"},
		{name: "nine_digits", in: "123456789", wantErr: true, wantMsg: "Enter a valid 10-12 digit account number"},
		{name: "thirteen_digits", in: "1234567890123", wantErr: true},
		{name: "letters", in: "12345abcde", wantErr: true},
		{name: "padded", in: " 1234567890", wantErr: true},
		{name: "blank", in: "   ", wantErr: true, wantMsg: "Account number is required"},
		{name: "unicode_digits", in: "١٢٣٤٥٦٧٨٩٠", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := AccountNumber(tt.in)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrInvalidAccount)
			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, apperr.Message(err))
			}
		})
	}
}

func TestAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "integer", in: "250", want: "250"},
		{name: "two_decimals", in: "250.50", want: "250.5"},
		{name: "one_decimal", in: "0.5", want: "0.5"},
		{name: "upper_bound", in: "500000", want: "500000"},
		{name: "upper_bound_decimals", in: "500000.00", want: "500000"},
		{name: "grouped_en_in", in: "5,00,000", want: "500000"},
		{name: "over_limit_cent", in: "500000.01", wantErr: true},
		{name: "over_limit", in: "600000", wantErr: true},
		{name: "zero", in: "0", wantErr: true},
		{name: "zero_decimals", in: "0.00", wantErr: true},
		{name: "three_decimals", in: "1.005", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
		{name: "exponent", in: "1e3", wantErr: true},
		{name: "trailing_dot", in: "10.", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Amount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, apperr.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCheckAmount(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckAmount(decimal.RequireFromString("0.01")))
	require.NoError(t, CheckAmount(MaxAmount))

	err := CheckAmount(decimal.RequireFromString("500000.01"))
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
	require.Equal(t, "Amount cannot exceed ₹5,00,000", apperr.Message(err))

	require.ErrorIs(t, CheckAmount(decimal.Zero), apperr.ErrInvalidAmount)
	require.ErrorIs(t, CheckAmount(decimal.RequireFromString("0.001")), apperr.ErrInvalidAmount)
}

func TestDigits(t *testing.T) {
	t.Parallel()

	require.True(t, Digits(""))
	require.True(t, Digits("0123"))
	require.False(t, Digits("12a"))
	require.False(t, Digits("1 2"))
}

func TestPIN(t *testing.T) {
	t.Parallel()

	require.NoError(t, PIN("0000"))
	for _, bad := range []string{"", "123", "12345", "12a4", strings.Repeat(" ", 4)} {
		err := PIN(bad)
		if !errors.Is(err, apperr.ErrInvalidPIN) {
			t.Fatalf("PIN(%q): expected ErrInvalidPIN, got %v", bad, err)
		}
	}
}
