package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1200", "$1,200"},
		{"-35", "-$35"},
		{"0", "$0"},
		{"1234.5", "$1,235"},
		{"-0.4", "$0"},
		{"1000000", "$1,000,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Currency(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestMonthYear(t *testing.T) {
	assert.Equal(t, "March 2024", MonthYear(2024, 3))
	assert.Equal(t, "December 1999", MonthYear(1999, 12))
}
