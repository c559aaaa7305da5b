package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"0.01", true},
		{"999999", true},
		{"999999.01", false},
		{"-0.01", false},
	}
	for _, tc := range cases {
		err := ValidateAmount(decimal.RequireFromString(tc.in))
		if tc.ok && err != nil {
			t.Fatalf("%s expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s expected error", tc.in)
		}
	}
}

func TestSums(t *testing.T) {
	exp := []ScheduledExpense{{Amount: decimal.RequireFromString("0.10")}, {Amount: decimal.RequireFromString("0.20")}}
	if got := SumExpenses(exp); !got.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("SumExpenses = %s", got)
	}
	inc := []ScheduledIncome{{Amount: decimal.NewFromInt(5)}}
	if got := SumIncome(inc); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("SumIncome = %s", got)
	}
	if got := SumIncome(nil); !got.IsZero() {
		t.Fatalf("SumIncome(nil) = %s", got)
	}
}
