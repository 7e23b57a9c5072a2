package core

import "testing"

func TestFormatDollars(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{1, "$0.01"},
		{100, "$1.00"},
		{1234, "$12.34"},
		{50000, "$500.00"},
		{-500, "-$5.00"},
		{-1, "-$0.01"},
	}
	for _, tc := range cases {
		if got := FormatDollars(tc.cents); got != tc.want {
			t.Fatalf("%d expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyDollars(t *testing.T) {
	if got := (Money{Cents: 1234}).Dollars(); got != 12.34 {
		t.Fatalf("expected 12.34, got %v", got)
	}
}
