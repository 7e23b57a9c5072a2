// Package core provides the decision engine's domain types and money
// formatting utilities.
//
// All monetary amounts are integer cents; formatting to dollars happens
// only at the edge, when building user-facing command and warning text.
package core

import (
	"fmt"
	"strconv"
)

// FormatDollars renders cents as a dollar string for user-facing text.
//
// Examples:
//
//	FormatDollars(1234)  -> "$12.34"
//	FormatDollars(-500)  -> "-$5.00"
//	FormatDollars(0)     -> "$0.00"
func FormatDollars(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// Dollars returns the dollar value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}
