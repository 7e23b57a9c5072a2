package engine

import (
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// burnWindowDays is the trailing window used for the daily burn rate.
const burnWindowDays = 30

// ComputeCashAvailable sums the balances of spendable accounts
// (checking, savings, cash).
//
// A sum of exactly zero with at least one transaction on record falls
// back to total income minus total expense over all transactions: a zero
// balance is otherwise indistinguishable from a balance the user never
// set. The fallback is a deliberate heuristic, not a bug.
func ComputeCashAvailable(accounts []core.Account, transactions []core.Transaction) int64 {
	var cash int64
	for _, a := range accounts {
		if a.Type.Spendable() {
			cash += a.BalanceCents
		}
	}
	if cash != 0 || len(transactions) == 0 {
		return cash
	}

	var income, expense int64
	for _, t := range transactions {
		switch t.Type {
		case core.TransactionIncome:
			income += t.AmountCents
		case core.TransactionExpense:
			expense += t.AmountCents
		}
	}
	return income - expense
}

// ComputeDailyBurn returns the average daily expense over the trailing
// 30 days, floored to whole cents. Zero if there are no expenses in the
// window.
func ComputeDailyBurn(transactions []core.Transaction, asOf time.Time) int64 {
	cutoff := asOf.AddDate(0, 0, -burnWindowDays)

	var spent int64
	for _, t := range transactions {
		if t.Type != core.TransactionExpense {
			continue
		}
		if t.Date.Before(cutoff) || t.Date.After(asOf) {
			continue
		}
		spent += t.AmountCents
	}
	return spent / burnWindowDays
}
