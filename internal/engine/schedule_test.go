package engine

import (
	"testing"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

func TestResolveNextPayday(t *testing.T) {
	payday := asOf.AddDate(0, 0, 6)
	incomes := []core.ScheduledIncome{
		{NextPayDate: asOf.AddDate(0, 0, 3), Status: "paused"},
		{NextPayDate: payday, Status: core.StatusActive},
	}
	if got := ResolveNextPayday(incomes, asOf); !got.Equal(payday) {
		t.Fatalf("expected %v, got %v", payday, got)
	}
}

func TestResolveNextPaydayDefaultsFourteenDays(t *testing.T) {
	want := asOf.Add(14 * 24 * time.Hour)
	if got := ResolveNextPayday(nil, asOf); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolveUpcomingBills(t *testing.T) {
	payday := asOf.AddDate(0, 0, 10)
	bills := []core.ScheduledBill{
		{Name: "Rent", AmountCents: 120_000, NextDueDate: asOf.AddDate(0, 0, 5), Status: core.StatusActive},
		{Name: "Power", AmountCents: 8_000, NextDueDate: asOf.AddDate(0, 0, 2), Status: core.StatusActive},
		{Name: "Gym", AmountCents: 3_000, NextDueDate: asOf.AddDate(0, 0, 20), Status: core.StatusActive}, // after payday
		{Name: "Old sub", AmountCents: 1_000, NextDueDate: asOf.AddDate(0, 0, 1), Status: "cancelled"},
	}

	total, next := ResolveUpcomingBills(bills, payday)
	if total != 128_000 {
		t.Fatalf("expected total 128000, got %d", total)
	}
	if next == nil || next.Name != "Power" {
		t.Fatalf("expected earliest bill Power, got %+v", next)
	}
}

func TestResolveUpcomingBillsNone(t *testing.T) {
	total, next := ResolveUpcomingBills(nil, asOf.AddDate(0, 0, 10))
	if total != 0 || next != nil {
		t.Fatalf("expected zero bills, got total=%d next=%+v", total, next)
	}
}

func TestDaysUntilPay(t *testing.T) {
	cases := []struct {
		payday time.Time
		want   int
	}{
		{asOf.AddDate(0, 0, 10), 10},
		{asOf.Add(36 * time.Hour), 2}, // partial day rounds up
		{asOf, 1},                     // same-day payday still budgets one day
		{asOf.AddDate(0, 0, -1), 1},   // stale schedule clamps to one
	}
	for i, tc := range cases {
		if got := DaysUntilPay(asOf, tc.payday); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}
