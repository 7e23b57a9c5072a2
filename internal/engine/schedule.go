package engine

import (
	"math"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// defaultPaydayOffset is assumed when no active income schedule exists.
const defaultPaydayOffset = 14 * 24 * time.Hour

// ResolveNextPayday picks the first active income schedule's next pay
// date. Missing schedule data degrades gracefully: with no active
// schedule the payday defaults to fourteen days out.
func ResolveNextPayday(incomes []core.ScheduledIncome, asOf time.Time) time.Time {
	for _, in := range incomes {
		if in.Active() {
			return in.NextPayDate
		}
	}
	return asOf.Add(defaultPaydayOffset)
}

// ResolveUpcomingBills returns the total of active bills due on or
// before the next payday, and the earliest of them (nil when none).
func ResolveUpcomingBills(bills []core.ScheduledBill, nextPayday time.Time) (total int64, next *core.ScheduledBill) {
	for i := range bills {
		b := bills[i]
		if !b.Active() || b.NextDueDate.After(nextPayday) {
			continue
		}
		total += b.AmountCents
		if next == nil || b.NextDueDate.Before(next.NextDueDate) {
			next = &bills[i]
		}
	}
	return total, next
}

// DaysUntilPay is the number of days until payday, rounded up and never
// less than one. A same-day payday still leaves one day of budget.
func DaysUntilPay(asOf, nextPayday time.Time) int {
	days := int(math.Ceil(nextPayday.Sub(asOf).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
