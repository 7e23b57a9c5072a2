package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// Chosen-path tags stored in the decision basis.
const (
	pathFreezeShortfall   = "freeze_shortfall"
	pathFreezeUntilPayday = "freeze_until_payday"
	pathPayDebt           = "pay_debt"
	pathSpendWeekly       = "spend_weekly"
)

const (
	// Debt path thresholds.
	safeBufferDays      = 14
	minExtraPaymentGate = 5000 // extra debt payments under $50 are not worth issuing

	// Suggestion thresholds.
	debtSuggestionFloor = 10000 // availableAfterBills above $100
	solidMarginFloor    = 5000  // daily budget above $50
)

const dateLayout = "2006-01-02"

// Position is the resolved cash position a decision is generated from.
type Position struct {
	AsOf               time.Time
	CashAvailable      int64
	DailyBurn          int64
	NextPayday         time.Time
	DaysUntilPay       int
	UpcomingBillsTotal int64
	NextBill           *core.ScheduledBill
	Debts              []core.Debt
}

// Outcome is a fully generated decision, before persistence.
type Outcome struct {
	Risk        core.RiskLevel
	Command     core.Command
	Warnings    []string
	Suggestions []core.Suggestion
	NextAction  core.NextAction
	Basis       core.DecisionBasis
}

// ResolvePosition assembles a Position from the raw read-only inputs.
func ResolvePosition(asOf time.Time, accounts []core.Account, transactions []core.Transaction,
	bills []core.ScheduledBill, incomes []core.ScheduledIncome, debts []core.Debt) Position {

	payday := ResolveNextPayday(incomes, asOf)
	billsTotal, nextBill := ResolveUpcomingBills(bills, payday)
	return Position{
		AsOf:               asOf,
		CashAvailable:      ComputeCashAvailable(accounts, transactions),
		DailyBurn:          ComputeDailyBurn(transactions, asOf),
		NextPayday:         payday,
		DaysUntilPay:       DaysUntilPay(asOf, payday),
		UpcomingBillsTotal: billsTotal,
		NextBill:           nextBill,
		Debts:              debts,
	}
}

// Generate produces the primary command, warnings and a suggestion for
// the position. The branch taken is recorded in the basis as chosenPath.
func Generate(p Position) Outcome {
	availableAfterBills := p.CashAvailable - p.UpcomingBillsTotal
	runway := RunwayDays(availableAfterBills, p.DailyBurn)
	risk := ClassifyRisk(availableAfterBills, runway)

	// Always computed and stored, regardless of the chosen path.
	dailyBudget := availableAfterBills / int64(p.DaysUntilPay)
	if dailyBudget < 0 {
		dailyBudget = 0
	}

	basis := core.DecisionBasis{
		CashAvailable:       p.CashAvailable,
		DaysUntilPay:        p.DaysUntilPay,
		UpcomingBillsTotal:  p.UpcomingBillsTotal,
		AvailableAfterBills: availableAfterBills,
		RunwayDays:          runway,
		DailyBurn:           p.DailyBurn,
		DailyBudget:         dailyBudget,
	}
	if p.NextBill != nil {
		basis.NextBillDate = p.NextBill.NextDueDate.Format(dateLayout)
		basis.NextBillAmount = p.NextBill.AmountCents
	}

	out := Outcome{
		Risk: risk,
		NextAction: core.NextAction{
			Text: "See why",
			URL:  "/decision/why",
		},
	}

	switch risk {
	case core.RiskCritical:
		out.Command, out.Warnings, basis.ChosenPath = criticalCommand(p, availableAfterBills)
	case core.RiskDanger, core.RiskWarning:
		out.Command, out.Warnings, basis.ChosenPath = paydayFreezeCommand(p, risk, availableAfterBills, runway)
	case core.RiskSafe, core.RiskCaution:
		out.Command, out.Warnings, basis.ChosenPath = comfortableCommand(p, availableAfterBills)
	}

	if len(out.Warnings) > 2 {
		out.Warnings = out.Warnings[:2]
	}
	out.Suggestions = suggest(p, risk, availableAfterBills, dailyBudget)
	out.Basis = basis
	return out
}

func criticalCommand(p Position, availableAfterBills int64) (core.Command, []string, string) {
	shortfall := -availableAfterBills
	cmd := core.Command{
		Type:        core.CommandFreeze,
		AmountCents: shortfall,
		Text: fmt.Sprintf("Freeze all spending. Bills due before payday exceed available cash by %s.",
			core.FormatDollars(shortfall)),
	}
	var warnings []string
	if p.NextBill != nil {
		warnings = append(warnings, fmt.Sprintf("%s (%s) due %s is not covered.",
			p.NextBill.Name,
			core.FormatDollars(p.NextBill.AmountCents),
			p.NextBill.NextDueDate.Format(dateLayout)))
	}
	return cmd, warnings, pathFreezeShortfall
}

func paydayFreezeCommand(p Position, risk core.RiskLevel, availableAfterBills int64, runway int) (core.Command, []string, string) {
	dailySafe := availableAfterBills / int64(p.DaysUntilPay)
	if dailySafe < 0 {
		dailySafe = 0
	}

	atRisk := "fixed expenses"
	if p.NextBill != nil {
		atRisk = p.NextBill.Name
	}
	cmd := core.Command{
		Type:        core.CommandFreeze,
		AmountCents: dailySafe,
		Date:        p.NextPayday.Format(dateLayout),
		Text: fmt.Sprintf("Hold spending to %s per day until payday to keep %s covered.",
			core.FormatDollars(dailySafe), atRisk),
	}

	var warnings []string
	if p.NextBill != nil {
		if days := daysUntil(p.AsOf, p.NextBill.NextDueDate); days <= 3 {
			warnings = append(warnings, fmt.Sprintf("%s (%s) due in %d days.",
				p.NextBill.Name, core.FormatDollars(p.NextBill.AmountCents), days))
		}
	}
	if risk == core.RiskDanger {
		warnings = append(warnings, fmt.Sprintf("Only %d days of runway left at your current spend rate.", runway))
	}
	return cmd, warnings, pathFreezeUntilPayday
}

// comfortableCommand handles safe and caution: pay down debt when there
// is a meaningful surplus, otherwise issue a weekly safe-spend amount.
func comfortableCommand(p Position, availableAfterBills int64) (core.Command, []string, string) {
	if target := highestAPRDebt(p.Debts); target != nil {
		extra := extraDebtPayment(p, availableAfterBills)
		if extra > minExtraPaymentGate {
			cmd := core.Command{
				Type:        core.CommandPay,
				AmountCents: extra,
				Target:      target.Name,
				Date:        p.AsOf.Format(dateLayout),
				Text: fmt.Sprintf("Pay %s extra toward %s today. It carries your highest APR (%.1f%%).",
					core.FormatDollars(extra), target.Name, target.APRPercent),
			}
			return cmd, nil, pathPayDebt
		}
	}

	// Weekly safe spend, whether or not a debt exists.
	weeklySafe := availableAfterBills * 7 / int64(p.DaysUntilPay)
	if weeklySafe < 0 {
		weeklySafe = 0
	}
	cmd := core.Command{
		Type:        core.CommandSpend,
		AmountCents: weeklySafe,
		Text:        fmt.Sprintf("Safe to spend up to %s this week.", core.FormatDollars(weeklySafe)),
	}
	var warnings []string
	if p.NextBill != nil {
		if days := daysUntil(p.AsOf, p.NextBill.NextDueDate); days <= 5 {
			warnings = append(warnings, fmt.Sprintf("%s due %s is already covered.",
				p.NextBill.Name, p.NextBill.NextDueDate.Format(dateLayout)))
		}
	}
	return cmd, warnings, pathSpendWeekly
}

// suggest emits at most one suggestion, chosen by priority.
func suggest(p Position, risk core.RiskLevel, availableAfterBills, dailyBudget int64) []core.Suggestion {
	target := highestAPRDebt(p.Debts)

	switch {
	case target != nil && availableAfterBills > debtSuggestionFloor:
		extra := extraDebtPayment(p, availableAfterBills)
		if extra <= 0 {
			extra = availableAfterBills - debtSuggestionFloor
		}
		text := fmt.Sprintf("An extra %s toward %s would speed up your payoff.",
			core.FormatDollars(extra), target.Name)
		if target.MinimumPaymentCents > 0 {
			if months := extra / target.MinimumPaymentCents; months > 0 {
				text = fmt.Sprintf("An extra %s toward %s could shave about %d months off your payoff.",
					core.FormatDollars(extra), target.Name, months)
			}
		}
		return []core.Suggestion{{Text: text}}

	case risk == core.RiskSafe && dailyBudget > solidMarginFloor:
		return []core.Suggestion{{Text: fmt.Sprintf(
			"Solid margin: about %s per day available through payday.", core.FormatDollars(dailyBudget))}}

	case risk == core.RiskCaution && p.NextBill != nil:
		return []core.Suggestion{{Text: fmt.Sprintf(
			"Avoid big purchases until %s.", p.NextBill.NextDueDate.Format(dateLayout))}}

	case dailyBudget == 0 && availableAfterBills > 0:
		return []core.Suggestion{{Text: "Your daily margin is near zero; hold off on non-essentials until payday."}}

	case len(p.Debts) > 0:
		return []core.Suggestion{{Text: fmt.Sprintf(
			"You carry %s in debt; an advisor session could help you plan it down.",
			core.FormatDollars(totalDebtBalance(p.Debts)))}}
	}
	return nil
}

// highestAPRDebt returns the payable debt with the highest APR, nil when
// none qualifies.
func highestAPRDebt(debts []core.Debt) *core.Debt {
	var payable []core.Debt
	for _, d := range debts {
		if d.Payable() {
			payable = append(payable, d)
		}
	}
	if len(payable) == 0 {
		return nil
	}
	sort.SliceStable(payable, func(i, j int) bool {
		return payable[i].APRPercent > payable[j].APRPercent
	})
	return &payable[0]
}

// extraDebtPayment is the surplus left after a fourteen-day burn buffer
// and all active debt minimums.
func extraDebtPayment(p Position, availableAfterBills int64) int64 {
	safeBuffer := p.DailyBurn * safeBufferDays
	var minimumTotal int64
	for _, d := range p.Debts {
		if d.Status == core.StatusActive {
			minimumTotal += d.MinimumPaymentCents
		}
	}
	extra := availableAfterBills - safeBuffer - minimumTotal
	if extra < 0 {
		return 0
	}
	return extra
}

func totalDebtBalance(debts []core.Debt) int64 {
	var total int64
	for _, d := range debts {
		if d.Payable() {
			total += d.CurrentBalanceCents
		}
	}
	return total
}

func daysUntil(asOf, t time.Time) int {
	days := int(math.Ceil(t.Sub(asOf).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
