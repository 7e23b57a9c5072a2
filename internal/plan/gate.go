// Package plan shapes decision responses by subscription tier. Paid
// users see the full decision; free users see the risk level with every
// numeric or contextual specific stripped out.
package plan

import (
	"encoding/json"
	"regexp"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// Teaser is always included in free-tier responses.
const Teaser = "Upgrade to see the exact amounts, timing, and the why behind today's call."

// Response is the plan-gated JSON body for GET /decision. DecisionID is
// present on both tiers so acknowledgment works for everyone.
type Response struct {
	DecisionID         string            `json:"decisionId"`
	RiskLevel          core.RiskLevel    `json:"riskLevel"`
	PrimaryCommand     *core.Command     `json:"primaryCommand,omitempty"`
	Warnings           []string          `json:"warnings"`
	Suggestions        []core.Suggestion `json:"suggestions,omitempty"`
	NextAction         *core.NextAction  `json:"nextAction,omitempty"`
	Context            *Context          `json:"context,omitempty"`
	HoursRemaining     int               `json:"hoursRemaining"`
	HasExpiredDecision bool              `json:"hasExpiredDecision"`
	ComputedAt         int64             `json:"computedAt,omitempty"`
	ExpiresAt          int64             `json:"expiresAt,omitempty"`
	Teaser             string            `json:"teaser,omitempty"`
}

// Context is the paid-tier "why" object, built from the stored basis.
type Context struct {
	CashAvailable      int64  `json:"cashAvailable"`
	DaysUntilPay       int    `json:"daysUntilPay"`
	UpcomingBillsTotal int64  `json:"upcomingBillsTotal"`
	RunwayDays         int    `json:"runwayDays"`
	NextBillDate       string `json:"nextBillDate,omitempty"`
	NextBillAmount     int64  `json:"nextBillAmount,omitempty"`
	DailyBudget        int64  `json:"dailyBudget"`
}

// Free-tier rewrite table. Each warning is matched against the patterns
// in order; the first match decides the rewrite, anything unmatched
// falls back to one generic phrase.
var (
	dueInDaysPattern = regexp.MustCompile(`due in (\d+) days`)
	tightCashPattern = regexp.MustCompile(`runway|not covered|exceed available cash`)
)

const (
	genericTightCash = "Money is tighter than usual right now."
	genericFallback  = "There is something on your account worth a look."
)

// Shape builds the tier-appropriate response for a decision.
// hasExpired is the boolean hasExpiredDecision signal; it passes through
// both tiers unchanged.
func Shape(tier core.PlanTier, d core.DecisionState, hoursRemaining int, hasExpired bool) Response {
	if tier != core.PlanPaid {
		return shapeFree(d, hasExpired)
	}

	resp := Response{
		DecisionID:         d.ID,
		RiskLevel:          d.RiskLevel,
		PrimaryCommand:     &d.PrimaryCommand,
		Warnings:           append([]string(nil), d.Warnings...),
		Suggestions:        d.Suggestions,
		NextAction:         &d.NextAction,
		HoursRemaining:     hoursRemaining,
		HasExpiredDecision: hasExpired,
		ComputedAt:         d.ComputedAt,
		ExpiresAt:          d.ExpiresAt,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	var basis core.DecisionBasis
	if err := json.Unmarshal([]byte(d.DecisionBasis), &basis); err == nil {
		resp.Context = &Context{
			CashAvailable:      basis.CashAvailable,
			DaysUntilPay:       basis.DaysUntilPay,
			UpcomingBillsTotal: basis.UpcomingBillsTotal,
			RunwayDays:         basis.RunwayDays,
			NextBillDate:       basis.NextBillDate,
			NextBillAmount:     basis.NextBillAmount,
			DailyBudget:        basis.DailyBudget,
		}
	}
	return resp
}

func shapeFree(d core.DecisionState, hasExpired bool) Response {
	warnings := make([]string, 0, len(d.Warnings))
	for _, w := range d.Warnings {
		warnings = append(warnings, RedactWarning(w))
	}
	return Response{
		DecisionID:         d.ID,
		RiskLevel:          d.RiskLevel,
		Warnings:           warnings,
		HoursRemaining:     0,
		HasExpiredDecision: hasExpired,
		Teaser:             Teaser,
	}
}

// RedactWarning rewrites one warning through the free-tier table,
// retaining at most the day count of a due-date warning.
func RedactWarning(w string) string {
	if m := dueInDaysPattern.FindStringSubmatch(w); m != nil {
		return "A bill is due in " + m[1] + " days. Upgrade to see which one."
	}
	if tightCashPattern.MatchString(w) {
		return genericTightCash
	}
	return genericFallback
}
