package engine

import "github.com/bugfreewaldo/budget-copilot-sub003/internal/core"

// RunwayUnconstrained is the sentinel runway when there is no measurable
// burn rate: runway alone never pushes such a user past "safe".
const RunwayUnconstrained = 999

// RunwayDays is how many days the available funds (after upcoming bills)
// cover at the recent daily spend rate.
func RunwayDays(availableAfterBills, dailyBurn int64) int {
	if dailyBurn <= 0 {
		return RunwayUnconstrained
	}
	if availableAfterBills < 0 {
		availableAfterBills = 0
	}
	return int(availableAfterBills / dailyBurn)
}

// ClassifyRisk maps a cash position to a risk level. Predicates are
// ordered, first match wins:
//
//	availableAfterBills < 0  -> critical
//	runway < 3 days          -> danger
//	runway < 7 days          -> warning
//	runway < 14 days         -> caution
//	otherwise                -> safe
func ClassifyRisk(availableAfterBills int64, runwayDays int) core.RiskLevel {
	switch {
	case availableAfterBills < 0:
		return core.RiskCritical
	case runwayDays < 3:
		return core.RiskDanger
	case runwayDays < 7:
		return core.RiskWarning
	case runwayDays < 14:
		return core.RiskCaution
	default:
		return core.RiskSafe
	}
}
