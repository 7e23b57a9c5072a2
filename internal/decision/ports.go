package decision

import (
	"context"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// Ports for outbound adapters.
type (
	// Store persists decision rows. Implementations must make
	// ReplaceDecision atomic: the old unlocked row (if any) is locked
	// and the fresh row inserted in one all-or-nothing step, so that at
	// most one unlocked row per user ever exists.
	Store interface {
		// ActiveDecision returns the newest unlocked row for the user,
		// or nil when there is none.
		ActiveDecision(ctx context.Context, userID string) (*core.DecisionState, error)

		// ReplaceDecision locks any unlocked row for the user and
		// inserts fresh (unlocked) in a single atomic operation.
		ReplaceDecision(ctx context.Context, userID string, fresh *core.DecisionState) error

		// HasLockedDecision reports whether any historical row exists
		// for the user.
		HasLockedDecision(ctx context.Context, userID string) (bool, error)

		// Acknowledge stamps acknowledgedAt on the row. Unknown ids and
		// repeat calls are no-op successes.
		Acknowledge(ctx context.Context, decisionID string, atMillis int64) error

		// LockedDecisions returns historical rows, newest first.
		LockedDecisions(ctx context.Context, userID string, limit int) ([]core.DecisionState, error)
	}

	// FinanceReader exposes the read-only financial records owned by the
	// CRUD collaborators. The decision engine never writes through it.
	FinanceReader interface {
		Accounts(ctx context.Context, userID string) ([]core.Account, error)
		Transactions(ctx context.Context, userID string) ([]core.Transaction, error)
		ScheduledBills(ctx context.Context, userID string) ([]core.ScheduledBill, error)
		ScheduledIncomes(ctx context.Context, userID string) ([]core.ScheduledIncome, error)
		Debts(ctx context.Context, userID string) ([]core.Debt, error)
		PlanTier(ctx context.Context, userID string) (core.PlanTier, error)
	}

	// EventPublisher announces freshly computed decisions. Publishing is
	// best-effort; failures never fail the request.
	EventPublisher interface {
		PublishDecisionComputed(ctx context.Context, decisionID, userID string, risk core.RiskLevel, computedAtMillis int64) error
	}
)
