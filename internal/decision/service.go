// Package decision implements the decision cache manager: fetch-or-
// compute with daily expiry, locking of superseded rows, forced refresh
// and acknowledgment.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/cache"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/engine"
)

const (
	tierCacheSize = 1024
	tierCacheTTL  = 5 * time.Minute
)

// Service serializes the per-user read-then-write sequence and owns the
// decision lifecycle. Conceptual states per user: NONE (no row), ACTIVE
// (unlocked, unexpired), EXPIRED (unlocked, past expiry) and LOCKED
// (historical). ACTIVE and EXPIRED are the same row; the distinction is
// computed from expiresAt, never stored.
type Service struct {
	store   Store
	finance FinanceReader
	events  EventPublisher // may be nil

	tierCache *cache.LRU[core.PlanTier]
	loc       *time.Location
	now       func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// Result is a decision plus the signals derived at read time.
type Result struct {
	Decision           core.DecisionState
	HoursRemaining     int
	HasExpiredDecision bool
}

// NewService wires the cache manager. events may be nil when no broker
// is configured; loc is the timezone whose calendar day bounds expiry.
func NewService(store Store, finance FinanceReader, events EventPublisher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		finance:   finance,
		events:    events,
		tierCache: cache.New[core.PlanTier](tierCacheSize, tierCacheTTL),
		loc:       loc,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// TierCache exposes the plan-tier cache for cleanup registration.
func (s *Service) TierCache() *cache.LRU[core.PlanTier] {
	return s.tierCache
}

// GetOrCompute returns the user's current decision, computing a fresh
// one when none exists, the existing one has expired, or forceRefresh is
// set. Two concurrent calls for the same user that both observe an
// expired row would otherwise both lock it and insert, so the whole
// read-then-write sequence runs under a per-user mutex; the store's
// atomic ReplaceDecision backs that up across processes.
func (s *Service) GetOrCompute(ctx context.Context, userID string, forceRefresh bool) (Result, error) {
	if userID == "" {
		return Result{}, core.ErrEmptyUserID
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.store.ActiveDecision(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load active decision: %w", err)
	}

	now := s.now()
	if current != nil && !current.Expired(now) && !forceRefresh {
		slog.DebugContext(ctx, "Decision cache hit", "user_id", userID, "decision_id", current.ID)
		return s.result(ctx, *current, now)
	}

	fresh, err := s.compute(ctx, userID, now)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.ReplaceDecision(ctx, userID, fresh); err != nil {
		return Result{}, fmt.Errorf("replace decision: %w", err)
	}

	slog.InfoContext(ctx, "Decision computed",
		"user_id", userID,
		"decision_id", fresh.ID,
		"risk_level", fresh.RiskLevel,
		"command_type", fresh.PrimaryCommand.Type,
		"forced", forceRefresh)

	if s.events != nil {
		if err := s.events.PublishDecisionComputed(ctx, fresh.ID, userID, fresh.RiskLevel, fresh.ComputedAt); err != nil {
			// The decision is already persisted; the audit sweep picks
			// up anything the broker misses.
			slog.ErrorContext(ctx, "Failed to publish decision event",
				"decision_id", fresh.ID, "error", err)
		}
	}

	return s.result(ctx, *fresh, now)
}

// Acknowledge stamps the decision. Repeat calls and unknown ids succeed;
// the permissive unknown-id behavior is deliberate.
func (s *Service) Acknowledge(ctx context.Context, decisionID string) error {
	if err := s.store.Acknowledge(ctx, decisionID, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("acknowledge decision: %w", err)
	}
	return nil
}

// History returns the user's locked (historical) decisions, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]core.DecisionState, error) {
	rows, err := s.store.LockedDecisions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load decision history: %w", err)
	}
	return rows, nil
}

// PlanTier resolves the user's subscription tier through a short-lived
// cache so cache-hit decision reads stay single-roundtrip.
func (s *Service) PlanTier(ctx context.Context, userID string) (core.PlanTier, error) {
	if tier, ok := s.tierCache.Get(userID); ok {
		return tier, nil
	}
	tier, err := s.finance.PlanTier(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load plan tier: %w", err)
	}
	s.tierCache.Set(userID, tier)
	return tier, nil
}

// compute runs the full pipeline: load inputs, resolve the cash
// position, generate the decision. Nothing is persisted here.
func (s *Service) compute(ctx context.Context, userID string, now time.Time) (*core.DecisionState, error) {
	var (
		accounts     []core.Account
		transactions []core.Transaction
		bills        []core.ScheduledBill
		incomes      []core.ScheduledIncome
		debts        []core.Debt
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { accounts, err = s.finance.Accounts(gctx, userID); return })
	g.Go(func() (err error) { transactions, err = s.finance.Transactions(gctx, userID); return })
	g.Go(func() (err error) { bills, err = s.finance.ScheduledBills(gctx, userID); return })
	g.Go(func() (err error) { incomes, err = s.finance.ScheduledIncomes(gctx, userID); return })
	g.Go(func() (err error) { debts, err = s.finance.Debts(gctx, userID); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load financial inputs: %w", err)
	}

	position := engine.ResolvePosition(now, accounts, transactions, bills, incomes, debts)
	outcome := engine.Generate(position)

	basisJSON, err := json.Marshal(outcome.Basis)
	if err != nil {
		return nil, fmt.Errorf("serialize decision basis: %w", err)
	}

	fresh := &core.DecisionState{
		ID:              uuid.NewString(),
		UserID:          userID,
		DecisionVersion: core.DecisionVersion,
		RiskLevel:       outcome.Risk,
		PrimaryCommand:  outcome.Command,
		Warnings:        outcome.Warnings,
		Suggestions:     outcome.Suggestions,
		NextAction:      outcome.NextAction,
		DecisionBasis:   string(basisJSON),
		ComputedAt:      now.UnixMilli(),
		ExpiresAt:       endOfDay(now, s.loc).UnixMilli(),
	}
	if err := fresh.Validate(); err != nil {
		return nil, fmt.Errorf("generated invalid decision: %w", err)
	}
	return fresh, nil
}

func (s *Service) result(ctx context.Context, d core.DecisionState, now time.Time) (Result, error) {
	hasExpired, err := s.store.HasLockedDecision(ctx, d.UserID)
	if err != nil {
		// A missing signal is not worth failing the read.
		slog.WarnContext(ctx, "Failed to derive hasExpiredDecision", "user_id", d.UserID, "error", err)
		hasExpired = false
	}
	return Result{
		Decision:           d,
		HoursRemaining:     hoursRemaining(d.ExpiresAt, now),
		HasExpiredDecision: hasExpired,
	}, nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// endOfDay is 23:59:59.999 of now's calendar day in loc.
func endOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999_000_000, loc)
}

func hoursRemaining(expiresAtMillis int64, now time.Time) int {
	remaining := expiresAtMillis - now.UnixMilli()
	if remaining <= 0 {
		return 0
	}
	const hourMillis = int64(time.Hour / time.Millisecond)
	return int((remaining + hourMillis - 1) / hourMillis)
}
