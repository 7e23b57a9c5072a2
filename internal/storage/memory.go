package storage

import (
	"context"
	"sync"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// MemoryStore is an in-process implementation of the decision ports,
// used for tests and the DATA_BACKEND=memory mode. ReplaceDecision is
// atomic under the store mutex, matching the SQLite contract.
type MemoryStore struct {
	mu        sync.Mutex
	decisions []core.DecisionState

	accounts     map[string][]core.Account
	transactions map[string][]core.Transaction
	bills        map[string][]core.ScheduledBill
	incomes      map[string][]core.ScheduledIncome
	debts        map[string][]core.Debt
	tiers        map[string]core.PlanTier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string][]core.Account),
		transactions: make(map[string][]core.Transaction),
		bills:        make(map[string][]core.ScheduledBill),
		incomes:      make(map[string][]core.ScheduledIncome),
		debts:        make(map[string][]core.Debt),
		tiers:        make(map[string]core.PlanTier),
	}
}

// Seed helpers for tests and the memory backend.

func (s *MemoryStore) SeedAccounts(userID string, accounts ...core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = accounts
}

func (s *MemoryStore) SeedTransactions(userID string, transactions ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[userID] = transactions
}

func (s *MemoryStore) SeedBills(userID string, bills ...core.ScheduledBill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[userID] = bills
}

func (s *MemoryStore) SeedIncomes(userID string, incomes ...core.ScheduledIncome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomes[userID] = incomes
}

func (s *MemoryStore) SeedDebts(userID string, debts ...core.Debt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debts[userID] = debts
}

func (s *MemoryStore) SeedPlanTier(userID string, tier core.PlanTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userID] = tier
}

// --- decision.Store ---

func (s *MemoryStore) ActiveDecision(_ context.Context, userID string) (*core.DecisionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *core.DecisionState
	for i := range s.decisions {
		d := &s.decisions[i]
		if d.UserID != userID || d.IsLocked {
			continue
		}
		if newest == nil || d.ComputedAt > newest.ComputedAt {
			newest = d
		}
	}
	if newest == nil {
		return nil, nil
	}
	out := *newest
	return &out, nil
}

func (s *MemoryStore) ReplaceDecision(_ context.Context, userID string, fresh *core.DecisionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.decisions {
		if s.decisions[i].UserID == userID && !s.decisions[i].IsLocked {
			s.decisions[i].IsLocked = true
		}
	}
	s.decisions = append(s.decisions, *fresh)
	return nil
}

func (s *MemoryStore) HasLockedDecision(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.decisions {
		if s.decisions[i].UserID == userID && s.decisions[i].IsLocked {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Acknowledge(_ context.Context, decisionID string, atMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.decisions {
		if s.decisions[i].ID == decisionID && s.decisions[i].AcknowledgedAt == 0 {
			s.decisions[i].AcknowledgedAt = atMillis
		}
	}
	// Unknown ids succeed silently, same as the SQLite store.
	return nil
}

func (s *MemoryStore) LockedDecisions(_ context.Context, userID string, limit int) ([]core.DecisionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.DecisionState
	for i := len(s.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		d := s.decisions[i]
		if d.UserID == userID && d.IsLocked {
			out = append(out, d)
		}
	}
	return out, nil
}

// UnlockedCount reports how many unlocked rows the user has; test hook
// for the uniqueness invariant.
func (s *MemoryStore) UnlockedCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.decisions {
		if s.decisions[i].UserID == userID && !s.decisions[i].IsLocked {
			n++
		}
	}
	return n
}

// --- decision.FinanceReader ---

func (s *MemoryStore) Accounts(_ context.Context, userID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts[userID]...), nil
}

func (s *MemoryStore) Transactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions[userID]...), nil
}

func (s *MemoryStore) ScheduledBills(_ context.Context, userID string) ([]core.ScheduledBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ScheduledBill(nil), s.bills[userID]...), nil
}

func (s *MemoryStore) ScheduledIncomes(_ context.Context, userID string) ([]core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ScheduledIncome(nil), s.incomes[userID]...), nil
}

func (s *MemoryStore) Debts(_ context.Context, userID string) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Debt(nil), s.debts[userID]...), nil
}

func (s *MemoryStore) PlanTier(_ context.Context, userID string) (core.PlanTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tier, ok := s.tiers[userID]; ok {
		return tier, nil
	}
	return core.PlanFree, nil
}
