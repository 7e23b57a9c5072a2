package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/amqp"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

type fakeAuditStore struct {
	decisions map[string]core.DecisionState
	pending   []string
	exported  []string
	errored   []string
}

func newFakeAuditStore(decisions ...core.DecisionState) *fakeAuditStore {
	s := &fakeAuditStore{decisions: make(map[string]core.DecisionState)}
	for _, d := range decisions {
		s.decisions[d.ID] = d
		s.pending = append(s.pending, d.ID)
	}
	return s
}

func (s *fakeAuditStore) Decision(_ context.Context, decisionID string) (*core.DecisionState, error) {
	d, ok := s.decisions[decisionID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *fakeAuditStore) PendingAuditDecisions(_ context.Context, limit int) ([]core.DecisionState, error) {
	var out []core.DecisionState
	for _, id := range s.pending {
		if len(out) == limit {
			break
		}
		out = append(out, s.decisions[id])
	}
	return out, nil
}

func (s *fakeAuditStore) MarkAuditExported(_ context.Context, decisionID string) error {
	s.exported = append(s.exported, decisionID)
	for i, id := range s.pending {
		if id == decisionID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeAuditStore) MarkAuditError(_ context.Context, decisionID string) error {
	s.errored = append(s.errored, decisionID)
	return nil
}

func testDecision(id string) core.DecisionState {
	return core.DecisionState{
		ID:              id,
		UserID:          "u1",
		DecisionVersion: core.DecisionVersion,
		RiskLevel:       core.RiskSafe,
		PrimaryCommand:  core.Command{Type: core.CommandSpend, Text: "Safe to spend up to $910.00 this week."},
		DecisionBasis:   `{"cashAvailable":250000}`,
		ComputedAt:      1_000,
		ExpiresAt:       86_400_000,
	}
}

func readAuditLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad JSONL line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, rec)
	}
	return lines
}

func TestHandleDecisionComputed(t *testing.T) {
	store := newFakeAuditStore(testDecision("d1"))
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	w := NewAuditWorker(store, logPath, 25)

	msg := amqp.NewDecisionComputedMessage("d1", "u1", core.RiskSafe, 1_000)
	if err := w.HandleDecisionComputed(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	lines := readAuditLines(t, logPath)
	if len(lines) != 1 {
		t.Fatalf("expected 1 audit line, got %d", len(lines))
	}
	if lines[0]["decisionId"] != "d1" || lines[0]["userId"] != "u1" {
		t.Fatalf("unexpected record: %v", lines[0])
	}
	// The stored basis JSON is embedded, not re-encoded as a string.
	basis, ok := lines[0]["decisionBasis"].(map[string]any)
	if !ok || basis["cashAvailable"] != float64(250_000) {
		t.Fatalf("expected embedded basis object, got %v", lines[0]["decisionBasis"])
	}
	if len(store.exported) != 1 || store.exported[0] != "d1" {
		t.Fatalf("expected d1 marked exported, got %v", store.exported)
	}
}

func TestHandleDecisionComputedMissingRow(t *testing.T) {
	store := newFakeAuditStore()
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	w := NewAuditWorker(store, logPath, 25)

	msg := amqp.NewDecisionComputedMessage("gone", "u1", core.RiskSafe, 1_000)
	if err := w.HandleDecisionComputed(context.Background(), msg); err != nil {
		t.Fatalf("missing rows must be skipped, got %v", err)
	}
	if _, err := os.Stat(logPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no line should have been written")
	}
}

func TestProcessPendingDecisions(t *testing.T) {
	store := newFakeAuditStore(testDecision("d1"), testDecision("d2"), testDecision("d3"))
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	w := NewAuditWorker(store, logPath, 2)

	if err := w.ProcessPendingDecisions(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// Batch size caps the sweep.
	if got := len(readAuditLines(t, logPath)); got != 2 {
		t.Fatalf("expected 2 exported lines, got %d", got)
	}
	if len(store.pending) != 1 {
		t.Fatalf("expected 1 decision still pending, got %d", len(store.pending))
	}

	if err := w.ProcessPendingDecisions(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(store.pending) != 0 {
		t.Fatalf("expected backlog drained, got %v", store.pending)
	}
}

func TestStartupCheckUsesLargerBatch(t *testing.T) {
	var decisions []core.DecisionState
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		decisions = append(decisions, testDecision(id))
	}
	store := newFakeAuditStore(decisions...)
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	w := NewAuditWorker(store, logPath, 2)

	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	// Batch of 2, startup multiplies by 5: all six fit.
	if len(store.pending) != 0 {
		t.Fatalf("expected backlog drained on startup, got %v", store.pending)
	}
	if got := len(readAuditLines(t, logPath)); got != 6 {
		t.Fatalf("expected 6 exported lines, got %d", got)
	}
}
