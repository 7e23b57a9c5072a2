package amqp

import (
	"testing"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

func TestNewDecisionComputedMessage(t *testing.T) {
	msg := NewDecisionComputedMessage("dec-1", "user-1", core.RiskDanger, 1700000000000)

	if msg.DecisionID != "dec-1" || msg.UserID != "user-1" {
		t.Errorf("unexpected ids: %+v", msg)
	}
	if msg.RiskLevel != core.RiskDanger {
		t.Errorf("RiskLevel = %v, want danger", msg.RiskLevel)
	}
	if msg.ComputedAt != 1700000000000 {
		t.Errorf("ComputedAt = %v, want 1700000000000", msg.ComputedAt)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestDecisionComputedMessage_JSONRoundTrip(t *testing.T) {
	msg := &DecisionComputedMessage{
		DecisionID: "dec-42",
		UserID:     "user-7",
		RiskLevel:  core.RiskSafe,
		ComputedAt: 1700000000000,
		Timestamp:  time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := DecisionComputedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("DecisionComputedMessageFromJSON() error = %v", err)
	}
	if parsed.DecisionID != msg.DecisionID || parsed.RiskLevel != msg.RiskLevel {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestDecisionComputedMessage_InvalidJSON(t *testing.T) {
	if _, err := DecisionComputedMessageFromJSON([]byte(`{"computedAt": "nope"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
