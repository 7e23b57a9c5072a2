package amqp

import (
	"encoding/json"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// DecisionComputedMessage announces a freshly computed decision. It is
// deliberately lightweight: the audit worker fetches the full row from
// the store by id.
type DecisionComputedMessage struct {
	DecisionID string         `json:"decisionId"`
	UserID     string         `json:"userId"`
	RiskLevel  core.RiskLevel `json:"riskLevel"`
	ComputedAt int64          `json:"computedAt"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewDecisionComputedMessage(decisionID, userID string, risk core.RiskLevel, computedAtMillis int64) *DecisionComputedMessage {
	return &DecisionComputedMessage{
		DecisionID: decisionID,
		UserID:     userID,
		RiskLevel:  risk,
		ComputedAt: computedAtMillis,
		Timestamp:  time.Now(),
	}
}

func (m *DecisionComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DecisionComputedMessageFromJSON(data []byte) (*DecisionComputedMessage, error) {
	var msg DecisionComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
