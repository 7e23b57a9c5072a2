// Package worker exports computed decisions to an append-only JSONL
// audit trail. Exports are normally driven by AMQP events; a startup
// check and a periodic sweep cover rows whose event was lost.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/amqp"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
)

// AuditStore is the slice of the decision store the worker needs.
type AuditStore interface {
	Decision(ctx context.Context, decisionID string) (*core.DecisionState, error)
	PendingAuditDecisions(ctx context.Context, limit int) ([]core.DecisionState, error)
	MarkAuditExported(ctx context.Context, decisionID string) error
	MarkAuditError(ctx context.Context, decisionID string) error
}

// AuditWorker appends exported decisions to a JSONL file, one object
// per line. Writes are serialized so concurrent exports cannot
// interleave lines.
type AuditWorker struct {
	store     AuditStore
	logPath   string
	batchSize int

	mu sync.Mutex
}

func NewAuditWorker(store AuditStore, logPath string, batchSize int) *AuditWorker {
	return &AuditWorker{
		store:     store,
		logPath:   logPath,
		batchSize: batchSize,
	}
}

// auditRecord is the JSONL line format. Raw JSON columns are embedded
// as-is so the line carries the exact decision the user was shown.
type auditRecord struct {
	DecisionID      string            `json:"decisionId"`
	UserID          string            `json:"userId"`
	DecisionVersion string            `json:"decisionVersion"`
	RiskLevel       string            `json:"riskLevel"`
	PrimaryCommand  core.Command      `json:"primaryCommand"`
	Warnings        []string          `json:"warnings"`
	Suggestions     []core.Suggestion `json:"suggestions"`
	DecisionBasis   json.RawMessage   `json:"decisionBasis"`
	ComputedAt      int64             `json:"computedAt"`
	ExpiresAt       int64             `json:"expiresAt"`
	IsLocked        bool              `json:"isLocked"`
	AcknowledgedAt  int64             `json:"acknowledgedAt,omitempty"`
}

// HandleDecisionComputed processes a single decision.computed event.
func (w *AuditWorker) HandleDecisionComputed(ctx context.Context, msg *amqp.DecisionComputedMessage) error {
	slog.InfoContext(ctx, "Processing decision event",
		"decision_id", msg.DecisionID,
		"user_id", msg.UserID)

	d, err := w.store.Decision(ctx, msg.DecisionID)
	if err != nil {
		return fmt.Errorf("load decision %s: %w", msg.DecisionID, err)
	}
	if d == nil {
		// Row superseded and pruned between publish and consume.
		slog.WarnContext(ctx, "Decision not found, skipping export", "decision_id", msg.DecisionID)
		return nil
	}

	if err := w.export(ctx, *d); err != nil {
		if markErr := w.store.MarkAuditError(ctx, d.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark audit error", "decision_id", d.ID, "error", markErr)
		}
		return fmt.Errorf("export decision %s: %w", d.ID, err)
	}

	if err := w.store.MarkAuditExported(ctx, d.ID); err != nil {
		// The line is already written; log and move on.
		slog.ErrorContext(ctx, "Failed to mark decision exported", "decision_id", d.ID, "error", err)
	}
	return nil
}

// ProcessPendingDecisions exports decisions whose event was never
// consumed. Called periodically as a backup for lost AMQP messages.
func (w *AuditWorker) ProcessPendingDecisions(ctx context.Context) error {
	pending, err := w.store.PendingAuditDecisions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending decisions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending decisions", "count", len(pending))

	for _, d := range pending {
		if err := w.export(ctx, d); err != nil {
			slog.ErrorContext(ctx, "Failed to export decision", "decision_id", d.ID, "error", err)
			if markErr := w.store.MarkAuditError(ctx, d.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark audit error", "decision_id", d.ID, "error", markErr)
			}
			continue
		}
		if err := w.store.MarkAuditExported(ctx, d.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark decision exported", "decision_id", d.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains the pending backlog accumulated while the worker
// was down. Uses a larger batch than the periodic sweep.
func (w *AuditWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.PendingAuditDecisions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending decisions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending decisions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending decisions on startup, processing...",
		"count", len(pending))

	exported := 0
	errored := 0
	for _, d := range pending {
		if err := w.export(ctx, d); err != nil {
			slog.ErrorContext(ctx, "Failed to export decision during startup",
				"decision_id", d.ID, "error", err)
			if markErr := w.store.MarkAuditError(ctx, d.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark audit error", "decision_id", d.ID, "error", markErr)
			}
			errored++
			continue
		}
		if err := w.store.MarkAuditExported(ctx, d.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark decision exported", "decision_id", d.ID, "error", err)
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup audit check completed",
		"total", len(pending),
		"exported", exported,
		"errors", errored)
	return nil
}

func (w *AuditWorker) export(ctx context.Context, d core.DecisionState) error {
	rec := auditRecord{
		DecisionID:      d.ID,
		UserID:          d.UserID,
		DecisionVersion: d.DecisionVersion,
		RiskLevel:       string(d.RiskLevel),
		PrimaryCommand:  d.PrimaryCommand,
		Warnings:        d.Warnings,
		Suggestions:     d.Suggestions,
		DecisionBasis:   json.RawMessage(d.DecisionBasis),
		ComputedAt:      d.ComputedAt,
		ExpiresAt:       d.ExpiresAt,
		IsLocked:        d.IsLocked,
		AcknowledgedAt:  d.AcknowledgedAt,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.logPath), 0o755); err != nil {
		return fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	slog.InfoContext(ctx, "Decision exported to audit trail",
		"decision_id", d.ID,
		"user_id", d.UserID,
		"risk_level", d.RiskLevel)
	return nil
}
