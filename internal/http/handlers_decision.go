package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/plan"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// handleGetDecision returns today's decision for the caller, computing a
// fresh one when none is active. The response shape depends on the
// caller's plan tier.
func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	force := r.URL.Query().Get("refresh") == "true"

	result, err := s.decisions.GetOrCompute(r.Context(), userID, force)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve decision", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not compute decision")
		return
	}

	tier, err := s.decisions.PlanTier(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve plan tier", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not compute decision")
		return
	}

	writeJSON(w, http.StatusOK, plan.Shape(tier, result.Decision, result.HoursRemaining, result.HasExpiredDecision))
}

type acknowledgeRequest struct {
	DecisionID string `json:"decisionId"`
}

// handleAcknowledge marks a decision as seen. Acknowledging twice is a
// no-op, so the response is 200 either way.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DecisionID) == "" {
		writeError(w, http.StatusBadRequest, "decisionId is required")
		return
	}

	if err := s.decisions.Acknowledge(r.Context(), req.DecisionID); err != nil {
		slog.ErrorContext(r.Context(), "Failed to acknowledge decision", "decision_id", req.DecisionID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not acknowledge decision")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type historyResponse struct {
	Decisions []historyEntry `json:"decisions"`
}

type historyEntry struct {
	DecisionID     string        `json:"decisionId"`
	RiskLevel      string        `json:"riskLevel"`
	PrimaryCommand *core.Command `json:"primaryCommand"`
	ComputedAt     int64         `json:"computedAt"`
	ExpiresAt      int64         `json:"expiresAt"`
	AcknowledgedAt int64         `json:"acknowledgedAt,omitempty"`
}

// handleHistory returns past decisions, newest first. Paid plans only;
// free callers get an upgrade teaser instead of data.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return
	}

	tier, err := s.decisions.PlanTier(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to resolve plan tier", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if tier != core.PlanPaid {
		writeJSON(w, http.StatusOK, map[string]string{
			"teaser": plan.Teaser,
		})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	decisions, err := s.decisions.History(r.Context(), userID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load decision history", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}

	resp := historyResponse{Decisions: make([]historyEntry, 0, len(decisions))}
	for _, d := range decisions {
		cmd := d.PrimaryCommand
		resp.Decisions = append(resp.Decisions, historyEntry{
			DecisionID:     d.ID,
			RiskLevel:      string(d.RiskLevel),
			PrimaryCommand: &cmd,
			ComputedAt:     d.ComputedAt,
			ExpiresAt:      d.ExpiresAt,
			AcknowledgedAt: d.AcknowledgedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
