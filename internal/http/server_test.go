package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/decision"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()

	mem := storage.NewMemoryStore()
	now := time.Now().UTC()

	for user, tier := range map[string]core.PlanTier{
		"paid-user": core.PlanPaid,
		"free-user": core.PlanFree,
	} {
		mem.SeedPlanTier(user, tier)
		mem.SeedAccounts(user, core.Account{Type: core.AccountChecking, BalanceCents: 250_000})
		mem.SeedTransactions(user,
			core.Transaction{Type: core.TransactionExpense, AmountCents: 90_000, Date: now.AddDate(0, 0, -10)},
		)
		mem.SeedBills(user, core.ScheduledBill{
			Name:        "Rent",
			AmountCents: 120_000,
			NextDueDate: now.AddDate(0, 0, 5),
			Status:      core.StatusActive,
		})
		mem.SeedIncomes(user, core.ScheduledIncome{
			NextPayDate: now.AddDate(0, 0, 10),
			Status:      core.StatusActive,
		})
	}

	svc := decision.NewService(mem, mem, nil, time.UTC)
	srv := NewServer(":0", svc, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, mem
}

func doRequest(srv *Server, method, target, userID, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestGetDecisionRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetDecisionPaid(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision", "paid-user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["decisionId"] == "" || body["decisionId"] == nil {
		t.Fatalf("expected a decision id, got %v", body)
	}
	if body["primaryCommand"] == nil {
		t.Fatalf("paid tier must include the primary command")
	}
	if body["context"] == nil {
		t.Fatalf("paid tier must include context")
	}
	if _, hasTeaser := body["teaser"]; hasTeaser {
		t.Fatalf("paid tier must not carry a teaser")
	}
}

func TestGetDecisionFree(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision", "free-user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["primaryCommand"] != nil {
		t.Fatalf("free tier must strip the primary command, got %v", body["primaryCommand"])
	}
	if body["teaser"] == nil {
		t.Fatalf("free tier must carry the teaser")
	}
	if hours, ok := body["hoursRemaining"].(float64); !ok || hours != 0 {
		t.Fatalf("free tier forces hoursRemaining to 0, got %v", body["hoursRemaining"])
	}
}

func TestGetDecisionCachedAcrossReads(t *testing.T) {
	srv, _ := newTestServer(t)

	first := doRequest(srv, http.MethodGet, "/decision", "paid-user", "")
	second := doRequest(srv, http.MethodGet, "/decision", "paid-user", "")

	var a, b map[string]any
	json.Unmarshal(first.Body.Bytes(), &a)
	json.Unmarshal(second.Body.Bytes(), &b)
	if a["decisionId"] != b["decisionId"] {
		t.Fatalf("repeated reads within the day must hit the same decision: %v vs %v", a["decisionId"], b["decisionId"])
	}

	forced := doRequest(srv, http.MethodGet, "/decision?refresh=true", "paid-user", "")
	var c map[string]any
	json.Unmarshal(forced.Body.Bytes(), &c)
	if c["decisionId"] == a["decisionId"] {
		t.Fatalf("refresh=true must compute a new decision")
	}
}

func TestAcknowledge(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision", "paid-user", "")
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	id, _ := body["decisionId"].(string)
	if id == "" {
		t.Fatalf("missing decision id in %v", body)
	}

	ack := doRequest(srv, http.MethodPost, "/decision/acknowledge", "paid-user", `{"decisionId":"`+id+`"}`)
	if ack.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ack.Code, ack.Body.String())
	}
	var ackBody map[string]bool
	json.Unmarshal(ack.Body.Bytes(), &ackBody)
	if !ackBody["success"] {
		t.Fatalf("expected success, got %s", ack.Body.String())
	}

	// Unknown ids are acknowledged permissively.
	again := doRequest(srv, http.MethodPost, "/decision/acknowledge", "paid-user", `{"decisionId":"nope"}`)
	if again.Code != http.StatusOK {
		t.Fatalf("unknown id: expected 200, got %d", again.Code)
	}
}

func TestAcknowledgeBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := doRequest(srv, http.MethodPost, "/decision/acknowledge", "paid-user", "not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodPost, "/decision/acknowledge", "paid-user", `{"decisionId":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank id: expected 400, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/decision/acknowledge", "paid-user", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: expected 405, got %d", rec.Code)
	}
}

func TestHistoryPaid(t *testing.T) {
	srv, _ := newTestServer(t)

	// Two refreshes lock two decisions into history.
	doRequest(srv, http.MethodGet, "/decision", "paid-user", "")
	doRequest(srv, http.MethodGet, "/decision?refresh=true", "paid-user", "")
	doRequest(srv, http.MethodGet, "/decision?refresh=true", "paid-user", "")

	rec := doRequest(srv, http.MethodGet, "/decision/history", "paid-user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Decisions) != 2 {
		t.Fatalf("expected 2 historical decisions, got %d", len(body.Decisions))
	}
}

func TestHistoryFreeGetsTeaser(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision/history", "free-user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["teaser"] == "" {
		t.Fatalf("free tier history must return an upgrade teaser, got %s", rec.Body.String())
	}
}

func TestHistoryBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := doRequest(srv, http.MethodGet, "/decision/history?limit=0", "paid-user", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: expected 400, got %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/decision/history?limit=abc", "paid-user", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=abc: expected 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/decision", "paid-user", "")
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
