package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements decision.Store and decision.FinanceReader
// over a single SQLite database. All decision writes go through it; the
// financial tables are read-only here.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks store reachability for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const decisionColumns = `id, user_id, decision_version, risk_level, command_json,
	warnings_json, suggestions_json, next_action_json, decision_basis_json,
	computed_at, expires_at, is_locked, acknowledged_at`

// ActiveDecision returns the newest unlocked row for the user, nil when
// there is none.
func (r *SQLiteRepository) ActiveDecision(ctx context.Context, userID string) (*core.DecisionState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decision_states
		 WHERE user_id = ? AND is_locked = 0
		 ORDER BY computed_at DESC LIMIT 1`, userID)

	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active decision: %w", err)
	}
	return d, nil
}

// ReplaceDecision locks any unlocked row for the user and inserts the
// fresh one in a single transaction. The partial unique index on
// (user_id) WHERE is_locked = 0 makes a second unlocked row impossible
// even under concurrent writers; the transaction makes the pair
// all-or-nothing, so the old row is never locked without a replacement.
func (r *SQLiteRepository) ReplaceDecision(ctx context.Context, userID string, fresh *core.DecisionState) error {
	commandJSON, err := json.Marshal(fresh.PrimaryCommand)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	warningsJSON, err := json.Marshal(emptyIfNil(fresh.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	suggestionsJSON, err := json.Marshal(fresh.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	nextActionJSON, err := json.Marshal(fresh.NextAction)
	if err != nil {
		return fmt.Errorf("marshal next action: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE decision_states SET is_locked = 1 WHERE user_id = ? AND is_locked = 0`,
		userID); err != nil {
		return fmt.Errorf("lock superseded decision: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_states (id, user_id, decision_version, risk_level,
			command_json, warnings_json, suggestions_json, next_action_json,
			decision_basis_json, computed_at, expires_at, is_locked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		fresh.ID, fresh.UserID, fresh.DecisionVersion, string(fresh.RiskLevel),
		string(commandJSON), string(warningsJSON), string(suggestionsJSON),
		string(nextActionJSON), fresh.DecisionBasis,
		fresh.ComputedAt, fresh.ExpiresAt); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision replace: %w", err)
	}

	slog.InfoContext(ctx, "Decision persisted",
		"decision_id", fresh.ID,
		"user_id", fresh.UserID,
		"risk_level", fresh.RiskLevel)
	return nil
}

func (r *SQLiteRepository) HasLockedDecision(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM decision_states WHERE user_id = ? AND is_locked = 1)`,
		userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query locked decisions: %w", err)
	}
	return exists, nil
}

// Acknowledge stamps acknowledged_at once. Unknown ids and already
// acknowledged rows are no-op successes.
func (r *SQLiteRepository) Acknowledge(ctx context.Context, decisionID string, atMillis int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE decision_states SET acknowledged_at = ?
		 WHERE id = ? AND acknowledged_at IS NULL`,
		atMillis, decisionID)
	if err != nil {
		return fmt.Errorf("acknowledge decision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.WarnContext(ctx, "Acknowledge matched no unacknowledged row", "decision_id", decisionID)
	}
	return nil
}

func (r *SQLiteRepository) LockedDecisions(ctx context.Context, userID string, limit int) ([]core.DecisionState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decision_states
		 WHERE user_id = ? AND is_locked = 1
		 ORDER BY computed_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query decision history: %w", err)
	}
	defer rows.Close()

	var out []core.DecisionState
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision history: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Decision loads a single row by id, for the audit worker. Missing rows
// return nil, not an error: the row may have been pruned since publish.
func (r *SQLiteRepository) Decision(ctx context.Context, decisionID string) (*core.DecisionState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decision_states WHERE id = ?`, decisionID)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}
	return d, nil
}

// PendingAuditDecisions returns decisions not yet exported to the audit
// trail, oldest first.
func (r *SQLiteRepository) PendingAuditDecisions(ctx context.Context, limit int) ([]core.DecisionState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decision_states
		 WHERE audit_exported = 0 AND audit_error = 0
		 ORDER BY computed_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending audit decisions: %w", err)
	}
	defer rows.Close()

	var out []core.DecisionState
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending audit decision: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkAuditExported(ctx context.Context, decisionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE decision_states SET audit_exported = 1 WHERE id = ?`, decisionID); err != nil {
		return fmt.Errorf("mark audit exported: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAuditError(ctx context.Context, decisionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE decision_states SET audit_error = 1 WHERE id = ?`, decisionID); err != nil {
		return fmt.Errorf("mark audit error: %w", err)
	}
	slog.WarnContext(ctx, "Decision marked with audit error", "decision_id", decisionID)
	return nil
}

// --- read-only financial inputs ---

func (r *SQLiteRepository) Accounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, balance_cents FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		var typ string
		if err := rows.Scan(&typ, &a.BalanceCents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, amount_cents, type FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var dateMillis int64
		var typ string
		if err := rows.Scan(&dateMillis, &t.AmountCents, &typ); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date = time.UnixMilli(dateMillis).UTC()
		t.Type = core.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ScheduledBills(ctx context.Context, userID string) ([]core.ScheduledBill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, amount_cents, next_due_date, status FROM scheduled_bills WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query scheduled bills: %w", err)
	}
	defer rows.Close()

	var out []core.ScheduledBill
	for rows.Next() {
		var b core.ScheduledBill
		var dueMillis int64
		if err := rows.Scan(&b.Name, &b.AmountCents, &dueMillis, &b.Status); err != nil {
			return nil, fmt.Errorf("scan scheduled bill: %w", err)
		}
		b.NextDueDate = time.UnixMilli(dueMillis).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ScheduledIncomes(ctx context.Context, userID string) ([]core.ScheduledIncome, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT next_pay_date, status FROM scheduled_income WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query scheduled income: %w", err)
	}
	defer rows.Close()

	var out []core.ScheduledIncome
	for rows.Next() {
		var in core.ScheduledIncome
		var payMillis int64
		if err := rows.Scan(&payMillis, &in.Status); err != nil {
			return nil, fmt.Errorf("scan scheduled income: %w", err)
		}
		in.NextPayDate = time.UnixMilli(payMillis).UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Debts(ctx context.Context, userID string) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, current_balance_cents, apr_percent, minimum_payment_cents, status
		 FROM debts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		var d core.Debt
		if err := rows.Scan(&d.Name, &d.CurrentBalanceCents, &d.APRPercent,
			&d.MinimumPaymentCents, &d.Status); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PlanTier defaults unknown users to the free tier.
func (r *SQLiteRepository) PlanTier(ctx context.Context, userID string) (core.PlanTier, error) {
	var tier string
	err := r.db.QueryRowContext(ctx,
		`SELECT plan_tier FROM users WHERE id = ?`, userID).Scan(&tier)
	if err == sql.ErrNoRows {
		return core.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("query plan tier: %w", err)
	}
	return core.PlanTier(tier), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*core.DecisionState, error) {
	var (
		d               core.DecisionState
		risk            string
		commandJSON     string
		warningsJSON    string
		suggestionsJSON string
		nextActionJSON  string
		locked          int
		acknowledgedAt  sql.NullInt64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.DecisionVersion, &risk, &commandJSON,
		&warningsJSON, &suggestionsJSON, &nextActionJSON, &d.DecisionBasis,
		&d.ComputedAt, &d.ExpiresAt, &locked, &acknowledgedAt); err != nil {
		return nil, err
	}

	d.RiskLevel = core.RiskLevel(risk)
	d.IsLocked = locked != 0
	if acknowledgedAt.Valid {
		d.AcknowledgedAt = acknowledgedAt.Int64
	}
	if err := json.Unmarshal([]byte(commandJSON), &d.PrimaryCommand); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &d.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if err := json.Unmarshal([]byte(suggestionsJSON), &d.Suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	if err := json.Unmarshal([]byte(nextActionJSON), &d.NextAction); err != nil {
		return nil, fmt.Errorf("decode next action: %w", err)
	}
	return &d, nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
