package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RiskSafe     RiskLevel = "safe"
	RiskCaution  RiskLevel = "caution"
	RiskWarning  RiskLevel = "warning"
	RiskDanger   RiskLevel = "danger"
	RiskCritical RiskLevel = "critical"
)

const (
	CommandPay    CommandType = "pay"
	CommandSave   CommandType = "save"
	CommandSpend  CommandType = "spend"
	CommandFreeze CommandType = "freeze"
	CommandWait   CommandType = "wait"
)

const (
	PlanFree PlanTier = "free"
	PlanPaid PlanTier = "paid"
)

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCash     AccountType = "cash"
	AccountCredit   AccountType = "credit"
)

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// StatusActive marks bills, income schedules and debts that still count.
const StatusActive = "active"

// DecisionVersion tags rows for future schema migrations.
const DecisionVersion = "v1"

type (
	RiskLevel       string
	CommandType     string
	PlanTier        string
	AccountType     string
	TransactionType string

	Money struct {
		Cents int64
	}

	// Command is the primary directive of a decision.
	Command struct {
		Type        CommandType `json:"type"`
		Text        string      `json:"text"`
		AmountCents int64       `json:"amountCents,omitempty"`
		Target      string      `json:"target,omitempty"`
		Date        string      `json:"date,omitempty"`
	}

	NextAction struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	}

	Suggestion struct {
		Text string `json:"text"`
	}

	// DecisionState is one computed daily decision. At most one row per
	// user is unlocked at any instant; locked rows are historical.
	DecisionState struct {
		ID              string
		UserID          string
		DecisionVersion string
		RiskLevel       RiskLevel
		PrimaryCommand  Command
		Warnings        []string
		Suggestions     []Suggestion
		NextAction      NextAction
		DecisionBasis   string // serialized DecisionBasis, preserved verbatim
		ComputedAt      int64  // ms since epoch
		ExpiresAt       int64  // ms since epoch
		IsLocked        bool
		AcknowledgedAt  int64 // ms since epoch, 0 when never acknowledged
	}

	// DecisionBasis is the "why" behind a decision, stored so the
	// explanation surface can replay it without recomputing.
	DecisionBasis struct {
		CashAvailable       int64  `json:"cashAvailable"`
		DaysUntilPay        int    `json:"daysUntilPay"`
		UpcomingBillsTotal  int64  `json:"upcomingBillsTotal"`
		AvailableAfterBills int64  `json:"availableAfterBills"`
		RunwayDays          int    `json:"runwayDays"`
		DailyBurn           int64  `json:"dailyBurn"`
		ChosenPath          string `json:"chosenPath"`
		NextBillDate        string `json:"nextBillDate,omitempty"`
		NextBillAmount      int64  `json:"nextBillAmount,omitempty"`
		DailyBudget         int64  `json:"dailyBudget"`
	}
)

// Read-only inputs owned by the CRUD collaborators. The decision engine
// never mutates these.
type (
	Account struct {
		Type         AccountType
		BalanceCents int64
	}

	Transaction struct {
		Date        time.Time
		AmountCents int64
		Type        TransactionType
	}

	ScheduledBill struct {
		Name        string
		AmountCents int64
		NextDueDate time.Time
		Status      string
	}

	ScheduledIncome struct {
		NextPayDate time.Time
		Status      string
	}

	Debt struct {
		Name                string
		CurrentBalanceCents int64
		APRPercent          float64
		MinimumPaymentCents int64
		Status              string
	}
)

var (
	ErrEmptyUserID      = errors.New("empty user id")
	ErrInvalidRiskLevel = errors.New("invalid risk level")
	ErrInvalidCommand   = errors.New("invalid command type")
	ErrTooManyWarnings  = errors.New("too many warnings")
	ErrInvalidExpiry    = errors.New("expiry not after computation time")
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskSafe, RiskCaution, RiskWarning, RiskDanger, RiskCritical:
		return true
	}
	return false
}

func (c CommandType) Valid() bool {
	switch c {
	case CommandPay, CommandSave, CommandSpend, CommandFreeze, CommandWait:
		return true
	}
	return false
}

func (d DecisionState) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return ErrEmptyUserID
	}
	if !d.RiskLevel.Valid() {
		return ErrInvalidRiskLevel
	}
	if !d.PrimaryCommand.Type.Valid() {
		return ErrInvalidCommand
	}
	if len(d.Warnings) > 2 {
		return ErrTooManyWarnings
	}
	if d.ExpiresAt <= d.ComputedAt {
		return ErrInvalidExpiry
	}
	return nil
}

// Expired reports whether the decision window has closed at the given instant.
func (d DecisionState) Expired(now time.Time) bool {
	return d.ExpiresAt <= now.UnixMilli()
}

// Acknowledged reports whether the user has explicitly acknowledged the decision.
func (d DecisionState) Acknowledged() bool {
	return d.AcknowledgedAt > 0
}

// Spendable reports whether the account type counts toward available cash.
func (t AccountType) Spendable() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCash:
		return true
	}
	return false
}

func (b ScheduledBill) Active() bool   { return b.Status == StatusActive }
func (i ScheduledIncome) Active() bool { return i.Status == StatusActive }

// Payable reports whether the debt still has a balance worth paying down.
func (d Debt) Payable() bool {
	return d.Status == StatusActive && d.CurrentBalanceCents > 0
}
