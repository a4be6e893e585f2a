package envelope

import (
	"fmt"
	"time"
)

// validator is implemented by every payload schema. Validate checks that the
// required fields for the type are present and well-formed; it does not
// reject unknown extra fields.
type validator interface {
	Validate() error
}

// DashboardUpdatePayload carries a partial dashboard refresh. Sections is a
// free-form object built by the external snapshot collaborator, keyed by
// dashboard section name.
type DashboardUpdatePayload struct {
	Sections map[string]any `json:"sections"`
}

func (p *DashboardUpdatePayload) Validate() error {
	if len(p.Sections) == 0 {
		return fmt.Errorf("%w: dashboard update requires at least one section", ErrInvalidPayload)
	}
	return nil
}

// BalanceUpdatePayload reports a new account balance.
type BalanceUpdatePayload struct {
	AccountID     string `json:"account_id"`
	BalanceCents  int64  `json:"balance_cents"`
	PreviousCents int64  `json:"previous_cents"`
	Currency      string `json:"currency"`
}

func (p *BalanceUpdatePayload) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("%w: balance update requires account_id", ErrInvalidPayload)
	}
	if p.Currency == "" {
		return fmt.Errorf("%w: balance update requires currency", ErrInvalidPayload)
	}
	return nil
}

// Transaction is the wire representation of a single ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TransactionPayload is shared by transaction_new and transaction_updated.
type TransactionPayload struct {
	Transaction Transaction `json:"transaction"`
}

func (p *TransactionPayload) Validate() error {
	if p.Transaction.ID == "" {
		return fmt.Errorf("%w: transaction requires id", ErrInvalidPayload)
	}
	if p.Transaction.AccountID == "" {
		return fmt.Errorf("%w: transaction requires account_id", ErrInvalidPayload)
	}
	return nil
}

type TransactionDeletedPayload struct {
	TransactionID string `json:"transaction_id"`
}

func (p *TransactionDeletedPayload) Validate() error {
	if p.TransactionID == "" {
		return fmt.Errorf("%w: transaction delete requires transaction_id", ErrInvalidPayload)
	}
	return nil
}

type BulkImportDonePayload struct {
	ImportID string `json:"import_id"`
	Imported int    `json:"imported"`
	Failed   int    `json:"failed"`
}

func (p *BulkImportDonePayload) Validate() error {
	if p.ImportID == "" {
		return fmt.Errorf("%w: bulk import requires import_id", ErrInvalidPayload)
	}
	if p.Imported < 0 || p.Failed < 0 {
		return fmt.Errorf("%w: bulk import counts must be non-negative", ErrInvalidPayload)
	}
	return nil
}

// BudgetAlertPayload warns the user about budget consumption.
type BudgetAlertPayload struct {
	BudgetID       string  `json:"budget_id"`
	Name           string  `json:"name"`
	SpentCents     int64   `json:"spent_cents"`
	RemainingCents int64   `json:"remaining_cents"`
	Percentage     float64 `json:"percentage"`
	Priority       string  `json:"priority"`
	Message        string  `json:"message"`
}

func (p *BudgetAlertPayload) Validate() error {
	if p.BudgetID == "" {
		return fmt.Errorf("%w: budget alert requires budget_id", ErrInvalidPayload)
	}
	if p.Percentage < 0 {
		return fmt.Errorf("%w: budget alert percentage must be non-negative", ErrInvalidPayload)
	}
	return nil
}

type GoalProgressPayload struct {
	GoalID       string  `json:"goal_id"`
	Name         string  `json:"name"`
	TargetCents  int64   `json:"target_cents"`
	CurrentCents int64   `json:"current_cents"`
	Percentage   float64 `json:"percentage"`
}

func (p *GoalProgressPayload) Validate() error {
	if p.GoalID == "" {
		return fmt.Errorf("%w: goal progress requires goal_id", ErrInvalidPayload)
	}
	if p.TargetCents <= 0 {
		return fmt.Errorf("%w: goal progress requires positive target", ErrInvalidPayload)
	}
	return nil
}

type GoalAchievedPayload struct {
	GoalID     string    `json:"goal_id"`
	Name       string    `json:"name"`
	AchievedAt time.Time `json:"achieved_at"`
}

func (p *GoalAchievedPayload) Validate() error {
	if p.GoalID == "" {
		return fmt.Errorf("%w: goal achieved requires goal_id", ErrInvalidPayload)
	}
	return nil
}

type AccountSyncedPayload struct {
	AccountID    string    `json:"account_id"`
	SyncedAt     time.Time `json:"synced_at"`
	Transactions int       `json:"transactions"`
}

func (p *AccountSyncedPayload) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("%w: account synced requires account_id", ErrInvalidPayload)
	}
	return nil
}

type AccountSyncErrorPayload struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
}

func (p *AccountSyncErrorPayload) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("%w: account sync error requires account_id", ErrInvalidPayload)
	}
	if p.Reason == "" {
		return fmt.Errorf("%w: account sync error requires reason", ErrInvalidPayload)
	}
	return nil
}

type NotificationPayload struct {
	NotificationID string `json:"notification_id"`
	Title          string `json:"title"`
	Body           string `json:"body,omitempty"`
	Category       string `json:"category,omitempty"`
}

func (p *NotificationPayload) Validate() error {
	if p.NotificationID == "" {
		return fmt.Errorf("%w: notification requires notification_id", ErrInvalidPayload)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: notification requires title", ErrInvalidPayload)
	}
	return nil
}

type SystemAlertPayload struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (p *SystemAlertPayload) Validate() error {
	if p.Message == "" {
		return fmt.Errorf("%w: system alert requires message", ErrInvalidPayload)
	}
	return nil
}

type AIInsightPayload struct {
	InsightID  string  `json:"insight_id"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (p *AIInsightPayload) Validate() error {
	if p.InsightID == "" {
		return fmt.Errorf("%w: ai insight requires insight_id", ErrInvalidPayload)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: ai insight requires title", ErrInvalidPayload)
	}
	return nil
}

// BatchUpdatePayload groups several envelopes into one frame so clients can
// apply them atomically.
type BatchUpdatePayload struct {
	Updates []Envelope `json:"updates"`
}

func (p *BatchUpdatePayload) Validate() error {
	if len(p.Updates) == 0 {
		return fmt.Errorf("%w: batch update requires at least one update", ErrInvalidPayload)
	}
	return nil
}

// PingPayload is shared by ping and pong control frames.
type PingPayload struct {
	At time.Time `json:"at,omitempty"`
}

func (p *PingPayload) Validate() error { return nil }

// FullSyncPayload carries the authoritative snapshot pushed after replay on
// reconnect. Snapshot is opaque to the transport; it is produced by the
// external domain collaborator.
type FullSyncPayload struct {
	Snapshot    map[string]any `json:"snapshot"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func (p *FullSyncPayload) Validate() error {
	if p.Snapshot == nil {
		return fmt.Errorf("%w: full sync requires snapshot", ErrInvalidPayload)
	}
	return nil
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *ErrorPayload) Validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: error requires code", ErrInvalidPayload)
	}
	return nil
}

// StatsPayload answers a get_connection_stats client frame.
type StatsPayload struct {
	ActiveConnections int            `json:"active_connections"`
	ConnectedUsers    int            `json:"connected_users"`
	PerUser           map[string]int `json:"per_user,omitempty"`
}

func (p *StatsPayload) Validate() error {
	if p.ActiveConnections < 0 || p.ConnectedUsers < 0 {
		return fmt.Errorf("%w: stats counts must be non-negative", ErrInvalidPayload)
	}
	return nil
}
