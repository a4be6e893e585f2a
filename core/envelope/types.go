package envelope

// Type tags the payload shape of an Envelope. The set is closed: Valid
// reports whether a tag belongs to it, and schemaFor maps each tag to its
// payload schema.
type Type string

const (
	TypeDashboardUpdate    Type = "dashboard_update"
	TypeBalanceUpdate      Type = "balance_update"
	TypeTransactionNew     Type = "transaction_new"
	TypeTransactionUpdated Type = "transaction_updated"
	TypeTransactionDeleted Type = "transaction_deleted"
	TypeBulkImportDone     Type = "bulk_import_done"
	TypeBudgetAlert        Type = "budget_alert"
	TypeGoalProgress       Type = "goal_progress"
	TypeGoalAchieved       Type = "goal_achieved"
	TypeAccountSynced      Type = "account_synced"
	TypeAccountSyncError   Type = "account_sync_error"
	TypeNotification       Type = "notification"
	TypeSystemAlert        Type = "system_alert"
	TypeAIInsight          Type = "ai_insight"
	TypeBatchUpdate        Type = "batch_update"

	// Control types carry protocol traffic rather than domain updates.
	TypePing     Type = "ping"
	TypePong     Type = "pong"
	TypeFullSync Type = "full_sync"
	TypeError    Type = "error"
	TypeStats    Type = "connection_stats"
)

// Valid reports whether t is a known envelope type.
func (t Type) Valid() bool {
	_, ok := schemaFor(t)
	return ok
}

// Transient reports whether envelopes of this type are ephemeral protocol
// traffic that must never be written to the replay queue.
func (t Type) Transient() bool {
	switch t {
	case TypePing, TypePong, TypeFullSync, TypeError, TypeStats:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// schemaFor returns a zero value of the payload schema for t. The second
// return is false for unknown types.
func schemaFor(t Type) (validator, bool) {
	switch t {
	case TypeDashboardUpdate:
		return &DashboardUpdatePayload{}, true
	case TypeBalanceUpdate:
		return &BalanceUpdatePayload{}, true
	case TypeTransactionNew, TypeTransactionUpdated:
		return &TransactionPayload{}, true
	case TypeTransactionDeleted:
		return &TransactionDeletedPayload{}, true
	case TypeBulkImportDone:
		return &BulkImportDonePayload{}, true
	case TypeBudgetAlert:
		return &BudgetAlertPayload{}, true
	case TypeGoalProgress:
		return &GoalProgressPayload{}, true
	case TypeGoalAchieved:
		return &GoalAchievedPayload{}, true
	case TypeAccountSynced:
		return &AccountSyncedPayload{}, true
	case TypeAccountSyncError:
		return &AccountSyncErrorPayload{}, true
	case TypeNotification:
		return &NotificationPayload{}, true
	case TypeSystemAlert:
		return &SystemAlertPayload{}, true
	case TypeAIInsight:
		return &AIInsightPayload{}, true
	case TypeBatchUpdate:
		return &BatchUpdatePayload{}, true
	case TypePing, TypePong:
		return &PingPayload{}, true
	case TypeFullSync:
		return &FullSyncPayload{}, true
	case TypeError:
		return &ErrorPayload{}, true
	case TypeStats:
		return &StatsPayload{}, true
	}
	return nil, false
}
