package envelope_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulsar/core/envelope"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("builds validated envelope", func(t *testing.T) {
		t.Parallel()

		env, err := envelope.New("user-1", envelope.TypeBudgetAlert, envelope.BudgetAlertPayload{
			BudgetID:   "b-1",
			Name:       "Groceries",
			Percentage: 80,
			Priority:   "warning",
			Message:    "80% of budget spent",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, env.ID)
		assert.Equal(t, envelope.TypeBudgetAlert, env.Type)
		assert.Equal(t, "user-1", env.UserID)
		assert.False(t, env.Timestamp.IsZero())

		payload, err := env.DecodePayload()
		require.NoError(t, err)
		alert, ok := payload.(*envelope.BudgetAlertPayload)
		require.True(t, ok)
		assert.Equal(t, "b-1", alert.BudgetID)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.New("user-1", envelope.Type("bogus"), nil)
		assert.ErrorIs(t, err, envelope.ErrUnknownType)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.New("", envelope.TypeNotification, envelope.NotificationPayload{
			NotificationID: "n-1",
			Title:          "hello",
		})
		assert.ErrorIs(t, err, envelope.ErrMissingUser)
	})

	t.Run("rejects payload failing schema validation", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.New("user-1", envelope.TypeBudgetAlert, envelope.BudgetAlertPayload{})
		assert.ErrorIs(t, err, envelope.ErrInvalidPayload)
	})

	t.Run("rejects payload of the wrong shape", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.New("user-1", envelope.TypeBalanceUpdate, map[string]any{
			"account_id": 12345,
		})
		assert.ErrorIs(t, err, envelope.ErrInvalidPayload)
	})
}

func TestNewBroadcast(t *testing.T) {
	t.Parallel()

	env, err := envelope.NewBroadcast(envelope.TypeSystemAlert, envelope.SystemAlertPayload{
		Severity: "info",
		Message:  "maintenance at midnight",
	})
	require.NoError(t, err)
	assert.Empty(t, env.UserID)
	assert.NotEmpty(t, env.ID)
}

func TestFallback(t *testing.T) {
	t.Parallel()

	t.Run("carries invalid payload as-is", func(t *testing.T) {
		t.Parallel()

		env := envelope.Fallback("user-1", envelope.TypeBudgetAlert, map[string]any{
			"unexpected": true,
		})
		assert.NotEmpty(t, env.ID)
		assert.Equal(t, envelope.TypeBudgetAlert, env.Type)
		assert.Equal(t, "user-1", env.UserID)

		var got map[string]any
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		assert.Equal(t, true, got["unexpected"])
	})

	t.Run("stringifies unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		env := envelope.Fallback("user-1", envelope.TypeNotification, make(chan int))
		var got map[string]string
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		assert.Contains(t, got, "raw")
	})
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		env, err := envelope.New("user-1", envelope.TypeTransactionDeleted, envelope.TransactionDeletedPayload{
			TransactionID: "tx-1",
		})
		require.NoError(t, err)

		data, err := env.Encode()
		require.NoError(t, err)

		got, err := envelope.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, env.ID, got.ID)
		assert.Equal(t, env.Type, got.Type)
		assert.Equal(t, env.UserID, got.UserID)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.Decode([]byte("{not json"))
		assert.ErrorIs(t, err, envelope.ErrMalformed)
	})

	t.Run("rejects missing routing metadata", func(t *testing.T) {
		t.Parallel()

		_, err := envelope.Decode([]byte(`{"payload":{}}`))
		assert.ErrorIs(t, err, envelope.ErrMalformed)
	})
}

func TestTypeTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, envelope.TypePing.Transient())
	assert.True(t, envelope.TypePong.Transient())
	assert.True(t, envelope.TypeFullSync.Transient())
	assert.True(t, envelope.TypeError.Transient())
	assert.True(t, envelope.TypeStats.Transient())

	assert.False(t, envelope.TypeNotification.Transient())
	assert.False(t, envelope.TypeBudgetAlert.Transient())
	assert.False(t, envelope.TypeDashboardUpdate.Transient())
}

func TestTypeValid(t *testing.T) {
	t.Parallel()

	assert.True(t, envelope.TypeGoalAchieved.Valid())
	assert.True(t, envelope.TypeBatchUpdate.Valid())
	assert.False(t, envelope.Type("").Valid())
	assert.False(t, envelope.Type("made_up").Valid())
}
