// Package envelope defines the typed wire messages exchanged with realtime
// clients and the schema validation applied before delivery.
//
// Every message travels as an Envelope: a unique id, a type tag from a closed
// set, a UTC timestamp, the target user id, and a payload whose shape is
// determined by the type tag. Producers build envelopes with New, which
// validates the payload against the schema registered for the type. Outbound
// validation failures never drop a message: Fallback wraps the original
// payload in a loosely-typed envelope so delivery can proceed, and the caller
// logs the failure.
//
// Example:
//
//	env, err := envelope.New(userID, envelope.TypeBudgetAlert, envelope.BudgetAlertPayload{
//		BudgetID:       budgetID,
//		Name:           "Groceries",
//		SpentCents:     48210,
//		RemainingCents: 1790,
//		Percentage:     96.4,
//		Priority:       "high",
//		Message:        "Groceries budget almost exhausted",
//	})
//	if err != nil {
//		env = envelope.Fallback(userID, envelope.TypeBudgetAlert, payload)
//	}
package envelope
