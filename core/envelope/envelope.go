package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the unit of realtime delivery: routing metadata wrapped around
// a type-tagged payload. Envelopes are immutable once built.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
}

// New builds a validated envelope for userID. The payload is marshaled and
// checked against the schema registered for t; a payload of the wrong shape
// returns ErrInvalidPayload wrapped with detail.
func New(userID string, t Type, payload any) (Envelope, error) {
	if userID == "" {
		return Envelope{}, ErrMissingUser
	}

	schema, ok := schemaFor(t)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(raw, schema); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(); err != nil {
		return Envelope{}, err
	}

	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Payload:   raw,
	}, nil
}

// NewBroadcast builds a validated envelope addressed to every user. The
// user_id field stays empty; fan-out resolves the actual targets.
func NewBroadcast(t Type, payload any) (Envelope, error) {
	schema, ok := schemaFor(t)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(raw, schema); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(); err != nil {
		return Envelope{}, err
	}

	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Fallback builds a loosely-typed envelope when validation fails. Delivery is
// prioritized over strict typing: the original payload is carried as-is under
// the original type tag, with id, timestamp, and user filled in. A payload
// that cannot be marshaled at all is stringified under a "raw" key.
func Fallback(userID string, t Type, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"raw": fmt.Sprint(payload)})
	}

	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Payload:   raw,
	}
}

// Decode parses wire data into an Envelope. It requires the routing metadata
// to be present but does not re-validate the payload shape; persisted and
// relayed envelopes were validated when they were built.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.ID == "" || env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing id or type", ErrMalformed)
	}
	return env, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the payload into the schema struct for the
// envelope's type and returns it. Fallback envelopes may fail here; callers
// treat that the same as an unknown shape.
func (e Envelope) DecodePayload() (any, error) {
	schema, ok := schemaFor(e.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	if err := json.Unmarshal(e.Payload, schema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return schema, nil
}
