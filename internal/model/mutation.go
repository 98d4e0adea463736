package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AppliedMutation is the gateway-side record of a mutation that was accepted
// through the mutation API. The idempotency key is unique per tenant, so a
// replayed delivery finds the original row instead of applying twice.
type AppliedMutation struct {
	ID             uuid.UUID       `db:"id"`
	TenantID       string          `db:"tenant_id"`
	IdempotencyKey string          `db:"idempotency_key"`
	Endpoint       string          `db:"endpoint"`
	Method         Method          `db:"method"`
	Payload        json.RawMessage `db:"payload"`
	Response       json.RawMessage `db:"response"`
	AppliedAt      time.Time       `db:"applied_at"`
}

// MutationResponse is what the gateway returns to the replay engine. Applied
// is false on an idempotent replay of an already-accepted mutation.
type MutationResponse struct {
	ID      string          `json:"id"`
	Applied bool            `json:"applied"`
	Entity  json.RawMessage `json:"entity,omitempty"`
}
