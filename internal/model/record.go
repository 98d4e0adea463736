package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodCreate Method = "CREATE"
	MethodUpdate Method = "UPDATE"
	MethodDelete Method = "DELETE"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCreate, MethodUpdate, MethodDelete:
		return true
	}

	return false
}

// QueueRecord is a single pending mutation. Immutable after enqueue except
// for the synced/failed flags and the retry bookkeeping.
type QueueRecord struct {
	ID        uuid.UUID         `db:"id"         json:"id"`
	TenantID  string            `db:"tenant_id"  json:"tenant_id"`
	Endpoint  string            `db:"endpoint"   json:"endpoint"`
	Method    Method            `db:"method"     json:"method"`
	Payload   json.RawMessage   `db:"payload"    json:"payload,omitempty"`
	Headers   map[string]string `db:"headers"    json:"headers,omitempty"`
	Synced    bool              `db:"synced"     json:"synced"`
	Failed    bool              `db:"failed"     json:"failed"`
	Attempts  int               `db:"attempts"   json:"attempts"`
	LastError string            `db:"last_error" json:"last_error,omitempty"`
	Timestamp int64             `db:"ts"         json:"timestamp"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// EnqueueRequest is the write surface consumed by UI collaborators.
type EnqueueRequest struct {
	TenantID string            `json:"tenant_id"`
	Endpoint string            `json:"endpoint"`
	Method   Method            `json:"method"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}
