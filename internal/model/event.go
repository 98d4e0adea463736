package model

import (
	"encoding/json"
	"time"
)

// Well-known bus channels published by the replay engine. Feature code is
// free to publish its own namespaced channels (e.g. "membership_updated").
const (
	ChannelMutationSynced = "mutation_synced"
	ChannelMutationFailed = "mutation_failed"

	// ChannelMutationApplied is emitted by the gateway for every newly
	// accepted mutation, both to live hub sessions and the Kafka stream.
	ChannelMutationApplied = "mutation_applied"
)

// TenantIDKey is the gin context key set by the auth middleware.
const TenantIDKey = "tenant_id"

// Event is one bus notification. The payload shape is channel-specific and
// opaque to the bus itself.
type Event struct {
	Channel  string          `json:"channel"`
	TenantID string          `json:"tenant_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	At       time.Time       `json:"at"`
}

// MutationSyncedPayload is published on ChannelMutationSynced after a record
// is confirmed by the remote API.
type MutationSyncedPayload struct {
	RecordID string          `json:"record_id"`
	Endpoint string          `json:"endpoint"`
	Method   Method          `json:"method"`
	Entity   json.RawMessage `json:"entity,omitempty"`
	Replayed bool            `json:"replayed"`
}

// MutationFailedPayload is published on ChannelMutationFailed when a record
// goes terminal so the UI can surface it for manual retry or discard.
type MutationFailedPayload struct {
	RecordID string `json:"record_id"`
	Endpoint string `json:"endpoint"`
	Method   Method `json:"method"`
	Reason   string `json:"reason"`
}
