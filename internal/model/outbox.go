package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is a gateway event awaiting publication to the downstream
// Kafka stream. Inserted in the same transaction as the applied mutation.
type OutboxMessage struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  string     `db:"tenant_id"`
	Channel   string     `db:"channel"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	Sent      bool       `db:"sent"`
	SentAt    *time.Time `db:"sent_at"`
}
