package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

// ThreadMessage is one message in a lead's conversation thread. The engine
// reads the thread to detect replies and appends outbound records after a
// successful send; everything else about the thread belongs to the inbox
// side of the product.
type ThreadMessage struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	ThreadID   uuid.UUID        `db:"thread_id" json:"thread_id"`
	TenantID   uuid.UUID        `db:"tenant_id" json:"tenant_id"`
	Direction  MessageDirection `db:"direction" json:"direction"`
	Body       string           `db:"body" json:"body"`
	ProviderID *string          `db:"provider_id" json:"provider_id,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Inbound reports whether the message came from the lead.
func (m *ThreadMessage) Inbound() bool {
	return m.Direction == MessageDirectionInbound
}
