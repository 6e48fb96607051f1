package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant carries the credit balance this engine meters against. The balance
// is shared with user-initiated sends elsewhere in the product, so it is
// only ever touched through the atomic clamped deduct in the repository.
type Tenant struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Credits       int64     `db:"credits" json:"credits"`
	AlertEmail    string    `db:"alert_email" json:"alert_email"`
	LowCreditSent bool      `db:"low_credit_sent" json:"low_credit_sent"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
