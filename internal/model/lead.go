package model

import (
	"time"

	"github.com/google/uuid"
)

// Lead supplies the placeholder values for templated steps and is the
// source of truth for opt-out. Owned by the CRM side; this engine only
// reads it.
type Lead struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     string    `db:"phone" json:"phone"`
	OptedOut  bool      `db:"opted_out" json:"opted_out"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contactable reports whether the lead may be messaged at all. Checked
// before every send; a false result is fatal to the enrollment.
func (l *Lead) Contactable() bool {
	return !l.OptedOut && l.Phone != ""
}
