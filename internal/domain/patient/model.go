package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name      string    `db:"full_name" json:"name"`
	Alias     *string   `db:"alias" json:"alias,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Insurance *string   `db:"insurance" json:"insurance,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName prefers the alias the professional uses on the agenda.
func (p *Patient) DisplayName() string {
	if p.Alias != nil && *p.Alias != "" {
		return *p.Alias
	}
	return p.Name
}
