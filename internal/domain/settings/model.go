package settings

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/domain/collision"
)

// Profile holds a professional's billing and booking defaults.
type Profile struct {
	TenantID                  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ProfessionalID            uuid.UUID `db:"professional_id" json:"professional_id"`
	Currency                  string    `db:"currency" json:"currency"`
	DefaultPrice              float64   `db:"default_price" json:"default_price"`
	DefaultDuration           int       `db:"default_duration" json:"default_duration"`
	BufferBetweenAppointments int       `db:"buffer_between_appointments" json:"buffer_between_appointments"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultProfile is returned until the professional saves settings.
func DefaultProfile(tenantID, professionalID uuid.UUID) *Profile {
	return &Profile{
		TenantID:        tenantID,
		ProfessionalID:  professionalID,
		Currency:        "ARS",
		DefaultDuration: 50,
	}
}

// Availability is a stored weekly working window.
type Availability struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TenantID       uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ProfessionalID uuid.UUID `db:"professional_id" json:"professional_id"`
	collision.AvailabilityRule
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Block is a stored period in which the professional takes no appointments.
type Block struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TenantID       uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ProfessionalID uuid.UUID `db:"professional_id" json:"professional_id"`
	StartAt        time.Time `db:"start_at" json:"start_at"`
	EndAt          time.Time `db:"end_at" json:"end_at"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (b *Block) Interval() collision.Interval {
	return collision.Interval{Start: b.StartAt, End: b.EndAt}
}

// ToCollision drops persistence fields.
func (b *Block) ToCollision() collision.Block {
	out := collision.Block{Start: b.StartAt, End: b.EndAt}
	if b.Reason != nil {
		out.Reason = *b.Reason
	}
	return out
}

// Rules converts stored availability into detector input.
func Rules(items []*Availability) []collision.AvailabilityRule {
	out := make([]collision.AvailabilityRule, 0, len(items))
	for _, a := range items {
		out = append(out, a.AvailabilityRule)
	}
	return out
}

// CollisionBlocks converts stored blocks into detector input.
func CollisionBlocks(items []*Block) []collision.Block {
	out := make([]collision.Block, 0, len(items))
	for _, b := range items {
		out = append(out, b.ToCollision())
	}
	return out
}

// FilterBlocks returns blocks with end_at >= from and start_at < to.
func FilterBlocks(items []*Block, from, to time.Time) []*Block {
	out := make([]*Block, 0, len(items))
	for _, b := range items {
		if !b.EndAt.Before(from) && b.StartAt.Before(to) {
			out = append(out, b)
		}
	}
	return out
}
