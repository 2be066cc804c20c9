package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var ErrNotFound = errors.New("appointment not found")

type AppointmentRepository interface {
	Create(ctx context.Context, scope tenant.Scope, a *Appointment) error
	GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, scope tenant.Scope, a *Appointment) error
	Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
	// ListRange returns the professional's appointments overlapping
	// [from, to), ordered by start.
	ListRange(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Appointment, error)
}
