package datasource

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

// Router sends demo scopes to the fixture and everything else to live.
type Router struct {
	live Reader
	demo Reader
}

func NewRouter(live, demo Reader) *Router {
	return &Router{live: live, demo: demo}
}

// For returns the reader serving scope.
func (r *Router) For(scope tenant.Scope) Reader {
	if scope.Demo {
		return r.demo
	}
	return r.live
}

func (r *Router) Profile(ctx context.Context, scope tenant.Scope) (*settings.Profile, error) {
	return r.For(scope).Profile(ctx, scope)
}

func (r *Router) Availability(ctx context.Context, scope tenant.Scope) ([]*settings.Availability, error) {
	return r.For(scope).Availability(ctx, scope)
}

func (r *Router) Blocks(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*settings.Block, error) {
	return r.For(scope).Blocks(ctx, scope, from, to)
}

func (r *Router) Patient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*patient.Patient, error) {
	return r.For(scope).Patient(ctx, scope, id)
}

func (r *Router) Patients(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*patient.Patient, int, error) {
	return r.For(scope).Patients(ctx, scope, query, limit, offset)
}

func (r *Router) Appointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*scheduling.Appointment, error) {
	return r.For(scope).Appointment(ctx, scope, id)
}

func (r *Router) Appointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*scheduling.Appointment, error) {
	return r.For(scope).Appointments(ctx, scope, from, to)
}
