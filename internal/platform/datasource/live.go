// Package datasource answers agenda reads for a tenant scope. Live reads the
// repositories through the cache; Fixture synthesizes the demo clinic; Router
// picks one per request so handlers and services never branch on demo mode.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/cache"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

// Reader is every read the agenda needs for one scope.
type Reader interface {
	settings.Source
	patient.Source
	scheduling.Source
}

// Repositories groups the stores Live reads from.
type Repositories struct {
	Profiles     settings.ProfileRepository
	Availability settings.AvailabilityRepository
	Blocks       settings.BlockRepository
	Patients     patient.Repository
	Appointments scheduling.AppointmentRepository
}

// Live serves real tenants. Profile, availability and blocks are cached;
// patients and appointments always come from Postgres.
type Live struct {
	repos  Repositories
	cache  cache.Cache
	logger zerolog.Logger
}

func NewLive(repos Repositories, c cache.Cache, logger zerolog.Logger) *Live {
	if c == nil {
		c = cache.Nop{}
	}
	return &Live{repos: repos, cache: c, logger: logger.With().Str("component", "datasource").Logger()}
}

// cached runs load on a miss and stores the result. Cache failures are logged
// and the repository answers.
func cached[T any](ctx context.Context, l *Live, scope tenant.Scope, kind string, load func() (T, error)) (T, error) {
	var v T
	hit, err := l.cache.Get(ctx, scope, kind, &v)
	if err != nil {
		l.logger.Warn().Err(err).Str("kind", kind).Msg("cache read failed")
	}
	if hit {
		return v, nil
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	if err := l.cache.Set(ctx, scope, kind, v); err != nil {
		l.logger.Warn().Err(err).Str("kind", kind).Msg("cache write failed")
	}
	return v, nil
}

func (l *Live) Profile(ctx context.Context, scope tenant.Scope) (*settings.Profile, error) {
	return cached(ctx, l, scope, cache.KindProfile, func() (*settings.Profile, error) {
		p, err := l.repos.Profiles.Get(ctx, scope)
		if errors.Is(err, settings.ErrNotFound) {
			return settings.DefaultProfile(scope.TenantID, scope.ProfessionalID), nil
		}
		return p, err
	})
}

func (l *Live) Availability(ctx context.Context, scope tenant.Scope) ([]*settings.Availability, error) {
	return cached(ctx, l, scope, cache.KindAvailability, func() ([]*settings.Availability, error) {
		items, err := l.repos.Availability.List(ctx, scope)
		if items == nil && err == nil {
			items = []*settings.Availability{}
		}
		return items, err
	})
}

// Blocks caches every stored block of the professional and filters in memory.
func (l *Live) Blocks(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*settings.Block, error) {
	all, err := cached(ctx, l, scope, cache.KindBlocks, func() ([]*settings.Block, error) {
		items, err := l.repos.Blocks.ListEndingAfter(ctx, scope, time.Time{})
		if items == nil && err == nil {
			items = []*settings.Block{}
		}
		return items, err
	})
	if err != nil {
		return nil, err
	}
	return settings.FilterBlocks(all, from, to), nil
}

func (l *Live) Patient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*patient.Patient, error) {
	return l.repos.Patients.GetByID(ctx, scope, id)
}

func (l *Live) Patients(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*patient.Patient, int, error) {
	return l.repos.Patients.List(ctx, scope, query, limit, offset)
}

func (l *Live) Appointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*scheduling.Appointment, error) {
	return l.repos.Appointments.GetByID(ctx, scope, id)
}

func (l *Live) Appointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*scheduling.Appointment, error) {
	return l.repos.Appointments.ListRange(ctx, scope, from, to)
}
