package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateRule = errors.New("an identical availability rule already exists")
)

type ProfileRepository interface {
	// Get returns ErrNotFound when the professional never saved settings.
	Get(ctx context.Context, scope tenant.Scope) (*Profile, error)
	Upsert(ctx context.Context, scope tenant.Scope, p *Profile) error
}

type AvailabilityRepository interface {
	List(ctx context.Context, scope tenant.Scope) ([]*Availability, error)
	Create(ctx context.Context, scope tenant.Scope, a *Availability) error
	Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
	// Replace swaps every rule of the professional in one transaction.
	Replace(ctx context.Context, scope tenant.Scope, rules []collision.AvailabilityRule) ([]*Availability, error)
}

type BlockRepository interface {
	GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Block, error)
	Create(ctx context.Context, scope tenant.Scope, b *Block) error
	Update(ctx context.Context, scope tenant.Scope, b *Block) error
	Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
	// ListEndingAfter returns the professional's blocks with end_at >= from.
	ListEndingAfter(ctx context.Context, scope tenant.Scope, from time.Time) ([]*Block, error)
}
