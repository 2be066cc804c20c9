package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var (
	ErrNotFound = errors.New("patient not found")
	ErrInUse    = errors.New("patient has appointments and cannot be deleted")
)

type Repository interface {
	Create(ctx context.Context, scope tenant.Scope, p *Patient) error
	GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, scope tenant.Scope, p *Patient) error
	Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error
	// List orders by name; query matches name or alias, case-insensitively.
	List(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*Patient, int, error)
}
