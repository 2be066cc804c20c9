package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTenantExists is returned when creating a tenant id that is already taken.
var ErrTenantExists = errors.New("tenant already exists")

// Tenant is a clinic. All domain rows carry its id.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a clinic.
type Membership struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
}

// TenantStore persists clinics and their members.
type TenantStore struct {
	pool *pgxpool.Pool
}

func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

// CreateTenant inserts a clinic. A zero id is replaced by a random one.
func (s *TenantStore) CreateTenant(ctx context.Context, id uuid.UUID, name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	t := &Tenant{ID: id, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING created_at`, id, name,
	).Scan(&t.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrTenantExists
		}
		return nil, fmt.Errorf("create tenant %s: %w", id, err)
	}
	return t, nil
}

// AddMember grants userID access to tenantID, updating the role if present.
func (s *TenantStore) AddMember(ctx context.Context, tenantID uuid.UUID, userID, role string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		tenantID, userID, role)
	if err != nil {
		return fmt.Errorf("add member %s to %s: %w", userID, tenantID, err)
	}
	return nil
}

// IsMember reports whether userID belongs to tenantID.
func (s *TenantStore) IsMember(ctx context.Context, tenantID uuid.UUID, userID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM tenant_members WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// ListMemberships returns the clinics userID can switch to, by name.
func (s *TenantStore) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.tenant_id, t.name, m.user_id, m.role
		FROM tenant_members m JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = $1
		ORDER BY t.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.TenantID, &m.TenantName, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
