package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicagenda/agenda/internal/platform/db"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

const patientCols = `id, tenant_id, full_name, alias, phone, email, insurance, notes, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Alias, &p.Phone, &p.Email, &p.Insurance, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, scope tenant.Scope, p *Patient) error {
	p.ID = uuid.New()
	p.TenantID = scope.TenantID
	return r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, tenant_id, full_name, alias, phone, email, insurance, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.Name, p.Alias, p.Phone, p.Email, p.Insurance, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND tenant_id = $2`, id, scope.TenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, scope tenant.Scope, p *Patient) error {
	p.TenantID = scope.TenantID
	err := r.pool.QueryRow(ctx, `
		UPDATE patients SET full_name=$3, alias=$4, phone=$5, email=$6, insurance=$7, notes=$8, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.Name, p.Alias, p.Phone, p.Email, p.Insurance, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *patientRepoPG) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1 AND tenant_id = $2`, id, scope.TenantID)
	if db.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{scope.TenantID}
	idx := 2
	if query != "" {
		where += fmt.Sprintf(` AND (full_name ILIKE $%d OR alias ILIKE $%d)`, idx, idx)
		args = append(args, "%"+query+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := `SELECT ` + patientCols + ` FROM patients` + where +
		fmt.Sprintf(` ORDER BY full_name, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
