package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/platform/db"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository { return &profileRepoPG{pool: pool} }

func (r *profileRepoPG) Get(ctx context.Context, scope tenant.Scope) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, professional_id, currency, default_price, default_duration,
			buffer_between_appointments, updated_at
		FROM professional_profiles WHERE tenant_id = $1 AND professional_id = $2`,
		scope.TenantID, scope.ProfessionalID,
	).Scan(&p.TenantID, &p.ProfessionalID, &p.Currency, &p.DefaultPrice, &p.DefaultDuration,
		&p.BufferBetweenAppointments, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *profileRepoPG) Upsert(ctx context.Context, scope tenant.Scope, p *Profile) error {
	p.TenantID = scope.TenantID
	p.ProfessionalID = scope.ProfessionalID
	return r.pool.QueryRow(ctx, `
		INSERT INTO professional_profiles (tenant_id, professional_id, currency, default_price,
			default_duration, buffer_between_appointments)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tenant_id, professional_id) DO UPDATE SET
			currency = EXCLUDED.currency,
			default_price = EXCLUDED.default_price,
			default_duration = EXCLUDED.default_duration,
			buffer_between_appointments = EXCLUDED.buffer_between_appointments,
			updated_at = NOW()
		RETURNING updated_at`,
		p.TenantID, p.ProfessionalID, p.Currency, p.DefaultPrice, p.DefaultDuration, p.BufferBetweenAppointments,
	).Scan(&p.UpdatedAt)
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

const availCols = `id, tenant_id, professional_id, weekday, start_time, end_time, created_at`

func toPGTime(t collision.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Second/time.Microsecond), Valid: true}
}

func fromPGTime(t pgtype.Time) collision.TimeOfDay {
	return collision.TimeOfDay(t.Microseconds / int64(time.Second/time.Microsecond))
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var (
		a          Availability
		weekday    int16
		start, end pgtype.Time
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.ProfessionalID, &weekday, &start, &end, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Weekday = time.Weekday(weekday)
	a.StartTime = fromPGTime(start)
	a.EndTime = fromPGTime(end)
	return &a, nil
}

func (r *availabilityRepoPG) List(ctx context.Context, scope tenant.Scope) ([]*Availability, error) {
	return listAvailability(ctx, r.pool, scope)
}

func listAvailability(ctx context.Context, q db.Querier, scope tenant.Scope) ([]*Availability, error) {
	rows, err := q.Query(ctx, `SELECT `+availCols+` FROM availability_rules
		WHERE tenant_id = $1 AND professional_id = $2
		ORDER BY weekday, start_time`, scope.TenantID, scope.ProfessionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func insertAvailability(ctx context.Context, q db.Querier, scope tenant.Scope, a *Availability) error {
	a.ID = uuid.New()
	a.TenantID = scope.TenantID
	a.ProfessionalID = scope.ProfessionalID
	err := q.QueryRow(ctx, `
		INSERT INTO availability_rules (id, tenant_id, professional_id, weekday, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.TenantID, a.ProfessionalID, int16(a.Weekday), toPGTime(a.StartTime), toPGTime(a.EndTime),
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateRule
	}
	return err
}

func (r *availabilityRepoPG) Create(ctx context.Context, scope tenant.Scope, a *Availability) error {
	return insertAvailability(ctx, r.pool, scope, a)
}

func (r *availabilityRepoPG) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_rules
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3`, id, scope.TenantID, scope.ProfessionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *availabilityRepoPG) Replace(ctx context.Context, scope tenant.Scope, rules []collision.AvailabilityRule) ([]*Availability, error) {
	var out []*Availability
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE tenant_id = $1 AND professional_id = $2`,
			scope.TenantID, scope.ProfessionalID); err != nil {
			return fmt.Errorf("clear availability: %w", err)
		}
		for _, rule := range rules {
			a := &Availability{AvailabilityRule: rule}
			if err := insertAvailability(ctx, tx, scope, a); err != nil {
				return err
			}
		}
		var err error
		out, err = listAvailability(ctx, tx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =========== Block Repository ===========

type BlockRepoPG struct{ pool *pgxpool.Pool }

func NewBlockRepoPG(pool *pgxpool.Pool) *BlockRepoPG { return &BlockRepoPG{pool: pool} }

const blockCols = `id, tenant_id, professional_id, start_at, end_at, reason, created_at, updated_at`

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	err := row.Scan(&b.ID, &b.TenantID, &b.ProfessionalID, &b.StartAt, &b.EndAt, &b.Reason,
		&b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (r *BlockRepoPG) GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Block, error) {
	b, err := scanBlock(r.pool.QueryRow(ctx, `SELECT `+blockCols+` FROM blocks
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3`, id, scope.TenantID, scope.ProfessionalID))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *BlockRepoPG) Create(ctx context.Context, scope tenant.Scope, b *Block) error {
	b.ID = uuid.New()
	b.TenantID = scope.TenantID
	b.ProfessionalID = scope.ProfessionalID
	return r.pool.QueryRow(ctx, `
		INSERT INTO blocks (id, tenant_id, professional_id, start_at, end_at, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		b.ID, b.TenantID, b.ProfessionalID, b.StartAt, b.EndAt, b.Reason,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BlockRepoPG) Update(ctx context.Context, scope tenant.Scope, b *Block) error {
	b.TenantID = scope.TenantID
	b.ProfessionalID = scope.ProfessionalID
	err := r.pool.QueryRow(ctx, `
		UPDATE blocks SET start_at = $4, end_at = $5, reason = $6, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3
		RETURNING created_at, updated_at`,
		b.ID, scope.TenantID, scope.ProfessionalID, b.StartAt, b.EndAt, b.Reason,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return notFound(err)
}

func (r *BlockRepoPG) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocks
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3`, id, scope.TenantID, scope.ProfessionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BlockRepoPG) ListEndingAfter(ctx context.Context, scope tenant.Scope, from time.Time) ([]*Block, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+blockCols+` FROM blocks
		WHERE tenant_id = $1 AND professional_id = $2 AND end_at >= $3
		ORDER BY start_at`, scope.TenantID, scope.ProfessionalID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// PruneEndedBefore deletes blocks of every clinic that ended before cutoff.
func (r *BlockRepoPG) PruneEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocks WHERE end_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune blocks: %w", err)
	}
	return tag.RowsAffected(), nil
}
