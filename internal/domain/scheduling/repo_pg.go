package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

// appointmentSelect joins the patient name shown on calendar events.
const appointmentSelect = `SELECT a.id, a.tenant_id, a.professional_id, a.patient_id,
	COALESCE(p.alias, p.full_name, ''), a.start_at, a.end_at, a.duration_min, a.status, a.pay_status,
	a.paid_amount::float8, a.price::float8, a.modality, a.notes, a.created_at, a.updated_at
	FROM appointments a LEFT JOIN patients p ON p.id = a.patient_id AND p.tenant_id = a.tenant_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.ProfessionalID, &a.PatientID, &a.PatientName,
		&a.StartAt, &a.EndAt, &a.DurationMin, &a.Status, &a.PayStatus, &a.PaidAmount, &a.Price,
		&a.Modality, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, scope tenant.Scope, a *Appointment) error {
	a.ID = uuid.New()
	a.TenantID = scope.TenantID
	a.ProfessionalID = scope.ProfessionalID
	return r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, tenant_id, professional_id, patient_id, start_at, end_at,
			duration_min, status, pay_status, paid_amount, price, modality, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.TenantID, a.ProfessionalID, a.PatientID, a.StartAt, a.EndAt,
		a.DurationMin, a.Status, a.PayStatus, a.PaidAmount, a.Price, a.Modality, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, appointmentSelect+`
		WHERE a.id = $1 AND a.tenant_id = $2 AND a.professional_id = $3`,
		id, scope.TenantID, scope.ProfessionalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, scope tenant.Scope, a *Appointment) error {
	a.TenantID = scope.TenantID
	a.ProfessionalID = scope.ProfessionalID
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments SET patient_id=$4, start_at=$5, end_at=$6, duration_min=$7, status=$8,
			pay_status=$9, paid_amount=$10, price=$11, modality=$12, notes=$13, updated_at=NOW()
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3
		RETURNING created_at, updated_at`,
		a.ID, a.TenantID, a.ProfessionalID, a.PatientID, a.StartAt, a.EndAt, a.DurationMin,
		a.Status, a.PayStatus, a.PaidAmount, a.Price, a.Modality, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *appointmentRepoPG) Delete(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments
		WHERE id = $1 AND tenant_id = $2 AND professional_id = $3`, id, scope.TenantID, scope.ProfessionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListRange(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE a.tenant_id = $1 AND a.professional_id = $2 AND a.start_at < $4 AND a.end_at > $3
		ORDER BY a.start_at, a.id`, scope.TenantID, scope.ProfessionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
