package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/internal/platform/websocket"
)

// ErrValidation marks input rejected before reaching the store.
var ErrValidation = errors.New("invalid appointment")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Source serves appointment reads; the datasource router answers the demo
// clinic.
type Source interface {
	Appointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error)
	Appointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Appointment, error)
}

// PatientLookup confirms the patient belongs to the clinic.
type PatientLookup interface {
	GetPatient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*patient.Patient, error)
}

// Draft is the writable part of an appointment. Unset options take their
// value from the professional's profile on create and from the stored
// appointment on update.
type Draft struct {
	PatientID  uuid.UUID
	StartAt    time.Time
	EndAt      mo.Option[time.Time]
	Status     Status
	PayStatus  PayStatus
	PaidAmount float64
	Price      mo.Option[float64]
	Modality   Modality
	Notes      *string
}

// MovePatch carries a drag (start only) or resize (end only) gesture.
// Setting both moves and resizes at once.
type MovePatch struct {
	StartAt mo.Option[time.Time]
	EndAt   mo.Option[time.Time]
}

type Service struct {
	appointments AppointmentRepository
	source       Source
	constraints  settings.Source
	patients     PatientLookup
	detector     *collision.Detector
	events       websocket.EventPublisher
	logger       zerolog.Logger
}

// NewService wires the appointment store with the settings that constrain
// it. A nil source reads the repository directly.
func NewService(appointments AppointmentRepository, source Source, constraints settings.Source,
	patients PatientLookup, detector *collision.Detector, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	if source == nil {
		source = RepoSource{Repo: appointments}
	}
	if detector == nil {
		detector = collision.NewDetector(nil)
	}
	if events == nil {
		events = websocket.NopPublisher{}
	}
	return &Service{
		appointments: appointments,
		source:       source,
		constraints:  constraints,
		patients:     patients,
		detector:     detector,
		events:       events,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

// Check classifies a candidate against the professional's availability and
// the blocks it could touch. A malformed candidate is classified without
// loading blocks.
func (s *Service) Check(ctx context.Context, scope tenant.Scope, candidate collision.Interval) (collision.Verdict, error) {
	avail, err := s.constraints.Availability(ctx, scope)
	if err != nil {
		return collision.Verdict{}, fmt.Errorf("load availability: %w", err)
	}
	var blocks []*settings.Block
	if candidate.Validate() == nil {
		blocks, err = s.constraints.Blocks(ctx, scope, candidate.Start, candidate.End)
		if err != nil {
			return collision.Verdict{}, fmt.Errorf("load blocks: %w", err)
		}
	}
	return s.detector.Classify(candidate, settings.CollisionBlocks(blocks), settings.Rules(avail)), nil
}

// guard runs Check for a write. With force set a conflict is logged and let
// through.
func (s *Service) guard(ctx context.Context, scope tenant.Scope, a *Appointment, force bool) error {
	verdict, err := s.Check(ctx, scope, a.Interval())
	if err != nil {
		return err
	}
	if !verdict.Conflict {
		return nil
	}
	if !force {
		return &ConflictError{Verdict: verdict}
	}
	s.logger.Warn().
		Str("tenant_id", scope.TenantID.String()).
		Str("professional_id", scope.ProfessionalID.String()).
		Str("user_id", scope.UserID).
		Time("start_at", a.StartAt).
		Time("end_at", a.EndAt).
		Strs("reasons", verdict.Reasons.Names()).
		Msg("collision overridden")
	return nil
}

func validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if a.StartAt.IsZero() || a.EndAt.IsZero() {
		return invalid("start_at and end_at are required")
	}
	if err := a.Interval().Validate(); err != nil {
		return invalid("%s", err)
	}
	if !a.Status.Valid() {
		return invalid("invalid status: %s", a.Status)
	}
	if !a.Modality.Valid() {
		return invalid("invalid modality: %s", a.Modality)
	}
	if err := ValidatePayment(a.PayStatus, a.PaidAmount, a.Price); err != nil {
		return invalid("%s", err)
	}
	return nil
}

// apply copies d onto a. An unset end falls back to start plus
// defaultDuration and an unset price to defaultPrice.
func apply(a *Appointment, d Draft, defaultDuration time.Duration, defaultPrice float64) {
	a.PatientID = d.PatientID
	a.StartAt = d.StartAt
	a.EndAt = d.EndAt.OrElse(d.StartAt.Add(defaultDuration))
	a.Price = d.Price.OrElse(defaultPrice)
	a.PaidAmount = d.PaidAmount
	a.Status = d.Status
	if a.Status == "" {
		a.Status = StatusNew
	}
	a.PayStatus = d.PayStatus
	if a.PayStatus == "" {
		a.PayStatus = PayPending
	}
	a.Modality = d.Modality
	if a.Modality == "" {
		a.Modality = ModalityInPerson
	}
	a.Notes = d.Notes
	if a.Notes != nil {
		if v := strings.TrimSpace(*a.Notes); v != "" {
			a.Notes = &v
		} else {
			a.Notes = nil
		}
	}
	a.DurationMin = DurationMinutes(a.StartAt, a.EndAt)
}

func (s *Service) publish(ctx context.Context, scope tenant.Scope, action string, id uuid.UUID) {
	if err := s.events.Publish(ctx, websocket.ChangeEvent(scope, "appointment", action, id)); err != nil {
		s.logger.Warn().Err(err).Msg("publish change event")
	}
}

func (s *Service) requirePatient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*patient.Patient, error) {
	if s.patients == nil {
		return nil, nil
	}
	p, err := s.patients.GetPatient(ctx, scope, id)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, invalid("patient %s does not exist", id)
	}
	return p, err
}

// prepare validates a, checks the patient and runs the collision guard for
// active appointments.
func (s *Service) prepare(ctx context.Context, scope tenant.Scope, a *Appointment, recheck, force bool) error {
	if err := validate(a); err != nil {
		return err
	}
	p, err := s.requirePatient(ctx, scope, a.PatientID)
	if err != nil {
		return err
	}
	if p != nil {
		a.PatientName = p.DisplayName()
	}
	if recheck && a.Status.Active() {
		return s.guard(ctx, scope, a, force)
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, scope tenant.Scope, d Draft, force bool) (*Appointment, error) {
	if err := scope.Writable(); err != nil {
		return nil, err
	}
	profile, err := s.constraints.Profile(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if d.StartAt.IsZero() {
		return nil, invalid("start_at is required")
	}
	a := &Appointment{}
	apply(a, d, time.Duration(profile.DefaultDuration)*time.Minute, profile.DefaultPrice)
	if err := s.prepare(ctx, scope, a, true, force); err != nil {
		return nil, err
	}
	if err := s.appointments.Create(ctx, scope, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	s.publish(ctx, scope, websocket.ActionCreated, a.ID)
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return s.source.Appointment(ctx, scope, id)
}

// ListAppointments returns the appointments overlapping [from, to).
func (s *Service) ListAppointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Appointment, error) {
	if !from.Before(to) {
		return nil, invalid("from must be before to")
	}
	return s.source.Appointments(ctx, scope, from, to)
}

// UpdateAppointment replaces the appointment. The collision check runs again
// only when the interval changed or a closed appointment is reopened.
func (s *Service) UpdateAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID, d Draft, force bool) (*Appointment, error) {
	if err := scope.Writable(); err != nil {
		return nil, err
	}
	current, err := s.appointments.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if d.StartAt.IsZero() {
		return nil, invalid("start_at is required")
	}
	a := *current
	apply(&a, d, current.EndAt.Sub(current.StartAt), current.Price)
	recheck := !a.StartAt.Equal(current.StartAt) || !a.EndAt.Equal(current.EndAt) ||
		(a.Status.Active() && !current.Status.Active())
	if err := s.prepare(ctx, scope, &a, recheck, force); err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, scope, &a); err != nil {
		return nil, err
	}
	s.publish(ctx, scope, websocket.ActionUpdated, a.ID)
	return &a, nil
}

// MoveAppointment applies a drag or resize. Only the interval changes.
func (s *Service) MoveAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID, patch MovePatch, force bool) (*Appointment, error) {
	if err := scope.Writable(); err != nil {
		return nil, err
	}
	if !patch.StartAt.IsPresent() && !patch.EndAt.IsPresent() {
		return nil, invalid("start_at or end_at is required")
	}
	current, err := s.appointments.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	a := *current
	if start, ok := patch.StartAt.Get(); ok {
		a.StartAt = start
		a.EndAt = patch.EndAt.OrElse(start.Add(current.EndAt.Sub(current.StartAt)))
	} else {
		a.EndAt, _ = patch.EndAt.Get()
	}
	if err := a.Interval().Validate(); err != nil {
		return nil, invalid("%s", err)
	}
	a.DurationMin = DurationMinutes(a.StartAt, a.EndAt)
	if a.Status.Active() {
		if err := s.guard(ctx, scope, &a, force); err != nil {
			return nil, err
		}
	}
	if err := s.appointments.Update(ctx, scope, &a); err != nil {
		return nil, err
	}
	s.publish(ctx, scope, websocket.ActionUpdated, a.ID)
	return &a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.publish(ctx, scope, websocket.ActionDeleted, id)
	return nil
}

// RepoSource reads appointments straight from the repository.
type RepoSource struct {
	Repo AppointmentRepository
}

func (r RepoSource) Appointment(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
	return r.Repo.GetByID(ctx, scope, id)
}

func (r RepoSource) Appointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Appointment, error) {
	return r.Repo.ListRange(ctx, scope, from, to)
}
