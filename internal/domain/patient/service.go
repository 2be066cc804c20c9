package patient

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/internal/platform/websocket"
)

// ErrValidation marks input rejected before reaching the store.
var ErrValidation = errors.New("invalid patient")

// Source serves reads; the datasource router answers the demo clinic.
type Source interface {
	Patient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error)
	Patients(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*Patient, int, error)
}

type Service struct {
	patients Repository
	source   Source
	events   websocket.EventPublisher
	logger   zerolog.Logger
}

func NewService(patients Repository, source Source, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	if source == nil {
		source = RepoSource{Repo: patients}
	}
	if events == nil {
		events = websocket.NopPublisher{}
	}
	return &Service{
		patients: patients,
		source:   source,
		events:   events,
		logger:   logger.With().Str("component", "patients").Logger(),
	}
}

// normalize trims every field and turns blank optionals into nil.
func normalize(p *Patient) {
	p.Name = strings.TrimSpace(p.Name)
	for _, f := range []**string{&p.Alias, &p.Phone, &p.Email, &p.Insurance, &p.Notes} {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		if v == "" {
			*f = nil
			continue
		}
		*f = &v
	}
}

func validate(p *Patient) error {
	if utf8.RuneCountInString(p.Name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}
	if p.Email != nil {
		addr, err := mail.ParseAddress(*p.Email)
		if err != nil || addr.Address != *p.Email {
			return fmt.Errorf("%w: invalid email %q", ErrValidation, *p.Email)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, scope tenant.Scope, action string, id uuid.UUID) {
	if err := s.events.Publish(ctx, websocket.ChangeEvent(scope, "patient", action, id)); err != nil {
		s.logger.Warn().Err(err).Msg("publish change event")
	}
}

func (s *Service) CreatePatient(ctx context.Context, scope tenant.Scope, p *Patient) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}
	if err := s.patients.Create(ctx, scope, p); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	s.publish(ctx, scope, websocket.ActionCreated, p.ID)
	return nil
}

func (s *Service) GetPatient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error) {
	return s.source.Patient(ctx, scope, id)
}

func (s *Service) UpdatePatient(ctx context.Context, scope tenant.Scope, p *Patient) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	normalize(p)
	if err := validate(p); err != nil {
		return err
	}
	if err := s.patients.Update(ctx, scope, p); err != nil {
		return err
	}
	s.publish(ctx, scope, websocket.ActionUpdated, p.ID)
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := s.patients.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.publish(ctx, scope, websocket.ActionDeleted, id)
	return nil
}

func (s *Service) ListPatients(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*Patient, int, error) {
	return s.source.Patients(ctx, scope, strings.TrimSpace(query), limit, offset)
}

// RepoSource reads patients straight from the repository.
type RepoSource struct {
	Repo Repository
}

func (r RepoSource) Patient(ctx context.Context, scope tenant.Scope, id uuid.UUID) (*Patient, error) {
	return r.Repo.GetByID(ctx, scope, id)
}

func (r RepoSource) Patients(ctx context.Context, scope tenant.Scope, query string, limit, offset int) ([]*Patient, int, error) {
	return r.Repo.List(ctx, scope, query, limit, offset)
}
