package settings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/internal/platform/websocket"
)

// ErrValidation marks input rejected before reaching the store.
var ErrValidation = errors.New("invalid settings")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Source serves reads. The datasource router satisfies it and answers the
// demo clinic from fixtures.
type Source interface {
	Profile(ctx context.Context, scope tenant.Scope) (*Profile, error)
	Availability(ctx context.Context, scope tenant.Scope) ([]*Availability, error)
	Blocks(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Block, error)
}

// Invalidator drops cached settings of a professional.
type Invalidator interface {
	Invalidate(ctx context.Context, scope tenant.Scope) error
}

type Service struct {
	profiles     ProfileRepository
	availability AvailabilityRepository
	blocks       BlockRepository
	source       Source
	cache        Invalidator
	events       websocket.EventPublisher
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService wires the repositories. A nil source reads the repositories
// directly; nil cache and events disable invalidation and notifications.
func NewService(profiles ProfileRepository, availability AvailabilityRepository, blocks BlockRepository,
	source Source, cache Invalidator, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	s := &Service{
		profiles:     profiles,
		availability: availability,
		blocks:       blocks,
		source:       source,
		cache:        cache,
		events:       events,
		logger:       logger.With().Str("component", "settings").Logger(),
		now:          time.Now,
	}
	if s.source == nil {
		s.source = RepoSource{ProfileRepo: profiles, AvailabilityRepo: availability, BlockRepo: blocks}
	}
	if s.events == nil {
		s.events = websocket.NopPublisher{}
	}
	return s
}

// changed runs after every successful mutation.
func (s *Service) changed(ctx context.Context, scope tenant.Scope, resourceType, action string, id uuid.UUID) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, scope); err != nil {
			s.logger.Warn().Err(err).Str("tenant_id", scope.TenantID.String()).Msg("cache invalidation failed")
		}
	}
	if err := s.events.Publish(ctx, websocket.ChangeEvent(scope, resourceType, action, id)); err != nil {
		s.logger.Warn().Err(err).Str("resource_type", resourceType).Msg("publish change event")
	}
}

// -- Profile --

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func validateProfile(p *Profile) error {
	if !currencyPattern.MatchString(p.Currency) {
		return invalid("currency must be a three-letter ISO code such as EUR, USD or ARS")
	}
	if p.DefaultPrice < 0 {
		return invalid("default_price cannot be negative")
	}
	if p.DefaultDuration < 1 {
		return invalid("default_duration must be at least 1 minute")
	}
	if p.BufferBetweenAppointments < 0 {
		return invalid("buffer_between_appointments cannot be negative")
	}
	return nil
}

// GetProfile returns the stored profile or the defaults.
func (s *Service) GetProfile(ctx context.Context, scope tenant.Scope) (*Profile, error) {
	return s.source.Profile(ctx, scope)
}

func (s *Service) UpdateProfile(ctx context.Context, scope tenant.Scope, p *Profile) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := validateProfile(p); err != nil {
		return err
	}
	if err := s.profiles.Upsert(ctx, scope, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.changed(ctx, scope, "profile", websocket.ActionUpdated, uuid.Nil)
	return nil
}

// -- Availability --

func (s *Service) ListAvailability(ctx context.Context, scope tenant.Scope) ([]*Availability, error) {
	return s.source.Availability(ctx, scope)
}

func (s *Service) AddAvailability(ctx context.Context, scope tenant.Scope, rule collision.AvailabilityRule) (*Availability, error) {
	if err := scope.Writable(); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, invalid("%s", err)
	}
	a := &Availability{AvailabilityRule: rule}
	if err := s.availability.Create(ctx, scope, a); err != nil {
		if errors.Is(err, ErrDuplicateRule) {
			return nil, err
		}
		return nil, fmt.Errorf("add availability: %w", err)
	}
	s.changed(ctx, scope, "availability", websocket.ActionCreated, a.ID)
	return a, nil
}

func (s *Service) DeleteAvailability(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := s.availability.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.changed(ctx, scope, "availability", websocket.ActionDeleted, id)
	return nil
}

// ReplaceAvailability swaps the whole weekly schedule. An empty list clears it.
func (s *Service) ReplaceAvailability(ctx context.Context, scope tenant.Scope, rules []collision.AvailabilityRule) ([]*Availability, error) {
	if err := scope.Writable(); err != nil {
		return nil, err
	}
	seen := make(map[collision.AvailabilityRule]bool, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, invalid("rule %d: %s", i, err)
		}
		if seen[r] {
			return nil, fmt.Errorf("rule %d: %w", i, ErrDuplicateRule)
		}
		seen[r] = true
	}
	items, err := s.availability.Replace(ctx, scope, rules)
	if err != nil {
		return nil, fmt.Errorf("replace availability: %w", err)
	}
	s.changed(ctx, scope, "availability", websocket.ActionReplaced, uuid.Nil)
	return items, nil
}

// -- Blocks --

func validateBlock(b *Block) error {
	if b.StartAt.IsZero() || b.EndAt.IsZero() {
		return invalid("start_at and end_at are required")
	}
	if err := b.Interval().Validate(); err != nil {
		return invalid("%s", err)
	}
	return nil
}

// ListUpcomingBlocks returns blocks that have not ended yet.
func (s *Service) ListUpcomingBlocks(ctx context.Context, scope tenant.Scope) ([]*Block, error) {
	return s.source.Blocks(ctx, scope, s.now(), farFuture)
}

// ListBlocks returns blocks touching [from, to).
func (s *Service) ListBlocks(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Block, error) {
	return s.source.Blocks(ctx, scope, from, to)
}

func (s *Service) AddBlock(ctx context.Context, scope tenant.Scope, b *Block) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := validateBlock(b); err != nil {
		return err
	}
	if err := s.blocks.Create(ctx, scope, b); err != nil {
		return fmt.Errorf("add block: %w", err)
	}
	s.changed(ctx, scope, "block", websocket.ActionCreated, b.ID)
	return nil
}

func (s *Service) UpdateBlock(ctx context.Context, scope tenant.Scope, b *Block) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := validateBlock(b); err != nil {
		return err
	}
	if err := s.blocks.Update(ctx, scope, b); err != nil {
		return err
	}
	s.changed(ctx, scope, "block", websocket.ActionUpdated, b.ID)
	return nil
}

func (s *Service) DeleteBlock(ctx context.Context, scope tenant.Scope, id uuid.UUID) error {
	if err := scope.Writable(); err != nil {
		return err
	}
	if err := s.blocks.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.changed(ctx, scope, "block", websocket.ActionDeleted, id)
	return nil
}

// farFuture bounds open-ended block queries.
var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// RepoSource reads settings straight from the repositories.
type RepoSource struct {
	ProfileRepo      ProfileRepository
	AvailabilityRepo AvailabilityRepository
	BlockRepo        BlockRepository
}

func (r RepoSource) Profile(ctx context.Context, scope tenant.Scope) (*Profile, error) {
	p, err := r.ProfileRepo.Get(ctx, scope)
	if errors.Is(err, ErrNotFound) {
		return DefaultProfile(scope.TenantID, scope.ProfessionalID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (r RepoSource) Availability(ctx context.Context, scope tenant.Scope) ([]*Availability, error) {
	items, err := r.AvailabilityRepo.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return items, nil
}

func (r RepoSource) Blocks(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*Block, error) {
	items, err := r.BlockRepo.ListEndingAfter(ctx, scope, from)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	return FilterBlocks(items, from, to), nil
}
