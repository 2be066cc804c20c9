// Package calendar builds the professional's calendar read model: visible
// events, per-day tints and hour bounds, today's list and an iCalendar feed.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var ErrValidation = errors.New("invalid calendar request")

// MaxRange bounds a single view or feed request.
const MaxRange = 366 * 24 * time.Hour

const (
	defaultStartHour = 8
	defaultEndHour   = 20
	lastHour         = 23
)

// Checker classifies a candidate interval for a professional.
type Checker interface {
	Check(ctx context.Context, scope tenant.Scope, candidate collision.Interval) (collision.Verdict, error)
}

// AppointmentReader lists appointments overlapping [from, to) in start order.
type AppointmentReader interface {
	Appointments(ctx context.Context, scope tenant.Scope, from, to time.Time) ([]*scheduling.Appointment, error)
}

// Tint is the background state of a calendar day.
type Tint string

const (
	TintNone       Tint = ""
	TintBlocked    Tint = "blocked"
	TintNonWorking Tint = "non_working"
)

type Event struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	PatientID   uuid.UUID            `json:"patient_id"`
	Status      scheduling.Status    `json:"status"`
	PayStatus   scheduling.PayStatus `json:"pay_status"`
	Modality    scheduling.Modality  `json:"modality"`
	DurationMin int                  `json:"duration_min"`
}

type Day struct {
	Date string `json:"date"`
	Tint Tint   `json:"tint,omitempty"`
}

// HourBounds is the visible hour range; End is exclusive.
type HourBounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type View struct {
	From   time.Time  `json:"from"`
	To     time.Time  `json:"to"`
	Hours  HourBounds `json:"hours"`
	Days   []Day      `json:"days"`
	Events []Event    `json:"events"`
}

type Service struct {
	checker      Checker
	appointments AppointmentReader
	constraints  settings.Source
	detector     *collision.Detector
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(checker Checker, appointments AppointmentReader, constraints settings.Source,
	detector *collision.Detector, logger zerolog.Logger) *Service {
	if detector == nil {
		detector = collision.NewDetector(nil)
	}
	return &Service{
		checker:      checker,
		appointments: appointments,
		constraints:  constraints,
		detector:     detector,
		logger:       logger.With().Str("component", "calendar").Logger(),
		now:          time.Now,
	}
}

// Check classifies a candidate; the calendar calls it for every drag frame.
func (s *Service) Check(ctx context.Context, scope tenant.Scope, candidate collision.Interval) (collision.Verdict, error) {
	return s.checker.Check(ctx, scope, candidate)
}

func validateRange(from, to time.Time) error {
	if !from.Before(to) {
		return fmt.Errorf("%w: from must be before to", ErrValidation)
	}
	if to.Sub(from) > MaxRange {
		return fmt.Errorf("%w: range cannot exceed %d days", ErrValidation, int(MaxRange.Hours()/24))
	}
	return nil
}

// Bounds derives the visible hours from the weekly rules: the earliest start
// hour through one past the latest end hour, capped at 23. Without rules the
// calendar shows 08:00 to 20:00.
func Bounds(rules []collision.AvailabilityRule) HourBounds {
	if len(rules) == 0 {
		return HourBounds{Start: defaultStartHour, End: defaultEndHour}
	}
	minHour, maxHour := 24, 0
	for _, r := range rules {
		if h := r.StartTime.Hour(); h < minHour {
			minHour = h
		}
		if h := r.EndTime.Hour(); h > maxHour {
			maxHour = h
		}
	}
	return HourBounds{Start: max(0, minHour), End: min(lastHour, maxHour+1)}
}

// DayTint reports how a day is shaded. A blocked day wins over a non-working
// one.
func (s *Service) DayTint(day time.Time, blocks []collision.Block, rules []collision.AvailabilityRule) Tint {
	switch {
	case s.detector.IsDayBlocked(day, blocks):
		return TintBlocked
	case s.detector.IsNonWorkingDay(day, rules):
		return TintNonWorking
	default:
		return TintNone
	}
}

func toEvent(a *scheduling.Appointment) Event {
	title := a.PatientName
	if title == "" {
		title = "Appointment"
	}
	return Event{
		ID:          a.ID,
		Title:       title,
		Start:       a.StartAt,
		End:         a.EndAt,
		PatientID:   a.PatientID,
		Status:      a.Status,
		PayStatus:   a.PayStatus,
		Modality:    a.Modality,
		DurationMin: a.DurationMin,
	}
}

// View assembles the calendar for [from, to). Days are resolved in the
// clinic location and every day touched by the range is rendered whole, so
// blocks are loaded over the rendered days rather than the raw range.
func (s *Service) View(ctx context.Context, scope tenant.Scope, from, to time.Time) (*View, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	avail, err := s.constraints.Availability(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	loc := s.detector.Location()
	var days []time.Time
	for day := collision.StartOfDay(from.In(loc)); day.Before(to); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	blocks, err := s.constraints.Blocks(ctx, scope, days[0], days[len(days)-1].AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	appts, err := s.appointments.Appointments(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	rules := settings.Rules(avail)
	cblocks := settings.CollisionBlocks(blocks)

	v := &View{
		From:   from,
		To:     to,
		Hours:  Bounds(rules),
		Days:   make([]Day, 0, len(days)),
		Events: make([]Event, 0, len(appts)),
	}
	for _, day := range days {
		v.Days = append(v.Days, Day{Date: day.Format(time.DateOnly), Tint: s.DayTint(day, cblocks, rules)})
	}
	for _, a := range appts {
		v.Events = append(v.Events, toEvent(a))
	}
	return v, nil
}

// Today returns today's appointments in start order.
func (s *Service) Today(ctx context.Context, scope tenant.Scope) ([]Event, error) {
	start := collision.StartOfDay(s.now().In(s.detector.Location()))
	appts, err := s.appointments.Appointments(ctx, scope, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	events := make([]Event, 0, len(appts))
	for _, a := range appts {
		events = append(events, toEvent(a))
	}
	return events, nil
}
