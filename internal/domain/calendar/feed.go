package calendar

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

const productID = "-//clinicagenda//Agenda//EN"

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Feed exports [from, to) as an iCalendar: appointments and blocks as
// events, weekly availability as recurring transparent events.
func (s *Service) Feed(ctx context.Context, scope tenant.Scope, from, to time.Time) (*ical.Calendar, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	avail, err := s.constraints.Availability(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	blocks, err := s.constraints.Blocks(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	appts, err := s.appointments.Appointments(ctx, scope, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	stamp := s.now().UTC()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, a := range appts {
		cal.Children = append(cal.Children, appointmentEvent(a, stamp).Component)
	}
	for _, b := range blocks {
		cal.Children = append(cal.Children, blockEvent(b, stamp).Component)
	}
	loc := s.detector.Location()
	for _, a := range avail {
		cal.Children = append(cal.Children, availabilityEvent(a, from.In(loc), to, stamp).Component)
	}
	s.logger.Debug().
		Str("tenant_id", scope.TenantID.String()).
		Int("appointments", len(appts)).
		Int("blocks", len(blocks)).
		Int("rules", len(avail)).
		Msg("calendar feed built")
	return cal, nil
}

// WriteFeed encodes cal as text/calendar.
func WriteFeed(w io.Writer, cal *ical.Calendar) error {
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func newEvent(uid string, start, end, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)
	return event
}

func appointmentEvent(a *scheduling.Appointment, stamp time.Time) *ical.Event {
	event := newEvent("appointment-"+a.ID.String(), a.StartAt.UTC(), a.EndAt.UTC(), stamp)
	event.Props.SetText(ical.PropSummary, toEvent(a).Title)
	event.Props.SetText(ical.PropCategories, string(a.Modality))
	switch a.Status {
	case scheduling.StatusCancelled, scheduling.StatusRescheduled:
		event.Props.SetText(ical.PropStatus, "CANCELLED")
		event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
	default:
		event.Props.SetText(ical.PropStatus, "CONFIRMED")
		event.Props.SetText(ical.PropTransparency, "OPAQUE")
	}
	if a.Notes != nil {
		event.Props.SetText(ical.PropDescription, *a.Notes)
	}
	return event
}

func blockEvent(b *settings.Block, stamp time.Time) *ical.Event {
	event := newEvent("block-"+b.ID.String(), b.StartAt.UTC(), b.EndAt.UTC(), stamp)
	summary := "Blocked"
	if b.Reason != nil && *b.Reason != "" {
		summary = *b.Reason
	}
	event.Props.SetText(ical.PropSummary, summary)
	event.Props.SetText(ical.PropTransparency, "OPAQUE")
	return event
}

// availabilityEvent anchors the rule on its first weekday on or after from
// and repeats it weekly until to.
func availabilityEvent(a *settings.Availability, from, to, stamp time.Time) *ical.Event {
	day := collision.StartOfDay(from)
	for day.Weekday() != a.Weekday {
		day = day.AddDate(0, 0, 1)
	}
	window := a.Window(day)
	event := newEvent("availability-"+a.ID.String(), window.Start, window.End, stamp)
	event.Props.SetText(ical.PropSummary, "Available")
	event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
	event.Props.SetRecurrenceRule(&rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[a.Weekday]},
		Until:     to.UTC(),
	})
	return event
}
