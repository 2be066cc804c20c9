package datasource

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

const (
	DefaultSeed = 20240501

	fixturePatients  = 18
	fixturePrice     = 25000
	fixtureDuration  = 50
	slotLength       = fixtureDuration * time.Minute
	slotGap          = 10 * time.Minute
	lookupWeeks      = 26
	maxCachedWeeks   = 128
	congressInterval = 4
)

var fixtureNamespace = uuid.MustParse("3f0c6a52-8d1e-4b7a-9e25-6c4f0b1d2a77")

var (
	firstNames = []string{
		"Lucía", "Martín", "Sofía", "Mateo", "Valentina", "Joaquín", "Camila", "Tomás",
		"Julieta", "Benjamín", "Florencia", "Santiago", "Agustina", "Nicolás", "Carolina",
	}
	lastNames = []string{
		"González", "Rodríguez", "Fernández", "López", "Martínez", "Pérez", "García",
		"Sánchez", "Romero", "Díaz", "Álvarez", "Torres",
	}
	insurers = []string{"OSDE", "Swiss Medical", "Galeno", "IOMA", ""}

	fixtureRules = []collision.AvailabilityRule{
		{Weekday: time.Monday, StartTime: collision.MustTimeOfDay("09:00"), EndTime: collision.MustTimeOfDay("13:00")},
		{Weekday: time.Tuesday, StartTime: collision.MustTimeOfDay("14:00"), EndTime: collision.MustTimeOfDay("19:00")},
		{Weekday: time.Wednesday, StartTime: collision.MustTimeOfDay("09:00"), EndTime: collision.MustTimeOfDay("13:00")},
		{Weekday: time.Thursday, StartTime: collision.MustTimeOfDay("14:00"), EndTime: collision.MustTimeOfDay("19:00")},
		{Weekday: time.Friday, StartTime: collision.MustTimeOfDay("09:00"), EndTime: collision.MustTimeOfDay("14:00")},
	}
)

// week is the generated agenda of one Monday-to-Sunday week.
type week struct {
	appointments []*scheduling.Appointment
	blocks       []*settings.Block
}

// Fixture synthesizes a believable, read-only clinic. The same seed always
// yields the same patients, and a given week always yields the same
// appointments and blocks. Only statuses of past appointments follow the
// clock.
type Fixture struct {
	seed     int64
	loc      *time.Location
	now      func() time.Time
	patients []*patient.Patient

	mu    sync.RWMutex
	weeks map[int64]*week
}

// NewFixture returns a fixture for seed in the clinic location. A zero seed
// uses DefaultSeed.
func NewFixture(seed int64, loc *time.Location) *Fixture {
	if seed == 0 {
		seed = DefaultSeed
	}
	if loc == nil {
		loc = time.Local
	}
	f := &Fixture{
		seed:  seed,
		loc:   loc,
		now:   time.Now,
		weeks: make(map[int64]*week),
	}
	f.patients = f.generatePatients()
	return f
}

func (f *Fixture) id(kind string, parts ...any) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(fmt.Sprintf("%s/%d/%v", kind, f.seed, parts)))
}

func (f *Fixture) generatePatients() []*patient.Patient {
	rng := rand.New(rand.NewSource(f.seed))
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]*patient.Patient, 0, fixturePatients)
	for i := 0; i < fixturePatients; i++ {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		phone := fmt.Sprintf("+54 11 %04d-%04d", 1000+rng.Intn(9000), rng.Intn(10000))
		email := fmt.Sprintf("%s.%s%d@example.com", asciiLower(first), asciiLower(last), i)
		p := &patient.Patient{
			ID:        f.id("patient", i),
			Name:      first + " " + last,
			Phone:     &phone,
			Email:     &email,
			CreatedAt: created,
			UpdatedAt: created,
		}
		if ins := insurers[rng.Intn(len(insurers))]; ins != "" {
			p.Insurance = &ins
		}
		if rng.Intn(4) == 0 {
			alias := first + " " + string([]rune(last)[:1]) + "."
			p.Alias = &alias
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var accentFold = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "Á", "a", "ñ", "n")

func asciiLower(s string) string {
	return strings.ToLower(accentFold.Replace(s))
}

// weekStart returns Monday 00:00 of the week containing t.
func (f *Fixture) weekStart(t time.Time) time.Time {
	day := collision.StartOfDay(t.In(f.loc))
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

func (f *Fixture) week(start time.Time) *week {
	key := start.Unix()
	f.mu.RLock()
	w, ok := f.weeks[key]
	f.mu.RUnlock()
	if ok {
		return w
	}
	w = f.generateWeek(start)
	f.mu.Lock()
	if len(f.weeks) >= maxCachedWeeks {
		f.weeks = make(map[int64]*week)
	}
	f.weeks[key] = w
	f.mu.Unlock()
	return w
}

// generateWeek fills the week's availability with appointments, leaving room
// for a Friday supervision block and, every fourth week, a congress day.
func (f *Fixture) generateWeek(start time.Time) *week {
	rng := rand.New(rand.NewSource(f.seed ^ start.Unix()))
	w := &week{}

	supervision := "Supervision"
	fri := start.AddDate(0, 0, 4)
	w.blocks = append(w.blocks, f.block(start, 0, fri.Add(12*time.Hour), fri.Add(14*time.Hour), &supervision))
	if (start.Unix()/int64(7*24*time.Hour/time.Second))%congressInterval == 0 {
		congress := "Congress"
		wed := start.AddDate(0, 0, 2)
		w.blocks = append(w.blocks, f.block(start, 1, wed, wed.AddDate(0, 0, 1), &congress))
	}
	cblocks := settings.CollisionBlocks(w.blocks)

	now := f.now()
	n := 0
	for d := 0; d < 7; d++ {
		day := start.AddDate(0, 0, d)
		for _, rule := range collision.RulesFor(day.Weekday(), fixtureRules) {
			window := rule.Window(day)
			for slot := window.Start; !slot.Add(slotLength).After(window.End); slot = slot.Add(slotLength + slotGap) {
				candidate := collision.Interval{Start: slot, End: slot.Add(slotLength)}
				if rng.Intn(10) < 4 || collision.HasBlockCollision(candidate, cblocks) {
					continue
				}
				w.appointments = append(w.appointments, f.appointment(rng, start, n, candidate, now))
				n++
			}
		}
	}
	return w
}

func (f *Fixture) block(weekStart time.Time, n int, from, to time.Time, reason *string) *settings.Block {
	return &settings.Block{
		ID:        f.id("block", weekStart.Unix(), n),
		StartAt:   from,
		EndAt:     to,
		Reason:    reason,
		CreatedAt: weekStart.AddDate(0, 0, -14),
		UpdatedAt: weekStart.AddDate(0, 0, -14),
	}
}

func (f *Fixture) appointment(rng *rand.Rand, weekStart time.Time, n int, iv collision.Interval, now time.Time) *scheduling.Appointment {
	p := f.patients[rng.Intn(len(f.patients))]
	a := &scheduling.Appointment{
		ID:          f.id("appointment", weekStart.Unix(), n),
		PatientID:   p.ID,
		PatientName: p.DisplayName(),
		StartAt:     iv.Start,
		EndAt:       iv.End,
		DurationMin: fixtureDuration,
		Status:      scheduling.StatusNew,
		PayStatus:   scheduling.PayPending,
		Price:       fixturePrice,
		Modality:    scheduling.ModalityInPerson,
		CreatedAt:   weekStart.AddDate(0, 0, -7),
		UpdatedAt:   weekStart.AddDate(0, 0, -7),
	}
	if rng.Intn(4) == 0 {
		a.Modality = scheduling.ModalityVirtual
	}
	// Draw both rolls so later slots do not depend on the current time.
	statusRoll, payRoll := rng.Intn(10), rng.Intn(6)
	if !iv.End.Before(now) {
		return a
	}
	switch statusRoll {
	case 0:
		a.Status = scheduling.StatusNoShow
	case 1:
		a.Status = scheduling.StatusCancelled
	default:
		a.Status = scheduling.StatusCompleted
		switch payRoll {
		case 0:
			a.PayStatus = scheduling.PayPartial
			a.PaidAmount = fixturePrice / 2
		case 1:
			a.PayStatus = scheduling.PayInsurancePending
		case 2:
			// pending
		default:
			a.PayStatus = scheduling.PayPaid
			a.PaidAmount = fixturePrice
		}
	}
	return a
}

func (f *Fixture) Profile(_ context.Context, scope tenant.Scope) (*settings.Profile, error) {
	p := settings.DefaultProfile(scope.TenantID, scope.ProfessionalID)
	p.DefaultPrice = fixturePrice
	p.DefaultDuration = fixtureDuration
	p.BufferBetweenAppointments = int(slotGap / time.Minute)
	return p, nil
}

func (f *Fixture) Availability(_ context.Context, scope tenant.Scope) ([]*settings.Availability, error) {
	out := make([]*settings.Availability, 0, len(fixtureRules))
	for i, r := range fixtureRules {
		out = append(out, &settings.Availability{
			ID:               f.id("availability", i),
			TenantID:         scope.TenantID,
			ProfessionalID:   scope.ProfessionalID,
			AvailabilityRule: r,
		})
	}
	return out, nil
}

func (f *Fixture) weeksIn(from, to time.Time) []*week {
	var out []*week
	for start := f.weekStart(from); start.Before(to); start = start.AddDate(0, 0, 7) {
		out = append(out, f.week(start))
	}
	return out
}

func (f *Fixture) Blocks(_ context.Context, scope tenant.Scope, from, to time.Time) ([]*settings.Block, error) {
	// Blocks may end exactly at from; start one week early to catch them.
	var all []*settings.Block
	for _, w := range f.weeksIn(from.AddDate(0, 0, -7), to) {
		for _, b := range w.blocks {
			cp := *b
			cp.TenantID = scope.TenantID
			cp.ProfessionalID = scope.ProfessionalID
			all = append(all, &cp)
		}
	}
	return settings.FilterBlocks(all, from, to), nil
}

func (f *Fixture) Appointments(_ context.Context, scope tenant.Scope, from, to time.Time) ([]*scheduling.Appointment, error) {
	out := []*scheduling.Appointment{}
	for _, w := range f.weeksIn(from, to) {
		for _, a := range w.appointments {
			if a.StartAt.Before(to) && a.EndAt.After(from) {
				out = append(out, f.scoped(a, scope))
			}
		}
	}
	return out, nil
}

func (f *Fixture) scoped(a *scheduling.Appointment, scope tenant.Scope) *scheduling.Appointment {
	cp := *a
	cp.TenantID = scope.TenantID
	cp.ProfessionalID = scope.ProfessionalID
	return &cp
}

// Appointment looks the id up within half a year of today.
func (f *Fixture) Appointment(_ context.Context, scope tenant.Scope, id uuid.UUID) (*scheduling.Appointment, error) {
	current := f.weekStart(f.now())
	for i := -lookupWeeks; i <= lookupWeeks; i++ {
		for _, a := range f.week(current.AddDate(0, 0, 7*i)).appointments {
			if a.ID == id {
				return f.scoped(a, scope), nil
			}
		}
	}
	return nil, scheduling.ErrNotFound
}

func (f *Fixture) Patient(_ context.Context, scope tenant.Scope, id uuid.UUID) (*patient.Patient, error) {
	for _, p := range f.patients {
		if p.ID == id {
			cp := *p
			cp.TenantID = scope.TenantID
			return &cp, nil
		}
	}
	return nil, patient.ErrNotFound
}

func (f *Fixture) Patients(_ context.Context, scope tenant.Scope, query string, limit, offset int) ([]*patient.Patient, int, error) {
	q := asciiLower(strings.TrimSpace(query))
	var matched []*patient.Patient
	for _, p := range f.patients {
		if q != "" && !strings.Contains(asciiLower(p.Name), q) &&
			(p.Alias == nil || !strings.Contains(asciiLower(*p.Alias), q)) {
			continue
		}
		cp := *p
		cp.TenantID = scope.TenantID
		matched = append(matched, &cp)
	}
	total := len(matched)
	if offset >= total {
		return []*patient.Patient{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}
