package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

var (
	demoScope = tenant.Scope{TenantID: uuid.New(), ProfessionalID: uuid.New(), UserID: "demo", Demo: true}
	// 2030-01-07 is a Monday.
	fixtureMonday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
)

func newTestFixture(seed int64) *Fixture {
	f := NewFixture(seed, time.UTC)
	f.now = func() time.Time { return fixtureMonday.AddDate(0, 0, 21) }
	return f
}

func TestFixture_Deterministic(t *testing.T) {
	ctx := context.Background()
	from, to := fixtureMonday, fixtureMonday.AddDate(0, 0, 28)

	a, b := newTestFixture(42), newTestFixture(42)
	pa, _, err := a.Patients(ctx, demoScope, "", 0, 0)
	require.NoError(t, err)
	pb, _, err := b.Patients(ctx, demoScope, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	aa, err := a.Appointments(ctx, demoScope, from, to)
	require.NoError(t, err)
	ab, err := b.Appointments(ctx, demoScope, from, to)
	require.NoError(t, err)
	require.NotEmpty(t, aa)
	assert.Equal(t, aa, ab)

	other := newTestFixture(7)
	po, _, err := other.Patients(ctx, demoScope, "", 0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, pa[0].ID, po[0].ID)
}

func TestFixture_ZeroSeedUsesDefault(t *testing.T) {
	assert.Equal(t, int64(DefaultSeed), NewFixture(0, nil).seed)
}

func TestFixture_StableAcrossClock(t *testing.T) {
	ctx := context.Background()
	from, to := fixtureMonday, fixtureMonday.AddDate(0, 0, 7)

	early := NewFixture(42, time.UTC)
	early.now = func() time.Time { return fixtureMonday.AddDate(0, 0, -1) }
	late := NewFixture(42, time.UTC)
	late.now = func() time.Time { return fixtureMonday.AddDate(0, 0, 30) }

	ae, err := early.Appointments(ctx, demoScope, from, to)
	require.NoError(t, err)
	al, err := late.Appointments(ctx, demoScope, from, to)
	require.NoError(t, err)
	require.Equal(t, len(ae), len(al))
	for i := range ae {
		assert.Equal(t, ae[i].ID, al[i].ID)
		assert.Equal(t, ae[i].StartAt, al[i].StartAt)
		assert.Equal(t, scheduling.StatusNew, ae[i].Status)
	}
}

// Every generated appointment must pass the same check a real booking does.
func TestFixture_AppointmentsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(DefaultSeed)
	from, to := fixtureMonday, fixtureMonday.AddDate(0, 0, 56)

	avail, err := f.Availability(ctx, demoScope)
	require.NoError(t, err)
	rules := settings.Rules(avail)
	blocks, err := f.Blocks(ctx, demoScope, from, to)
	require.NoError(t, err)
	cblocks := settings.CollisionBlocks(blocks)

	appts, err := f.Appointments(ctx, demoScope, from, to)
	require.NoError(t, err)
	require.NotEmpty(t, appts)

	for _, a := range appts {
		v := collision.Classify(a.Interval(), cblocks, rules)
		assert.False(t, v.Conflict, "appointment %s at %s: %v", a.ID, a.StartAt, v.Reasons.Names())
		assert.NoError(t, scheduling.ValidatePayment(a.PayStatus, a.PaidAmount, a.Price))
		assert.Equal(t, demoScope.TenantID, a.TenantID)
		assert.NotEmpty(t, a.PatientName)
	}
}

func TestFixture_Blocks(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(DefaultSeed)

	var congress int
	for w := 0; w < 8; w++ {
		start := fixtureMonday.AddDate(0, 0, 7*w)
		blocks, err := f.Blocks(ctx, demoScope, start, start.AddDate(0, 0, 7))
		require.NoError(t, err)

		var supervision bool
		for _, b := range blocks {
			require.NotNil(t, b.Reason)
			switch *b.Reason {
			case "Supervision":
				supervision = true
				assert.Equal(t, time.Friday, b.StartAt.Weekday())
			case "Congress":
				congress++
				assert.Equal(t, 24*time.Hour, b.EndAt.Sub(b.StartAt))
			}
		}
		assert.True(t, supervision, "week %d has no supervision block", w)
	}
	assert.Equal(t, 2, congress)
}

func TestFixture_PastAppointmentsHaveOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(DefaultSeed)
	appts, err := f.Appointments(ctx, demoScope, fixtureMonday, fixtureMonday.AddDate(0, 0, 42))
	require.NoError(t, err)

	now := f.now()
	for _, a := range appts {
		if a.EndAt.Before(now) {
			assert.NotEqual(t, scheduling.StatusNew, a.Status)
		} else {
			assert.Equal(t, scheduling.StatusNew, a.Status)
			assert.Equal(t, scheduling.PayPending, a.PayStatus)
		}
	}
}

func TestFixture_AppointmentLookup(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(DefaultSeed)
	appts, err := f.Appointments(ctx, demoScope, fixtureMonday, fixtureMonday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NotEmpty(t, appts)

	got, err := f.Appointment(ctx, demoScope, appts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, appts[0].StartAt, got.StartAt)

	_, err = f.Appointment(ctx, demoScope, uuid.New())
	assert.True(t, errors.Is(err, scheduling.ErrNotFound))
}

func TestFixture_Patients(t *testing.T) {
	ctx := context.Background()
	f := newTestFixture(DefaultSeed)

	all, total, err := f.Patients(ctx, demoScope, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, fixturePatients, total)
	assert.Len(t, all, fixturePatients)

	page, total, err := f.Patients(ctx, demoScope, "", 5, 15)
	require.NoError(t, err)
	assert.Equal(t, fixturePatients, total)
	assert.Len(t, page, 3)

	empty, _, err := f.Patients(ctx, demoScope, "", 5, 100)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Search folds accents on both sides.
	target := all[0]
	found, n, err := f.Patients(ctx, demoScope, asciiLower(target.Name), 0, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
	assert.Contains(t, found, target)

	got, err := f.Patient(ctx, demoScope, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Name, got.Name)

	_, err = f.Patient(ctx, demoScope, uuid.New())
	assert.True(t, errors.Is(err, patient.ErrNotFound))
}

func TestFixture_Profile(t *testing.T) {
	p, err := newTestFixture(DefaultSeed).Profile(context.Background(), demoScope)
	require.NoError(t, err)
	assert.Equal(t, float64(fixturePrice), p.DefaultPrice)
	assert.Equal(t, fixtureDuration, p.DefaultDuration)
	assert.Equal(t, 10, p.BufferBetweenAppointments)
}
