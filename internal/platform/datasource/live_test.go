package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

// memoryCache stores JSON like the Redis cache does, so round trips are real.
type memoryCache struct {
	data    map[string][]byte
	gets    int
	failGet bool
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func cacheKey(scope tenant.Scope, kind string) string {
	return scope.TenantID.String() + "/" + scope.ProfessionalID.String() + "/" + kind
}

func (m *memoryCache) Get(_ context.Context, scope tenant.Scope, kind string, dst any) (bool, error) {
	m.gets++
	if m.failGet {
		return false, errors.New("connection refused")
	}
	raw, ok := m.data[cacheKey(scope, kind)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryCache) Set(_ context.Context, scope tenant.Scope, kind string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[cacheKey(scope, kind)] = raw
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, scope tenant.Scope) error {
	prefix := scope.TenantID.String() + "/" + scope.ProfessionalID.String() + "/"
	for k := range m.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }
func (m *memoryCache) Close() error               { return nil }

// The embedded interfaces stay nil; only the reads Live performs are stubbed.
type countingProfiles struct {
	settings.ProfileRepository
	profile *settings.Profile
	calls   int
}

func (r *countingProfiles) Get(context.Context, tenant.Scope) (*settings.Profile, error) {
	r.calls++
	if r.profile == nil {
		return nil, settings.ErrNotFound
	}
	return r.profile, nil
}

type countingAvailability struct {
	settings.AvailabilityRepository
	items []*settings.Availability
	calls int
}

func (r *countingAvailability) List(context.Context, tenant.Scope) ([]*settings.Availability, error) {
	r.calls++
	return r.items, nil
}

type countingBlocks struct {
	settings.BlockRepository
	items []*settings.Block
	calls int
	err   error
}

func (r *countingBlocks) ListEndingAfter(_ context.Context, _ tenant.Scope, from time.Time) ([]*settings.Block, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	var out []*settings.Block
	for _, b := range r.items {
		if !b.EndAt.Before(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

type passthroughAppointments struct {
	scheduling.AppointmentRepository
	items []*scheduling.Appointment
}

func (r *passthroughAppointments) ListRange(context.Context, tenant.Scope, time.Time, time.Time) ([]*scheduling.Appointment, error) {
	return r.items, nil
}

func (r *passthroughAppointments) GetByID(_ context.Context, _ tenant.Scope, id uuid.UUID) (*scheduling.Appointment, error) {
	for _, a := range r.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, scheduling.ErrNotFound
}

type passthroughPatients struct {
	patient.Repository
	items []*patient.Patient
}

func (r *passthroughPatients) GetByID(_ context.Context, _ tenant.Scope, id uuid.UUID) (*patient.Patient, error) {
	for _, p := range r.items {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, patient.ErrNotFound
}

func (r *passthroughPatients) List(context.Context, tenant.Scope, string, int, int) ([]*patient.Patient, int, error) {
	return r.items, len(r.items), nil
}

var liveScope = tenant.Scope{TenantID: uuid.New(), ProfessionalID: uuid.New(), UserID: "dr-rivas"}

type liveFixture struct {
	live         *Live
	cache        *memoryCache
	profiles     *countingProfiles
	availability *countingAvailability
	blocks       *countingBlocks
	appointments *passthroughAppointments
	patients     *passthroughPatients
}

func newLiveFixture() *liveFixture {
	reason := "vacation"
	f := &liveFixture{
		cache:    newMemoryCache(),
		profiles: &countingProfiles{},
		availability: &countingAvailability{items: []*settings.Availability{
			{ID: uuid.New(), AvailabilityRule: fixtureRules[0]},
		}},
		blocks: &countingBlocks{items: []*settings.Block{
			{ID: uuid.New(), StartAt: fixtureMonday.Add(10 * time.Hour), EndAt: fixtureMonday.Add(11 * time.Hour)},
			{ID: uuid.New(), StartAt: fixtureMonday.AddDate(0, 0, 14), EndAt: fixtureMonday.AddDate(0, 0, 21), Reason: &reason},
		}},
		appointments: &passthroughAppointments{items: []*scheduling.Appointment{{ID: uuid.New(), StartAt: fixtureMonday}}},
		patients:     &passthroughPatients{items: []*patient.Patient{{ID: uuid.New(), Name: "Ana Pérez"}}},
	}
	f.live = NewLive(Repositories{
		Profiles:     f.profiles,
		Availability: f.availability,
		Blocks:       f.blocks,
		Patients:     f.patients,
		Appointments: f.appointments,
	}, f.cache, zerolog.Nop())
	return f
}

func TestLive_ProfileDefaultsWhenMissing(t *testing.T) {
	f := newLiveFixture()
	p, err := f.live.Profile(context.Background(), liveScope)
	require.NoError(t, err)
	assert.Equal(t, "ARS", p.Currency)
	assert.Equal(t, 50, p.DefaultDuration)
	assert.Equal(t, liveScope.ProfessionalID, p.ProfessionalID)
}

func TestLive_ProfileIsCached(t *testing.T) {
	f := newLiveFixture()
	f.profiles.profile = &settings.Profile{Currency: "USD", DefaultPrice: 80, DefaultDuration: 45}

	for i := 0; i < 3; i++ {
		p, err := f.live.Profile(context.Background(), liveScope)
		require.NoError(t, err)
		assert.Equal(t, "USD", p.Currency)
		assert.Equal(t, 45, p.DefaultDuration)
	}
	assert.Equal(t, 1, f.profiles.calls)

	require.NoError(t, f.cache.Invalidate(context.Background(), liveScope))
	_, err := f.live.Profile(context.Background(), liveScope)
	require.NoError(t, err)
	assert.Equal(t, 2, f.profiles.calls)
}

func TestLive_AvailabilityIsCached(t *testing.T) {
	f := newLiveFixture()
	for i := 0; i < 2; i++ {
		items, err := f.live.Availability(context.Background(), liveScope)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, time.Monday, items[0].Weekday)
		assert.Equal(t, fixtureRules[0].StartTime, items[0].StartTime)
	}
	assert.Equal(t, 1, f.availability.calls)
}

func TestLive_EmptyAvailabilityIsCachedToo(t *testing.T) {
	f := newLiveFixture()
	f.availability.items = nil
	for i := 0; i < 2; i++ {
		items, err := f.live.Availability(context.Background(), liveScope)
		require.NoError(t, err)
		assert.Empty(t, items)
	}
	assert.Equal(t, 1, f.availability.calls)
}

func TestLive_BlocksFilteredFromCache(t *testing.T) {
	f := newLiveFixture()
	ctx := context.Background()

	week1, err := f.live.Blocks(ctx, liveScope, fixtureMonday, fixtureMonday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, week1, 1)
	assert.Nil(t, week1[0].Reason)

	week3, err := f.live.Blocks(ctx, liveScope, fixtureMonday.AddDate(0, 0, 14), fixtureMonday.AddDate(0, 0, 21))
	require.NoError(t, err)
	require.Len(t, week3, 1)
	require.NotNil(t, week3[0].Reason)
	assert.Equal(t, "vacation", *week3[0].Reason)

	assert.Equal(t, 1, f.blocks.calls)
}

func TestLive_BlocksError(t *testing.T) {
	f := newLiveFixture()
	f.blocks.err = errors.New("db down")
	_, err := f.live.Blocks(context.Background(), liveScope, fixtureMonday, fixtureMonday.AddDate(0, 0, 7))
	assert.Error(t, err)
	assert.Empty(t, f.cache.data)
}

func TestLive_CacheFailureFallsBackToRepo(t *testing.T) {
	f := newLiveFixture()
	f.cache.failGet = true
	for i := 0; i < 2; i++ {
		_, err := f.live.Availability(context.Background(), liveScope)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.availability.calls)
}

func TestLive_NilCacheUsesNop(t *testing.T) {
	f := newLiveFixture()
	live := NewLive(Repositories{Availability: f.availability}, nil, zerolog.Nop())
	for i := 0; i < 2; i++ {
		_, err := live.Availability(context.Background(), liveScope)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.availability.calls)
}

func TestLive_PassThrough(t *testing.T) {
	f := newLiveFixture()
	ctx := context.Background()

	appts, err := f.live.Appointments(ctx, liveScope, fixtureMonday, fixtureMonday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, appts, 1)

	a, err := f.live.Appointment(ctx, liveScope, appts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, appts[0].ID, a.ID)

	_, err = f.live.Patient(ctx, liveScope, uuid.New())
	assert.True(t, errors.Is(err, patient.ErrNotFound))

	list, total, err := f.live.Patients(ctx, liveScope, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Ana Pérez", list[0].Name)
}
