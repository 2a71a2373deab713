package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	addr string
	err  error
}

func (g stubGeocoder) Address(context.Context, float64, float64) (string, error) {
	return g.addr, g.err
}

type requestFixture struct {
	store    *memStore
	engine   *stubEngine
	notifier *recordingNotifier
	clock    *fakeClock
	svc      RequestService
}

func newRequestFixture(t *testing.T, geocoder Geocoder) *requestFixture {
	t.Helper()
	repo, store := newMemRepo()
	f := &requestFixture{
		store:    store,
		engine:   &stubEngine{},
		notifier: &recordingNotifier{},
		clock:    newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
	}
	quota := NewQuotaService(repo.Usage, 3, time.UTC, testLogger())
	cfg := utils.DispatchConfig{
		TTLNow:         10 * time.Minute,
		TTLWithin30Min: 30 * time.Minute,
		TTLWithin1Hour: time.Hour,
	}
	f.svc = NewRequestService(repo, quota, f.engine, f.notifier, geocoder, cfg, time.Second, f.clock.Now, testLogger())
	return f
}

func validShootRequest() *request.CreateShootRequest {
	lat, lng := 35.6595, 139.7005
	return &request.CreateShootRequest{
		GuestName:     "Aiko Tanaka",
		GuestPhone:    "+818012345678",
		GuestEmail:    "aiko@example.com",
		PartySize:     2,
		Latitude:      &lat,
		Longitude:     &lng,
		Type:          "portrait",
		Urgency:       "now",
		Duration:      30,
		Budget:        5000,
		PaymentMethod: "tokn_test",
	}
}

func TestCreateRequestSetsExpiryAndStartsDispatch(t *testing.T) {
	f := newRequestFixture(t, stubGeocoder{addr: "Shibuya Crossing"})
	guestID := uuid.New()

	res, err := f.svc.CreateRequest(context.Background(), guestID, validShootRequest())
	require.NoError(t, err)

	assert.Equal(t, entity.RequestStatusPending, res.Status)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), res.ExpiresAt)
	assert.Equal(t, 1, res.UsageCount)
	assert.Equal(t, 1, f.engine.startCount())

	stored := f.store.request(uuid.MustParse(res.ID))
	assert.Equal(t, guestID, stored.GuestID)
	require.NotNil(t, stored.Address)
	assert.Equal(t, "Shibuya Crossing", *stored.Address)
}

func TestCreateRequestGeocoderFailureOmitsAddress(t *testing.T) {
	f := newRequestFixture(t, stubGeocoder{err: errors.New("timeout")})

	res, err := f.svc.CreateRequest(context.Background(), uuid.New(), validShootRequest())
	require.NoError(t, err)
	assert.Nil(t, f.store.request(uuid.MustParse(res.ID)).Address)
}

func TestCreateRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *request.CreateShootRequest)
		field  string
	}{
		{name: "party too large", mutate: func(r *request.CreateShootRequest) { r.PartySize = 21 }, field: "party_size"},
		{name: "bad duration", mutate: func(r *request.CreateShootRequest) { r.Duration = 45 }, field: "duration"},
		{name: "latitude out of range", mutate: func(r *request.CreateShootRequest) { lat := 91.0; r.Latitude = &lat }, field: "latitude"},
		{name: "unknown type", mutate: func(r *request.CreateShootRequest) { r.Type = "wedding" }, field: "type"},
		{name: "negative budget", mutate: func(r *request.CreateShootRequest) { r.Budget = -1 }, field: "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRequestFixture(t, nil)
			req := validShootRequest()
			tt.mutate(req)

			_, err := f.svc.CreateRequest(context.Background(), uuid.New(), req)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
			assert.Equal(t, 0, f.engine.startCount())
		})
	}
}

func TestCreateRequestMonthlyCap(t *testing.T) {
	f := newRequestFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateRequest(ctx, uuid.New(), validShootRequest())
		require.NoError(t, err)
	}

	_, err := f.svc.CreateRequest(ctx, uuid.New(), validShootRequest())
	assert.ErrorIs(t, err, ErrUsageLimitExceeded)
	assert.Equal(t, 3, f.engine.startCount())

	// Email case does not make a new guest.
	other := validShootRequest()
	other.GuestEmail = "AIKO@example.com"
	_, err = f.svc.CreateRequest(ctx, uuid.New(), other)
	assert.ErrorIs(t, err, ErrUsageLimitExceeded)

	f.clock.Set(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	res, err := f.svc.CreateRequest(ctx, uuid.New(), validShootRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, res.UsageCount)
}

func TestGetRequestExpiresLazily(t *testing.T) {
	f := newRequestFixture(t, nil)
	req := seedRequest(f.store, f.clock.Now(), 10*time.Minute)
	owner := Actor{ID: req.GuestID, Role: entity.ActorGuest}

	res, err := f.svc.GetRequest(context.Background(), owner, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusPending, res.Status)

	f.clock.Advance(11 * time.Minute)
	res, err = f.svc.GetRequest(context.Background(), owner, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusExpired, res.Status)
	assert.Equal(t, 1, f.notifier.count(req.GuestID, entity.EventRequestExpired))

	_, err = f.svc.GetRequest(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorGuest}, req.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelRequest(t *testing.T) {
	f := newRequestFixture(t, nil)
	req := seedRequest(f.store, f.clock.Now(), 10*time.Minute)
	owner := Actor{ID: req.GuestID, Role: entity.ActorGuest}

	res, err := f.svc.CancelRequest(context.Background(), owner, req.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusCancelled, res.Status)
	assert.Equal(t, []uuid.UUID{req.ID}, f.engine.stopped)

	_, err = f.svc.CancelRequest(context.Background(), owner, req.ID.String())
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestExpiredRequestsNeverTransitionAgain(t *testing.T) {
	f := newRequestFixture(t, nil)
	stale := seedRequest(f.store, f.clock.Now(), 10*time.Minute)
	fresh := seedRequest(f.store, f.clock.Now(), time.Hour)

	f.clock.Advance(15 * time.Minute)
	n, err := f.svc.ExpireStale(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.RequestStatusExpired, f.store.request(stale.ID).Status)
	assert.Equal(t, entity.RequestStatusPending, f.store.request(fresh.ID).Status)

	n, err = f.svc.ExpireStale(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.CancelRequest(context.Background(), Actor{ID: stale.GuestID, Role: entity.ActorGuest}, stale.ID.String())
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, entity.RequestStatusExpired, f.store.request(stale.ID).Status)
	assert.Equal(t, 1, f.notifier.count(stale.GuestID, entity.EventRequestExpired))
}
