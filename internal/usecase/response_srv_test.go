package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type responseFixture struct {
	repo      *repository.Repository
	store     *memStore
	engine    *stubEngine
	notifier  *recordingNotifier
	events    *recordingPublisher
	processor *payment.MemoryProcessor
	clock     *fakeClock
	svc       ResponseService
}

func newResponseFixture(t *testing.T) *responseFixture {
	t.Helper()
	repo, store := newMemRepo()
	f := &responseFixture{
		repo:      repo,
		store:     store,
		engine:    &stubEngine{},
		notifier:  &recordingNotifier{},
		events:    &recordingPublisher{},
		processor: payment.NewMemoryProcessor(),
		clock:     newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
	}
	escrow := NewEscrowService(repo, f.processor, f.events, f.clock.Now, testLogger())
	f.svc = NewResponseService(repo, f.engine, escrow, NewFeeCalculator(testFeeConfig(), time.UTC), f.notifier, f.events, f.clock.Now, testLogger())
	return f
}

func TestRespondToOfferConcurrentAcceptsYieldOneBooking(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)

	const n = 8
	photographers := make([]uuid.UUID, n)
	for i := range photographers {
		photographers[i] = seedPhotographer(f.store, metersNorth(req.Latitude, float64(100*(i+1))), req.Longitude, 3000, f.clock.Now())
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		matched int
	)
	for _, id := range photographers {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			res, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), id, entity.OutcomeAccept)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				assert.NotNil(t, res.Booking)
			case errors.Is(err, ErrAlreadyMatched):
				matched++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, matched)
	assert.Equal(t, 1, f.store.bookingCount())
	assert.Equal(t, 1, f.store.activeBookings(req.ID))

	stored := f.store.request(req.ID)
	assert.Equal(t, entity.RequestStatusMatched, stored.Status)
	require.NotNil(t, stored.BookingID)

	b := f.store.booking(*stored.BookingID)
	assert.Equal(t, entity.BookingStatusMatched, b.Status)
	assert.Equal(t, entity.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, b.TotalAmount, b.PlatformFee+b.PhotographerEarnings)

	e := f.store.escrowFor(b.ID)
	assert.True(t, e.IsAuthorized())
	assert.Equal(t, b.TotalAmount, e.AuthorizedAmount)
	assert.Equal(t, 1, f.processor.Calls("authorize"))

	winner := f.store.availability(b.PhotographerID)
	require.NotNil(t, winner.CurrentBookingID)
	assert.Equal(t, b.ID, *winner.CurrentBookingID)

	assert.Equal(t, 1, f.notifier.count(req.GuestID, entity.EventMatchFound))
	assert.True(t, f.events.has("booking.matched"))
}

func TestRespondToOfferAuthorizationFailureReopensRequest(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 300), req.Longitude, 3000, f.clock.Now())

	f.processor.FailNext("authorize", payment.ErrDeclined)

	_, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)
	require.ErrorIs(t, err, ErrPaymentAuthorizationFailed)

	stored := f.store.request(req.ID)
	assert.Equal(t, entity.RequestStatusPending, stored.Status)
	assert.Nil(t, stored.BookingID)
	assert.Equal(t, 0, f.store.activeBookings(req.ID))

	a := f.store.availability(photographer)
	assert.Nil(t, a.CurrentBookingID)

	assert.Equal(t, 1, f.engine.startCount(), "dispatch restarts for the reopened request")
	assert.Equal(t, 1, f.notifier.count(req.GuestID, entity.EventPaymentFailed))
	assert.Equal(t, 1, f.notifier.count(photographer, entity.EventBookingCancelled))
}

func TestRespondToOfferAuthorizationFailureAfterTTLExpires(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 300), req.Longitude, 3000, f.clock.Now())

	// The hold attempt outlives the request's TTL.
	slow := &clockAdvancingProcessor{Processor: f.processor, clock: f.clock, by: 2 * time.Hour}
	f.processor.FailNext("authorize", payment.ErrDeclined)
	escrow := NewEscrowService(f.repo, slow, f.events, f.clock.Now, testLogger())
	svc := NewResponseService(f.repo, f.engine, escrow, NewFeeCalculator(testFeeConfig(), time.UTC), f.notifier, f.events, f.clock.Now, testLogger())

	_, err := svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)
	require.ErrorIs(t, err, ErrPaymentAuthorizationFailed)

	assert.Equal(t, entity.RequestStatusExpired, f.store.request(req.ID).Status)
	assert.Equal(t, 0, f.engine.startCount())
	assert.Equal(t, 1, f.notifier.count(req.GuestID, entity.EventRequestExpired))
}

type clockAdvancingProcessor struct {
	payment.Processor
	clock *fakeClock
	by    time.Duration
}

func (p *clockAdvancingProcessor) Authorize(ctx context.Context, in payment.AuthorizeInput) (string, error) {
	p.clock.Advance(p.by)
	return p.Processor.Authorize(ctx, in)
}

func TestRespondToOfferTerminalRequests(t *testing.T) {
	tests := []struct {
		name    string
		status  entity.RequestStatus
		ttl     time.Duration
		wantErr error
		want    entity.RequestStatus
	}{
		{name: "matched", status: entity.RequestStatusMatched, ttl: time.Hour, wantErr: ErrAlreadyMatched, want: entity.RequestStatusMatched},
		{name: "expired", status: entity.RequestStatusExpired, ttl: time.Hour, wantErr: ErrRequestExpired, want: entity.RequestStatusExpired},
		{name: "cancelled", status: entity.RequestStatusCancelled, ttl: time.Hour, wantErr: ErrInvalidStateTransition, want: entity.RequestStatusCancelled},
		{name: "pending past ttl", status: entity.RequestStatusPending, ttl: -time.Minute, wantErr: ErrRequestExpired, want: entity.RequestStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResponseFixture(t)
			req := seedRequest(f.store, f.clock.Now(), tt.ttl)
			req.Status = tt.status
			f.store.putRequest(req)
			photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 200), req.Longitude, 3000, f.clock.Now())

			for _, outcome := range []entity.OfferOutcome{entity.OutcomeAccept, entity.OutcomeDecline} {
				_, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, outcome)
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.want, f.store.request(req.ID).Status)
			assert.Equal(t, 0, f.store.bookingCount())
		})
	}
}

func TestRespondToOfferDeclineRecordsResponse(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 800), req.Longitude, 3000, f.clock.Now())

	res, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeDecline)
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeDecline, res.Outcome)
	assert.Nil(t, res.Booking)

	assert.Equal(t, 1, f.store.responsesFor(req.ID, entity.OutcomeDecline))
	assert.Equal(t, []uuid.UUID{photographer}, f.engine.declined)
	assert.Equal(t, entity.RequestStatusPending, f.store.request(req.ID).Status)
}

func TestRespondToOfferWithoutPostedRate(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)
	req.Type = entity.ShootEvent
	f.store.putRequest(req)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 200), req.Longitude, 3000, f.clock.Now())

	_, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "rates")
	assert.Equal(t, entity.RequestStatusPending, f.store.request(req.ID).Status)
}

func TestRespondToOfferBusyPhotographer(t *testing.T) {
	f := newResponseFixture(t)
	first := seedRequest(f.store, f.clock.Now(), time.Hour)
	second := seedRequest(f.store, f.clock.Now(), time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(first.Latitude, 200), first.Longitude, 3000, f.clock.Now())

	_, err := f.svc.RespondToOffer(context.Background(), first.ID.String(), photographer, entity.OutcomeAccept)
	require.NoError(t, err)

	_, err = f.svc.RespondToOffer(context.Background(), second.ID.String(), photographer, entity.OutcomeAccept)
	assert.ErrorIs(t, err, ErrAlreadyMatched)
	assert.Equal(t, entity.RequestStatusPending, f.store.request(second.ID).Status)
}

// lostReplyProcessor places the hold but reports the processor as unreachable.
type lostReplyProcessor struct {
	*payment.MemoryProcessor
	mu   sync.Mutex
	refs []string
}

func (p *lostReplyProcessor) Authorize(ctx context.Context, in payment.AuthorizeInput) (string, error) {
	ref, err := p.MemoryProcessor.Authorize(ctx, in)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.refs = append(p.refs, ref)
	p.mu.Unlock()
	return "", fmt.Errorf("%w: connection reset", payment.ErrUnavailable)
}

func TestRespondToOfferUnconfirmedAuthorizationIsVoided(t *testing.T) {
	tests := []struct {
		name          string
		voidFails     bool
		wantHeld      bool
		wantIntegrity bool
	}{
		{name: "hold released"},
		{name: "release fails", voidFails: true, wantHeld: true, wantIntegrity: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResponseFixture(t)
			req := seedRequest(f.store, f.clock.Now(), time.Hour)
			photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 300), req.Longitude, 3000, f.clock.Now())

			lost := &lostReplyProcessor{MemoryProcessor: f.processor}
			if tt.voidFails {
				f.processor.FailNext("void", payment.ErrUnavailable)
			}
			escrow := NewEscrowService(f.repo, lost, f.events, f.clock.Now, testLogger())
			svc := NewResponseService(f.repo, f.engine, escrow, NewFeeCalculator(testFeeConfig(), time.UTC), f.notifier, f.events, f.clock.Now, testLogger())

			_, err := svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)
			require.ErrorIs(t, err, ErrPaymentAuthorizationFailed)

			require.Len(t, lost.refs, 1)
			assert.Equal(t, 1, f.processor.Calls("void"))
			assert.Equal(t, tt.wantHeld, f.processor.Held(lost.refs[0]))
			assert.Equal(t, !tt.wantHeld, f.processor.Voided(lost.refs[0]))
			assert.Equal(t, tt.wantIntegrity, f.events.has("integrity.violation"))

			assert.Equal(t, entity.RequestStatusPending, f.store.request(req.ID).Status)
			assert.Nil(t, f.store.availability(photographer).CurrentBookingID)
		})
	}
}

func TestRespondToOfferDeclinedAuthorizationIsNotVoided(t *testing.T) {
	f := newResponseFixture(t)
	req := seedRequest(f.store, f.clock.Now(), time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 300), req.Longitude, 3000, f.clock.Now())

	f.processor.FailNext("authorize", payment.ErrDeclined)

	_, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)
	require.ErrorIs(t, err, ErrPaymentAuthorizationFailed)
	assert.Equal(t, 0, f.processor.Calls("void"))
}

func TestRespondToOfferPhotographerNotTakingRequests(t *testing.T) {
	tests := []struct {
		name      string
		online    bool
		accepting bool
	}{
		{name: "offline", online: false, accepting: true},
		{name: "paused", online: true, accepting: false},
		{name: "offline and paused", online: false, accepting: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResponseFixture(t)
			req := seedRequest(f.store, f.clock.Now(), time.Hour)
			photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 300), req.Longitude, 3000, f.clock.Now())

			a := f.store.availability(photographer)
			a.IsOnline = tt.online
			a.AcceptingRequests = tt.accepting
			f.store.putAvailability(&a)

			_, err := f.svc.RespondToOffer(context.Background(), req.ID.String(), photographer, entity.OutcomeAccept)
			require.ErrorIs(t, err, ErrForbidden)

			assert.Equal(t, entity.RequestStatusPending, f.store.request(req.ID).Status)
			assert.Equal(t, 0, f.store.bookingCount())
			assert.Equal(t, 0, f.processor.Calls("authorize"))
		})
	}
}
