package usecase

import (
	"context"
	"testing"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/internal/dto/request"
	"photo-dispatch/pkg/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	repo      *repository.Repository
	store     *memStore
	notifier  *recordingNotifier
	events    *recordingPublisher
	processor *payment.MemoryProcessor
	clock     *fakeClock
	escrow    EscrowService
	svc       BookingService
	disputes  DisputeService
}

func newBookingFixture(t *testing.T, retries int) *bookingFixture {
	t.Helper()
	repo, store := newMemRepo()
	f := &bookingFixture{
		repo:      repo,
		store:     store,
		notifier:  &recordingNotifier{},
		events:    &recordingPublisher{},
		processor: payment.NewMemoryProcessor(),
		clock:     newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
	}
	processor := payment.WithRetry(f.processor, payment.NewRetryManager(retries, time.Millisecond), testLogger())
	f.escrow = NewEscrowService(repo, processor, f.events, f.clock.Now, testLogger())
	f.svc = NewBookingService(repo, f.escrow, f.notifier, f.events, f.clock.Now, testLogger())
	f.disputes = NewDisputeService(repo, f.escrow, f.notifier, f.events, f.clock.Now, testLogger())
	return f
}

// seedBooking stores a matched booking with an authorized hold, as the
// accept path leaves it.
func (f *bookingFixture) seedBooking(t *testing.T, status entity.BookingStatus) *entity.Booking {
	t.Helper()
	now := f.clock.Now()
	req := seedRequest(f.store, now, time.Hour)
	photographer := seedPhotographer(f.store, metersNorth(req.Latitude, 400), req.Longitude, 3000, now)

	b := &entity.Booking{
		Base:           entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Code:           "SHOOT-20260310-120000-0001",
		RequestID:      req.ID,
		PhotographerID: photographer,
		GuestID:        req.GuestID,
		Status:         status,
		Fees: entity.Fees{
			BaseAmount:           3000,
			TotalAmount:          3000,
			PlatformFee:          600,
			PhotographerEarnings: 2400,
		},
		PaymentStatus: entity.PaymentStatusPending,
	}
	f.store.putBooking(b)

	a := f.store.availability(photographer)
	a.CurrentBookingID = &b.ID
	f.store.putAvailability(&a)

	req.Status = entity.RequestStatusMatched
	req.BookingID = &b.ID
	f.store.putRequest(req)

	f.store.putEscrow(&entity.EscrowTransaction{
		BookingID:        b.ID,
		PaymentMethod:    req.PaymentMethod,
		AuthorizedAmount: b.TotalAmount,
		AuthorizeKey:     entity.IdempotencyKey(b.ID, entity.EscrowAuthorize),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, f.escrow.Authorize(context.Background(), b, req.PaymentMethod))
	return b
}

func guest(b *entity.Booking) Actor { return Actor{ID: b.GuestID, Role: entity.ActorGuest} }

func photographerActor(b *entity.Booking) Actor {
	return Actor{ID: b.PhotographerID, Role: entity.ActorPhotographer}
}

func TestConfirmDeliveryTwiceCapturesOnce(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusInProgress)
	rating := 5

	first, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), &request.ConfirmDeliveryRequest{Rating: &rating})
	require.NoError(t, err)
	second, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), &request.ConfirmDeliveryRequest{Rating: &rating})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusCompleted, first.Status)
	assert.Equal(t, entity.PaymentStatusPaid, second.PaymentStatus)
	assert.Equal(t, 1, f.processor.Calls("capture"))

	e := f.store.escrowFor(b.ID)
	assert.Equal(t, int64(3000), e.CapturedAmount)
	assert.Equal(t, int64(3000), f.processor.Captured(*e.AuthorizationRef))

	a := f.store.availability(b.PhotographerID)
	assert.Nil(t, a.CurrentBookingID)
	assert.Equal(t, 11, a.RatingCount, "rating folded in once")

	assert.Equal(t, 1, f.notifier.count(b.PhotographerID, entity.EventPaymentReceived))
	assert.Equal(t, 1, f.notifier.count(b.GuestID, entity.EventBookingCompleted))
	assert.True(t, f.events.has("booking.completed"))
}

func TestConfirmDeliveryRequiresInProgress(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusMatched)

	_, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, 0, f.processor.Calls("capture"))
}

func TestConfirmDeliveryOnlyByGuest(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusInProgress)

	_, err := f.svc.ConfirmDelivery(context.Background(), photographerActor(b), b.ID.String(), nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ConfirmDelivery(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorGuest}, b.ID.String(), nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfirmDeliveryCaptureFailureThenRetry(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusInProgress)

	f.processor.FailNext("capture", payment.ErrUnavailable, payment.ErrUnavailable, payment.ErrUnavailable)

	_, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), nil)
	require.ErrorIs(t, err, ErrPaymentCaptureFailed)
	assert.Equal(t, 3, f.processor.Calls("capture"))

	stored := f.store.booking(b.ID)
	assert.Equal(t, entity.BookingStatusInProgress, stored.Status)
	assert.Equal(t, entity.PaymentStatusFailed, stored.PaymentStatus)
	assert.True(t, f.events.has("payment.capture_failed"))

	e := f.store.escrowFor(b.ID)
	require.NotNil(t, e.CaptureKey)
	assert.Equal(t, entity.IdempotencyKey(b.ID, entity.EscrowCapture), *e.CaptureKey)

	res, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), nil)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPaid, res.PaymentStatus)
	assert.Equal(t, int64(3000), f.processor.Captured(*e.AuthorizationRef))
}

func TestStartBooking(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusMatched)

	_, err := f.svc.StartBooking(context.Background(), guest(b), b.ID.String())
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := f.svc.StartBooking(context.Background(), photographerActor(b), b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusInProgress, res.Status)
	assert.NotNil(t, res.StartedAt)

	_, err = f.svc.StartBooking(context.Background(), photographerActor(b), b.ID.String())
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestCancelBookingRefundsHold(t *testing.T) {
	for _, status := range []entity.BookingStatus{entity.BookingStatusMatched, entity.BookingStatusInProgress} {
		t.Run(string(status), func(t *testing.T) {
			f := newBookingFixture(t, 3)
			b := f.seedBooking(t, status)

			res, err := f.svc.CancelBooking(context.Background(), photographerActor(b), b.ID.String(), &request.CancelRequest{Reason: "rain"})
			require.NoError(t, err)
			assert.Equal(t, entity.BookingStatusCancelled, res.Status)
			assert.Equal(t, entity.PaymentStatusRefunded, res.PaymentStatus)
			require.NotNil(t, res.CancelledBy)
			assert.Equal(t, entity.ActorPhotographer, *res.CancelledBy)

			e := f.store.escrowFor(b.ID)
			assert.Equal(t, int64(3000), e.RefundedAmount)
			assert.Equal(t, int64(3000), f.processor.Refunded(*e.AuthorizationRef))

			a := f.store.availability(b.PhotographerID)
			assert.Nil(t, a.CurrentBookingID)
			assert.Equal(t, f.clock.Now(), a.IdleSince)

			assert.Equal(t, 1, f.notifier.count(b.GuestID, entity.EventBookingCancelled))
		})
	}
}

func TestCancelBookingAfterCompletion(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusInProgress)
	_, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), nil)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), guest(b), b.ID.String(), nil)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, 0, f.processor.Calls("refund"))
}

func TestListPhotographerBookingsPaginates(t *testing.T) {
	f := newBookingFixture(t, 3)
	b := f.seedBooking(t, entity.BookingStatusMatched)

	res, err := f.svc.ListPhotographerBookings(context.Background(), b.PhotographerID, &request.PaginatedRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Pagination.Total)
	require.Len(t, res.Data, 1)
	assert.Equal(t, b.ID.String(), res.Data[0].ID)
}

func TestResolveDispute(t *testing.T) {
	t.Run("full refund of a matched booking", func(t *testing.T) {
		f := newBookingFixture(t, 3)
		b := f.seedBooking(t, entity.BookingStatusMatched)

		res, err := f.disputes.ResolveDispute(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorAdmin}, b.ID.String(),
			&request.ResolveDisputeRequest{Decision: DecisionRefundFull, Note: "no show"})
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusCancelled, res.Booking.Status)
		assert.Equal(t, entity.PaymentStatusRefunded, res.Booking.PaymentStatus)
		require.NotNil(t, res.Escrow)
		assert.Equal(t, int64(3000), res.Escrow.RefundedAmount)
		assert.True(t, f.events.has("dispute.resolved"))
	})

	t.Run("partial refund after capture", func(t *testing.T) {
		f := newBookingFixture(t, 3)
		b := f.seedBooking(t, entity.BookingStatusInProgress)
		_, err := f.svc.ConfirmDelivery(context.Background(), guest(b), b.ID.String(), nil)
		require.NoError(t, err)

		res, err := f.disputes.ResolveDispute(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorAdmin}, b.ID.String(),
			&request.ResolveDisputeRequest{Decision: DecisionRefundPartial, Amount: 1000})
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusPartiallyRefunded, res.Booking.PaymentStatus)
		assert.Equal(t, int64(1000), res.Escrow.RefundedAmount)
	})

	t.Run("partial refund of an uncaptured hold", func(t *testing.T) {
		f := newBookingFixture(t, 3)
		b := f.seedBooking(t, entity.BookingStatusInProgress)

		_, err := f.disputes.ResolveDispute(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorAdmin}, b.ID.String(),
			&request.ResolveDisputeRequest{Decision: DecisionRefundPartial, Amount: 1000})
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("release captures", func(t *testing.T) {
		f := newBookingFixture(t, 3)
		b := f.seedBooking(t, entity.BookingStatusInProgress)

		res, err := f.disputes.ResolveDispute(context.Background(), Actor{ID: uuid.New(), Role: entity.ActorAdmin}, b.ID.String(),
			&request.ResolveDisputeRequest{Decision: DecisionRelease})
		require.NoError(t, err)
		assert.Equal(t, entity.BookingStatusCompleted, res.Booking.Status)
		assert.Equal(t, int64(3000), res.Escrow.CapturedAmount)
	})

	t.Run("admins only", func(t *testing.T) {
		f := newBookingFixture(t, 3)
		b := f.seedBooking(t, entity.BookingStatusInProgress)

		_, err := f.disputes.ResolveDispute(context.Background(), guest(b), b.ID.String(),
			&request.ResolveDisputeRequest{Decision: DecisionRefundFull})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}
