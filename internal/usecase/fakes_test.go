package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"photo-dispatch/internal/data/entity"
	"photo-dispatch/internal/data/repository"
	"photo-dispatch/pkg/notify"
	"photo-dispatch/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memStore backs every repository interface with maps guarded by one mutex,
// so the multi-row transitions are atomic like their SQL counterparts.
type memStore struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]*entity.ShootRequest
	avail     map[uuid.UUID]*entity.PhotographerAvailability
	responses []*entity.OfferResponse
	bookings  map[uuid.UUID]*entity.Booking
	escrow    map[uuid.UUID]*entity.EscrowTransaction
	usage     map[string]int
}

func newMemRepo() (*repository.Repository, *memStore) {
	s := &memStore{
		requests: make(map[uuid.UUID]*entity.ShootRequest),
		avail:    make(map[uuid.UUID]*entity.PhotographerAvailability),
		bookings: make(map[uuid.UUID]*entity.Booking),
		escrow:   make(map[uuid.UUID]*entity.EscrowTransaction),
		usage:    make(map[string]int),
	}
	return &repository.Repository{
		Request:      memRequests{s},
		Availability: memAvailability{s},
		Response:     memResponses{s},
		Booking:      memBookings{s},
		Escrow:       memEscrow{s},
		Usage:        memUsage{s},
		Match:        memMatch{s},
	}, s
}

func (s *memStore) putRequest(r *entity.ShootRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.requests[r.ID] = &c
}

func (s *memStore) putAvailability(a *entity.PhotographerAvailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.avail[a.PhotographerID] = &c
}

func (s *memStore) putBooking(b *entity.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *b
	s.bookings[b.ID] = &c
}

func (s *memStore) putEscrow(e *entity.EscrowTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.escrow[e.BookingID] = &c
}

func (s *memStore) request(id uuid.UUID) entity.ShootRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.requests[id]
}

func (s *memStore) availability(id uuid.UUID) entity.PhotographerAvailability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.avail[id]
}

func (s *memStore) booking(id uuid.UUID) entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *memStore) escrowFor(id uuid.UUID) entity.EscrowTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.escrow[id]
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *memStore) activeBookings(requestID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.RequestID == requestID && b.Status != entity.BookingStatusCancelled {
			n++
		}
	}
	return n
}

func (s *memStore) responsesFor(requestID uuid.UUID, outcome entity.OfferOutcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.responses {
		if r.RequestID == requestID && r.Outcome == outcome {
			n++
		}
	}
	return n
}

func (s *memStore) release(photographerID, bookingID uuid.UUID, now time.Time) {
	if a, ok := s.avail[photographerID]; ok && a.CurrentBookingID != nil && *a.CurrentBookingID == bookingID {
		a.CurrentBookingID = nil
		a.IdleSince = now
	}
}

type memRequests struct{ *memStore }

func (m memRequests) CreateWithUsage(_ context.Context, req *entity.ShootRequest, guestKey, month string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := guestKey + "/" + month
	if m.usage[k] >= limit {
		return 0, repository.ErrQuotaExhausted
	}
	m.usage[k]++
	c := *req
	m.requests[req.ID] = &c
	return m.usage[k], nil
}

func (m memRequests) FindByID(_ context.Context, id uuid.UUID) (*entity.ShootRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m memRequests) ListPending(_ context.Context, now time.Time) ([]*entity.ShootRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ShootRequest
	for _, r := range m.requests {
		if r.Status == entity.RequestStatusPending && now.Before(r.ExpiresAt) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memRequests) transition(id uuid.UUID, to entity.RequestStatus, now time.Time) bool {
	r, ok := m.requests[id]
	if !ok || r.Status != entity.RequestStatusPending {
		return false
	}
	r.Status = to
	r.UpdatedAt = now
	return true
}

func (m memRequests) Expire(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(id, entity.RequestStatusExpired, now), nil
}

func (m memRequests) ExpireStale(_ context.Context, now time.Time, limit int) ([]*entity.ShootRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ShootRequest
	for _, r := range m.requests {
		if len(out) >= limit {
			break
		}
		if r.IsStale(now) {
			m.transition(r.ID, entity.RequestStatusExpired, now)
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m memRequests) Cancel(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(id, entity.RequestStatusCancelled, now), nil
}

type memAvailability struct{ *memStore }

func (m memAvailability) Upsert(_ context.Context, a *entity.PhotographerAvailability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.avail[a.PhotographerID]; ok {
		cur.Latitude, cur.Longitude, cur.AccuracyMeters = a.Latitude, a.Longitude, a.AccuracyMeters
		cur.IsOnline, cur.AcceptingRequests = a.IsOnline, a.AcceptingRequests
		cur.ResponseRadiusM, cur.Rates, cur.UpdatedAt = a.ResponseRadiusM, a.Rates, a.UpdatedAt
		return nil
	}
	c := *a
	m.avail[a.PhotographerID] = &c
	return nil
}

func (m memAvailability) FindByPhotographerID(_ context.Context, id uuid.UUID) (*entity.PhotographerAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.avail[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (m memAvailability) FindEligibleInBox(_ context.Context, box repository.BoundingBox) ([]*entity.PhotographerAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PhotographerAvailability
	for _, a := range m.avail {
		if !a.IsEligible() {
			continue
		}
		if a.Latitude < box.MinLat || a.Latitude > box.MaxLat || a.Longitude < box.MinLng || a.Longitude > box.MaxLng {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	// map order is random; keep results stable for ranking ties
	sort.Slice(out, func(i, j int) bool { return out[i].PhotographerID.String() < out[j].PhotographerID.String() })
	return out, nil
}

func (m memAvailability) RecordResponseLatency(_ context.Context, id uuid.UUID, latencyMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.avail[id]; ok {
		a.AvgResponseMs = (a.AvgResponseMs*int64(a.ResponseCount) + latencyMs) / int64(a.ResponseCount+1)
		a.ResponseCount++
	}
	return nil
}

type memResponses struct{ *memStore }

func (m memResponses) Create(_ context.Context, r *entity.OfferResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.responses = append(m.responses, &c)
	return nil
}

func (m memResponses) FindByRequestID(_ context.Context, id uuid.UUID) ([]*entity.OfferResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.OfferResponse
	for _, r := range m.responses {
		if r.RequestID == id {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

type memBookings struct{ *memStore }

func (m memBookings) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (m memBookings) FindByPhotographerID(_ context.Context, id uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*entity.Booking
	for _, b := range m.bookings {
		if b.PhotographerID == id {
			c := *b
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(len(all), offset+limit)], nil
}

func (m memBookings) CountByPhotographerID(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bookings {
		if b.PhotographerID == id {
			n++
		}
	}
	return n, nil
}

func (m memBookings) Start(_ context.Context, id, photographerID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.PhotographerID != photographerID || b.Status != entity.BookingStatusMatched {
		return false, nil
	}
	b.Status = entity.BookingStatusInProgress
	b.StartedAt = &now
	return true, nil
}

func (m memBookings) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status entity.PaymentStatus, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.PaymentStatus = status
	}
	return nil
}

type memEscrow struct{ *memStore }

func (m memEscrow) FindByBookingID(_ context.Context, id uuid.UUID) (*entity.EscrowTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escrow[id]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (m memEscrow) MarkAuthorized(_ context.Context, id uuid.UUID, ref string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.escrow[id]; ok {
		e.AuthorizationRef = &ref
		e.AuthorizedAt = &now
	}
	return nil
}

func (m memEscrow) RecordFailure(_ context.Context, id uuid.UUID, op entity.EscrowOperation, key, reason string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.escrow[id]; ok {
		e.LastError = &reason
		switch op {
		case entity.EscrowCapture:
			e.CaptureKey = &key
		case entity.EscrowRefund:
			e.RefundKey = &key
		}
	}
	return nil
}

type memUsage struct{ *memStore }

func (m memUsage) Count(_ context.Context, guestKey, month string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[guestKey+"/"+month], nil
}

type memMatch struct{ *memStore }

func (m memMatch) Accept(_ context.Context, p repository.AcceptParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := p.Booking

	r, ok := m.requests[b.RequestID]
	if !ok {
		return repository.ErrRequestNotFound
	}
	switch r.Status {
	case entity.RequestStatusMatched:
		return repository.ErrRequestMatched
	case entity.RequestStatusCancelled:
		return repository.ErrRequestClosed
	case entity.RequestStatusExpired:
		return repository.ErrRequestExpired
	}
	if !p.Now.Before(r.ExpiresAt) {
		return repository.ErrRequestExpired
	}
	a, ok := m.avail[b.PhotographerID]
	if !ok || a.CurrentBookingID != nil {
		return repository.ErrPhotographerBusy
	}

	r.Status = entity.RequestStatusMatched
	r.MatchedPhotographerID = &b.PhotographerID
	r.BookingID = &b.ID
	id := b.ID
	a.CurrentBookingID = &id

	bc := *b
	m.bookings[b.ID] = &bc
	rc := *p.Response
	m.responses = append(m.responses, &rc)
	ec := *p.Escrow
	m.escrow[b.ID] = &ec
	return nil
}

func (m memMatch) RevertAuthorization(_ context.Context, p repository.RevertParams) (entity.RequestStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[p.BookingID]
	if !ok || b.Status != entity.BookingStatusMatched {
		return "", repository.ErrStaleState
	}
	by := entity.ActorSystem
	b.Status = entity.BookingStatusCancelled
	b.PaymentStatus = entity.PaymentStatusFailed
	b.CancelledBy = &by
	b.CancelledAt = &p.Now
	m.release(p.PhotographerID, p.BookingID, p.Now)
	if e, ok := m.escrow[p.BookingID]; ok {
		reason := p.Reason
		e.LastError = &reason
	}

	r := m.requests[p.RequestID]
	r.MatchedPhotographerID = nil
	r.BookingID = nil
	if p.Now.Before(r.ExpiresAt) {
		r.Status = entity.RequestStatusPending
	} else {
		r.Status = entity.RequestStatusExpired
	}
	return r.Status, nil
}

func (m memMatch) Complete(_ context.Context, p repository.CompleteParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[p.BookingID]
	if !ok || b.Status != entity.BookingStatusInProgress {
		return false, nil
	}
	b.Status = entity.BookingStatusCompleted
	b.PaymentStatus = entity.PaymentStatusPaid
	b.CompletedAt = &p.Now

	e := m.escrow[p.BookingID]
	key := p.CaptureKey
	e.CapturedAmount = p.CapturedAmount
	e.CaptureKey = &key
	e.CapturedAt = &p.Now
	e.LastError = nil

	m.release(p.PhotographerID, p.BookingID, p.Now)
	if p.Rating != nil {
		a := m.avail[p.PhotographerID]
		a.RatingAvg = (a.RatingAvg*float64(a.RatingCount) + float64(*p.Rating)) / float64(a.RatingCount+1)
		a.RatingCount++
	}
	return true, nil
}

func (m memMatch) Cancel(_ context.Context, p repository.CancelParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[p.BookingID]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range p.From {
		if b.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}

	by := p.By
	b.Status = entity.BookingStatusCancelled
	b.PaymentStatus = p.PaymentStatus
	b.CancelledBy = &by
	b.CancelledAt = &p.Now

	if p.RefundKey != "" {
		e := m.escrow[p.BookingID]
		key := p.RefundKey
		e.RefundedAmount += p.RefundedAmount
		e.RefundKey = &key
		e.RefundedAt = &p.Now
	}
	m.release(p.PhotographerID, p.BookingID, p.Now)
	return true, nil
}

// recordingNotifier keeps every event instead of delivering it.
type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e entity.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) Subscribe(uuid.UUID) *notify.Subscription { return nil }

func (n *recordingNotifier) count(user uuid.UUID, t entity.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.UserID == user && e.Type == t {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) Unread(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (n *recordingNotifier) MarkRead(context.Context, uuid.UUID) error       { return nil }

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		if k == key {
			return true
		}
	}
	return false
}

// stubEngine records what the services asked of the matching engine.
type stubEngine struct {
	mu       sync.Mutex
	started  []uuid.UUID
	stopped  []uuid.UUID
	declined []uuid.UUID
	matched  []uuid.UUID
}

func (e *stubEngine) Start(req *entity.ShootRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, req.ID)
}

func (e *stubEngine) Stop(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = append(e.stopped, id)
}

func (e *stubEngine) Declined(_, photographerID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.declined = append(e.declined, photographerID)
}

func (e *stubEngine) Matched(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matched = append(e.matched, id)
}

func (e *stubEngine) Offer(uuid.UUID, uuid.UUID) (Offer, bool) { return Offer{}, false }
func (e *stubEngine) Running(uuid.UUID) bool                   { return false }
func (e *stubEngine) Resume(context.Context) (int, error)      { return 0, nil }
func (e *stubEngine) Shutdown()                                {}

func (e *stubEngine) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.started)
}

// fakeClock is a settable clock for the services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func testLogger() *zap.Logger { return zap.NewNop() }

func testRanking() utils.RankingConfig {
	return utils.RankingConfig{
		WeightDistance: 0.4,
		WeightRating:   0.3,
		WeightLatency:  0.15,
		WeightPrice:    0.15,
		DefaultLatency: 30 * time.Second,
		SearchRadius:   10000,
		MaxLatency:     90 * time.Second,
	}
}

// metersNorth offsets a point by roughly d meters of latitude.
func metersNorth(lat float64, d float64) float64 {
	return lat + d/111195.0
}

func portraitRates(amount int64) entity.RateCard {
	return entity.RateCard{entity.ShootPortrait: {"30": amount, "60": amount * 2}}
}

func seedPhotographer(s *memStore, lat, lng float64, rate int64, idle time.Time) uuid.UUID {
	id := uuid.New()
	s.putAvailability(&entity.PhotographerAvailability{
		PhotographerID:    id,
		Latitude:          lat,
		Longitude:         lng,
		IsOnline:          true,
		AcceptingRequests: true,
		ResponseRadiusM:   5000,
		Rates:             portraitRates(rate),
		RatingAvg:         4.5,
		RatingCount:       10,
		IdleSince:         idle,
		UpdatedAt:         idle,
	})
	return id
}

func seedRequest(s *memStore, now time.Time, ttl time.Duration) *entity.ShootRequest {
	req := &entity.ShootRequest{
		Base:            entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		GuestID:         uuid.New(),
		GuestName:       "Aiko",
		GuestPhone:      "+818012345678",
		Latitude:        35.6595,
		Longitude:       139.7005,
		Type:            entity.ShootPortrait,
		Urgency:         entity.UrgencyWithin1Hour,
		DurationMinutes: 30,
		Budget:          5000,
		PartySize:       2,
		PaymentMethod:   "tokn_test",
		Status:          entity.RequestStatusPending,
		ExpiresAt:       now.Add(ttl),
	}
	s.putRequest(req)
	return req
}
