package negotiation

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/store"
)

type fakeRequests struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.ServiceRequest
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{items: make(map[uuid.UUID]*domain.ServiceRequest)}
}

func (f *fakeRequests) Create(_ context.Context, req *domain.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.CreatedAt = time.Now()
	cp := *req
	f.items[req.ID] = &cp
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRequests) AdvanceState(_ context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advanceLocked(id, from, to), nil
}

func (f *fakeRequests) advanceLocked(id uuid.UUID, from []string, to string) bool {
	r, ok := f.items[id]
	if !ok || !slices.Contains(from, r.State) {
		return false
	}
	r.State = to
	return true
}

func (f *fakeRequests) ListByClient(_ context.Context, clientID uuid.UUID) ([]domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceRequest
	for _, r := range f.items {
		if r.ClientID == clientID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequests) ListOpen(_ context.Context) ([]domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceRequest
	for _, r := range f.items {
		if r.Live() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRequests) ListAll(_ context.Context) ([]domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceRequest
	for _, r := range f.items {
		out = append(out, *r)
	}
	return out, nil
}

type fakeOffers struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.Offer
	requests *fakeRequests
}

func newFakeOffers(requests *fakeRequests) *fakeOffers {
	return &fakeOffers{items: make(map[uuid.UUID]*domain.Offer), requests: requests}
}

func (f *fakeOffers) Create(ctx context.Context, offer *domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, err := f.requests.GetByID(ctx, offer.RequestID)
	if err != nil {
		return err
	}
	if !req.Live() {
		return domain.ErrRequestClosed
	}
	for _, o := range f.items {
		if o.RequestID == offer.RequestID && o.TechnicianID == offer.TechnicianID &&
			o.State != domain.OfferRejected {
			return domain.ErrDuplicateOffer
		}
	}
	offer.CreatedAt = time.Now()
	cp := *offer
	f.items[offer.ID] = &cp
	f.requests.AdvanceState(ctx, offer.RequestID,
		[]string{domain.RequestOpen}, domain.RequestBidding)
	return nil
}

func (f *fakeOffers) GetByID(_ context.Context, id uuid.UUID) (*domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.items[id]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOffers) ListByRequest(_ context.Context, requestID uuid.UUID) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Offer
	for _, o := range f.items {
		if o.RequestID == requestID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (f *fakeOffers) RejectLive(_ context.Context, requestID, exceptOfferID uuid.UUID) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rejectLiveLocked(requestID, exceptOfferID), nil
}

func (f *fakeOffers) rejectLiveLocked(requestID, exceptOfferID uuid.UUID) []domain.Offer {
	var rejected []domain.Offer
	for _, o := range f.items {
		if o.RequestID == requestID && o.State == domain.OfferSubmitted && o.ID != exceptOfferID {
			o.State = domain.OfferRejected
			rejected = append(rejected, *o)
		}
	}
	return rejected
}

// fakeAssignments mimics the Postgres store's transaction: one winner per
// request, enforced under a single lock the way the unique constraint does.
type fakeAssignments struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.Assignment
	byRequest map[uuid.UUID]*domain.Assignment
	offers    *fakeOffers
	requests  *fakeRequests
}

func newFakeAssignments(offers *fakeOffers, requests *fakeRequests) *fakeAssignments {
	return &fakeAssignments{
		byID:      make(map[uuid.UUID]*domain.Assignment),
		byRequest: make(map[uuid.UUID]*domain.Assignment),
		offers:    offers,
		requests:  requests,
	}
}

func (f *fakeAssignments) Select(_ context.Context, a *domain.Assignment) ([]domain.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byRequest[a.RequestID]; ok {
		return nil, domain.ErrAlreadyAssigned
	}

	f.offers.mu.Lock()
	defer f.offers.mu.Unlock()
	o, ok := f.offers.items[a.OfferID]
	if !ok || o.State != domain.OfferSubmitted {
		return nil, domain.ErrOfferNotLive
	}

	f.requests.mu.Lock()
	moved := f.requests.advanceLocked(a.RequestID,
		[]string{domain.RequestOpen, domain.RequestBidding}, domain.RequestAssigned)
	f.requests.mu.Unlock()
	if !moved {
		return nil, domain.ErrRequestClosed
	}

	o.State = domain.OfferSelected
	rejected := f.offers.rejectLiveLocked(a.RequestID, a.OfferID)

	a.CreatedAt = time.Now()
	cp := *a
	f.byID[a.ID] = &cp
	f.byRequest[a.RequestID] = &cp
	return rejected, nil
}

func (f *fakeAssignments) GetByID(_ context.Context, id uuid.UUID) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignments) GetByRequest(_ context.Context, requestID uuid.UUID) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byRequest[requestID]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignments) AdvanceState(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.State != from {
		return false, nil
	}
	a.State = to
	return true, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	requests *fakeRequests
	offers   *fakeOffers
	items    []domain.NegotiationMessage
}

func newFakeMessages(requests *fakeRequests, offers *fakeOffers) *fakeMessages {
	return &fakeMessages{requests: requests, offers: offers}
}

func (f *fakeMessages) guardLive(requestID uuid.UUID) error {
	req, err := f.requests.GetByID(context.Background(), requestID)
	if err != nil {
		return err
	}
	if !req.Live() {
		return domain.ErrChannelClosed
	}
	return nil
}

func (f *fakeMessages) CreateGroup(_ context.Context, msg *domain.NegotiationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guardLive(*msg.RequestID); err != nil {
		return err
	}
	msg.CreatedAt = time.Now()
	f.items = append(f.items, *msg)
	return nil
}

func (f *fakeMessages) CreateGroupWithOffer(ctx context.Context, msg *domain.NegotiationMessage, offer *domain.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guardLive(*msg.RequestID); err != nil {
		return err
	}
	if err := f.offers.Create(ctx, offer); err != nil {
		return err
	}
	msg.CreatedAt = time.Now()
	f.items = append(f.items, *msg)
	return nil
}

func (f *fakeMessages) CreatePrivate(_ context.Context, msg *domain.NegotiationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.CreatedAt = time.Now()
	f.items = append(f.items, *msg)
	return nil
}

func (f *fakeMessages) ListByRequest(_ context.Context, requestID uuid.UUID) ([]domain.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.NegotiationMessage
	for _, m := range f.items {
		if m.RequestID != nil && *m.RequestID == requestID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]domain.NegotiationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.NegotiationMessage
	for _, m := range f.items {
		if m.AssignmentID != nil && *m.AssignmentID == assignmentID {
			out = append(out, m)
		}
	}
	return out, nil
}

type sentNote struct {
	recipient uuid.UUID
	title     string
	body      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (f *fakeNotifier) Notify(_ context.Context, recipientID uuid.UUID, title, body string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNote{recipient: recipientID, title: title, body: body})
	return &domain.Notification{ID: uuid.New(), RecipientID: recipientID, Title: title, Body: body}, nil
}

func (f *fakeNotifier) NotifyAll(ctx context.Context, recipients []uuid.UUID, title, body string) int {
	for _, id := range recipients {
		_, _ = f.Notify(ctx, id, title, body)
	}
	return len(recipients)
}

func (f *fakeNotifier) sentTo(recipient uuid.UUID) []sentNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNote
	for _, n := range f.sent {
		if n.recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

type fakeRealtime struct {
	mu     sync.Mutex
	events map[string][]domain.Event
	closed []string
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{events: make(map[string][]domain.Event)}
}

func (f *fakeRealtime) Publish(key string, e domain.Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[key] = append(f.events[key], e)
	return 1
}

func (f *fakeRealtime) Close(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, key)
}

func (f *fakeRealtime) published(key string) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.events[key])
}

func (f *fakeRealtime) closedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.closed)
}

type fakeDirectory struct {
	categories  map[uuid.UUID]bool
	technicians []uuid.UUID
	profiles    map[uuid.UUID]*domain.Profile
}

func (f *fakeDirectory) CategoryExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.categories[id], nil
}

func (f *fakeDirectory) AvailableTechnicians(_ context.Context) ([]uuid.UUID, error) {
	return f.technicians, nil
}

func (f *fakeDirectory) Profile(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return &domain.Profile{UserID: userID}, nil
}

type fixture struct {
	service   *Service
	requests  *fakeRequests
	offers    *fakeOffers
	assigns   *fakeAssignments
	messages  *fakeMessages
	notifier  *fakeNotifier
	realtime  *fakeRealtime
	directory *fakeDirectory
}

func newFixture() *fixture {
	requests := newFakeRequests()
	offers := newFakeOffers(requests)
	assigns := newFakeAssignments(offers, requests)
	messages := newFakeMessages(requests, offers)
	notifier := &fakeNotifier{}
	realtime := newFakeRealtime()
	directory := &fakeDirectory{
		categories: make(map[uuid.UUID]bool),
		profiles:   make(map[uuid.UUID]*domain.Profile),
	}
	stores := &store.Stores{
		Requests:      requests,
		Offers:        offers,
		Assignments:   assigns,
		Messages:      messages,
		Directory:     directory,
	}
	return &fixture{
		service:   NewService(stores, realtime, notifier, zerolog.Nop()),
		requests:  requests,
		offers:    offers,
		assigns:   assigns,
		messages:  messages,
		notifier:  notifier,
		realtime:  realtime,
		directory: directory,
	}
}

func (fx *fixture) seedRequest(clientID uuid.UUID, state string) *domain.ServiceRequest {
	req := &domain.ServiceRequest{
		ID:          uuid.New(),
		ClientID:    clientID,
		Description: "leaky kitchen faucet",
		State:       state,
	}
	_ = fx.requests.Create(context.Background(), req)
	return req
}

func (fx *fixture) seedOffer(requestID, technicianID uuid.UUID, price float64) *domain.Offer {
	offer := &domain.Offer{
		ID:           uuid.New(),
		RequestID:    requestID,
		TechnicianID: technicianID,
		Price:        price,
		State:        domain.OfferSubmitted,
	}
	if err := fx.offers.Create(context.Background(), offer); err != nil {
		panic(err)
	}
	return offer
}
