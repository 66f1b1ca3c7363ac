package negotiation

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/channel"
	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/store"
)

// Notifier is the slice of the notification fan-out the service uses.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, title, body string) (*domain.Notification, error)
	NotifyAll(ctx context.Context, recipients []uuid.UUID, title, body string) int
}

// Realtime is the slice of the channel router the service uses.
type Realtime interface {
	Publish(key string, e domain.Event) int
	Close(key string)
}

// Service owns every mutation of requests, offers and assignments. No other
// code path touches their state columns.
type Service struct {
	stores   *store.Stores
	realtime Realtime
	notifier Notifier
	log      zerolog.Logger
}

func NewService(stores *store.Stores, realtime Realtime, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{stores: stores, realtime: realtime, notifier: notifier, log: log}
}

type CreateRequestInput struct {
	CategoryID     *uuid.UUID
	Description    string
	LocationText   string
	Lat            *float64
	Lon            *float64
	SuggestedPrice *float64
	Photos         []string
}

// CreateRequest persists a new open request, announces it on the technicians
// broadcast channel and fans a notification out to every available
// technician. Fan-out problems never fail the creation.
func (s *Service) CreateRequest(ctx context.Context, actor domain.Actor, input CreateRequestInput) (*domain.ServiceRequest, error) {
	if input.CategoryID != nil {
		exists, err := s.stores.Directory.CategoryExists(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("unknown category %s", input.CategoryID)
		}
	}

	req := &domain.ServiceRequest{
		ID:             uuid.New(),
		ClientID:       actor.UserID,
		CategoryID:     input.CategoryID,
		Description:    input.Description,
		LocationText:   input.LocationText,
		Lat:            input.Lat,
		Lon:            input.Lon,
		SuggestedPrice: input.SuggestedPrice,
		Photos:         input.Photos,
		State:          domain.RequestOpen,
	}
	if err := s.stores.Requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.realtime.Publish(domain.TechniciansChannel, domain.Event{
		Type: domain.EventRequestCreated,
		Data: req,
	})

	technicians, err := s.stores.Directory.AvailableTechnicians(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("technician lookup failed, skipping fan-out")
		return req, nil
	}
	s.notifier.NotifyAll(ctx, technicians, "New service request",
		summarize(req.Description)+" - "+priceText(req.SuggestedPrice))

	return req, nil
}

// SubmitOffer records a technician's bid. The first offer moves the request
// from open to bidding inside the store's transaction, which also re-checks
// liveness under lock: a bid racing a selection or cancellation rolls back
// with ErrRequestClosed instead of landing on a closed request. A duplicate
// live bid surfaces as ErrDuplicateOffer straight from the uniqueness
// constraint.
func (s *Service) SubmitOffer(ctx context.Context, actor domain.Actor, requestID uuid.UUID, price float64, message string) (*domain.Offer, error) {
	req, err := s.stores.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Live() {
		return nil, domain.ErrRequestClosed
	}

	offer := &domain.Offer{
		ID:           uuid.New(),
		RequestID:    requestID,
		TechnicianID: actor.UserID,
		Price:        price,
		Message:      message,
		State:        domain.OfferSubmitted,
	}
	if err := s.stores.Offers.Create(ctx, offer); err != nil {
		return nil, err
	}

	s.realtime.Publish(domain.RequestChannel(requestID), domain.Event{
		Type: domain.EventOfferCreated,
		Data: offer,
	})
	if _, err := s.notifier.Notify(ctx, req.ClientID, "New offer received",
		fmt.Sprintf("A technician offered %.2f", price)); err != nil {
		s.log.Warn().Err(err).Msg("client notification failed")
	}
	return offer, nil
}

// SelectOffer is the single atomic step of the subsystem. Two concurrent
// calls for the same request resolve to exactly one winner; the loser gets
// ErrAlreadyAssigned from the assignment store's uniqueness constraint.
func (s *Service) SelectOffer(ctx context.Context, actor domain.Actor, requestID, offerID uuid.UUID) (*domain.Assignment, error) {
	req, err := s.stores.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != req.ClientID {
		return nil, domain.ErrNotOwner
	}

	offer, err := s.stores.Offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.RequestID != requestID {
		return nil, domain.ErrOfferNotFound
	}

	a := &domain.Assignment{
		ID:           uuid.New(),
		RequestID:    requestID,
		OfferID:      offerID,
		TechnicianID: offer.TechnicianID,
		Price:        offer.Price,
		State:        domain.AssignmentEnRoute,
	}
	rejected, err := s.stores.Assignments.Select(ctx, a)
	if err != nil {
		return nil, err
	}

	s.migrateChannels(ctx, req, a, rejected)
	return a, nil
}

// migrateChannels runs the group -> private migration protocol after a
// successful selection.
func (s *Service) migrateChannels(ctx context.Context, req *domain.ServiceRequest, a *domain.Assignment, rejected []domain.Offer) {
	groupKey := domain.RequestChannel(req.ID)

	var winner *domain.Profile
	if p, err := s.stores.Directory.Profile(ctx, a.TechnicianID); err == nil {
		winner = p
	}
	s.realtime.Publish(groupKey, domain.Event{
		Type: domain.EventAssignmentCreated,
		Data: map[string]any{
			"request_id":    req.ID,
			"assignment_id": a.ID,
			"technician_id": a.TechnicianID,
			"technician":    winner,
		},
	})

	for _, o := range rejected {
		userKey := domain.UserChannel(o.TechnicianID)
		s.realtime.Publish(userKey, domain.Event{
			Type: domain.EventOfferRejected,
			Data: map[string]any{"offer_id": o.ID, "request_id": req.ID},
		})
		s.realtime.Publish(userKey, domain.Event{
			Type: domain.EventChannelClosed,
			Data: map[string]any{"key": groupKey, "reason": "request assigned to another technician"},
		})
		if _, err := s.notifier.Notify(ctx, o.TechnicianID, "Request assigned",
			"The client selected another offer"); err != nil {
			s.log.Warn().Err(err).Msg("loser notification failed")
		}
	}

	privateKey := domain.AssignmentChannel(a.ID)
	joinSignal := domain.Event{
		Type: domain.EventChannelJoin,
		Data: map[string]any{"key": privateKey, "assignment_id": a.ID},
	}
	s.realtime.Publish(domain.UserChannel(req.ClientID), joinSignal)
	s.realtime.Publish(domain.UserChannel(a.TechnicianID), joinSignal)

	// The group channel is retired; the store-level state guard already
	// rejects any message that raced past this point.
	s.realtime.Close(groupKey)

	if _, err := s.notifier.Notify(ctx, a.TechnicianID, "Offer selected",
		"The client chose your offer"); err != nil {
		s.log.Warn().Err(err).Msg("winner notification failed")
	}
}

// AdvanceAssignment moves the execution state forward by exactly one step.
func (s *Service) AdvanceAssignment(ctx context.Context, actor domain.Actor, assignmentID uuid.UUID, nextState string) (*domain.Assignment, error) {
	a, err := s.stores.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != a.TechnicianID {
		return nil, domain.ErrNotAssignedTechnician
	}

	successor, ok := domain.NextAssignmentState(a.State)
	if !ok || nextState != successor {
		return nil, domain.ErrInvalidTransition
	}
	moved, err := s.stores.Assignments.AdvanceState(ctx, assignmentID, a.State, nextState)
	if err != nil {
		return nil, err
	}
	if !moved {
		// The stored state changed underneath us.
		return nil, domain.ErrInvalidTransition
	}
	a.State = nextState

	// Mirror the execution state onto the request lifecycle.
	switch nextState {
	case domain.AssignmentInProgress:
		_, err = s.stores.Requests.AdvanceState(ctx, a.RequestID,
			[]string{domain.RequestAssigned}, domain.RequestInProgress)
	case domain.AssignmentCompleted:
		_, err = s.stores.Requests.AdvanceState(ctx, a.RequestID,
			[]string{domain.RequestInProgress, domain.RequestAssigned}, domain.RequestCompleted)
	}
	if err != nil {
		return nil, err
	}

	s.realtime.Publish(domain.AssignmentChannel(a.ID), domain.Event{
		Type: domain.EventAssignmentUpdated,
		Data: map[string]any{"assignment_id": a.ID, "state": a.State},
	})

	if req, err := s.stores.Requests.GetByID(ctx, a.RequestID); err == nil {
		title := "Service update"
		body := "Your technician is " + a.State
		if nextState == domain.AssignmentCompleted {
			title = "Service completed"
			body = fmt.Sprintf("The service finished at the agreed price of %.2f", a.Price)
		}
		if _, err := s.notifier.Notify(ctx, req.ClientID, title, body); err != nil {
			s.log.Warn().Err(err).Msg("client notification failed")
		}
		if nextState == domain.AssignmentCompleted {
			if _, err := s.notifier.Notify(ctx, a.TechnicianID, title,
				fmt.Sprintf("Service closed at the agreed price of %.2f", a.Price)); err != nil {
				s.log.Warn().Err(err).Msg("technician notification failed")
			}
		}
	}
	return a, nil
}

// CancelRequest closes a request that has not been assigned yet, rejecting
// every live offer.
func (s *Service) CancelRequest(ctx context.Context, actor domain.Actor, requestID uuid.UUID) error {
	req, err := s.stores.Requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if actor.UserID != req.ClientID && actor.Role != domain.RoleAdmin {
		return domain.ErrNotOwner
	}

	moved, err := s.stores.Requests.AdvanceState(ctx, requestID,
		[]string{domain.RequestOpen, domain.RequestBidding}, domain.RequestCancelled)
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrRequestClosed
	}

	rejected, err := s.stores.Offers.RejectLive(ctx, requestID, uuid.Nil)
	if err != nil {
		s.log.Error().Err(err).Str("request", requestID.String()).Msg("rejecting offers after cancel failed")
	}

	groupKey := domain.RequestChannel(requestID)
	s.realtime.Publish(groupKey, domain.Event{
		Type: domain.EventRequestCancelled,
		Data: map[string]any{"request_id": requestID},
	})
	s.realtime.Close(groupKey)

	for _, o := range rejected {
		if _, err := s.notifier.Notify(ctx, o.TechnicianID, "Request cancelled",
			"The client cancelled the request"); err != nil {
			s.log.Warn().Err(err).Msg("bidder notification failed")
		}
	}
	return nil
}

func summarize(description string) string {
	if utf8.RuneCountInString(description) <= 100 {
		return description
	}
	runes := []rune(description)
	return string(runes[:100]) + "..."
}

func priceText(price *float64) string {
	if price == nil {
		return "negotiable"
	}
	return fmt.Sprintf("%.2f", *price)
}

// compile-time check: the service satisfies the socket gateway.
var _ channel.Gateway = (*Service)(nil)
