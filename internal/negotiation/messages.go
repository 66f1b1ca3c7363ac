package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/servimatch/servimatch/internal/channel"
	"github.com/servimatch/servimatch/internal/domain"
)

// Authorize decides whether the actor may join a channel. The group channel
// accepts the owning client and any technician (they may be about to bid);
// the private channel only its two parties. Admins can observe everything.
func (s *Service) Authorize(ctx context.Context, actor domain.Actor, key string) error {
	kind, id, err := channel.ParseKey(key)
	if err != nil {
		return err
	}
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	switch kind {
	case channel.KindTechnicians:
		if actor.Role != domain.RoleTechnician {
			return domain.ErrNotChannelMember
		}
		return nil

	case channel.KindRequest:
		req, err := s.stores.Requests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor.UserID == req.ClientID || actor.Role == domain.RoleTechnician {
			return nil
		}
		return domain.ErrNotChannelMember

	case channel.KindAssignment:
		a, err := s.stores.Assignments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		req, err := s.stores.Requests.GetByID(ctx, a.RequestID)
		if err != nil {
			return err
		}
		if actor.UserID == a.TechnicianID || actor.UserID == req.ClientID {
			return nil
		}
		return domain.ErrNotChannelMember
	}
	return domain.ErrNotChannelMember
}

// SendGroupMessage appends to a request's group channel. A priced message
// from a technician is an implicit bid: the message and the mirrored offer
// commit in one transaction, so a visible bid always has a backing offer.
func (s *Service) SendGroupMessage(ctx context.Context, actor domain.Actor, requestID uuid.UUID, body string, price *float64) (*domain.NegotiationMessage, error) {
	req, err := s.stores.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Live() {
		return nil, domain.ErrChannelClosed
	}
	if actor.UserID != req.ClientID && actor.Role != domain.RoleTechnician {
		return nil, domain.ErrNotChannelMember
	}

	// Only technicians bid; a price sent by the client is ignored.
	isBid := price != nil && *price > 0 && actor.Role == domain.RoleTechnician

	msg := &domain.NegotiationMessage{
		ID:        uuid.New(),
		RequestID: &requestID,
		SenderID:  actor.UserID,
		Body:      body,
	}
	var offer *domain.Offer
	if isBid {
		msg.Price = price
		offer = &domain.Offer{
			ID:           uuid.New(),
			RequestID:    requestID,
			TechnicianID: actor.UserID,
			Price:        *price,
			Message:      body,
			State:        domain.OfferSubmitted,
		}
		if err := s.stores.Messages.CreateGroupWithOffer(ctx, msg, offer); err != nil {
			return nil, err
		}
	} else {
		if err := s.stores.Messages.CreateGroup(ctx, msg); err != nil {
			return nil, err
		}
	}

	groupKey := domain.RequestChannel(requestID)
	s.realtime.Publish(groupKey, domain.Event{Type: domain.EventMessageCreated, Data: msg})

	if offer != nil {
		s.realtime.Publish(groupKey, domain.Event{Type: domain.EventOfferCreated, Data: offer})
		if _, err := s.notifier.Notify(ctx, req.ClientID, "New offer received",
			fmt.Sprintf("A technician offered %.2f", offer.Price)); err != nil {
			s.log.Warn().Err(err).Msg("client notification failed")
		}
	} else if actor.UserID != req.ClientID {
		if _, err := s.notifier.Notify(ctx, req.ClientID, "New message", summarize(body)); err != nil {
			s.log.Warn().Err(err).Msg("client notification failed")
		}
	}
	return msg, nil
}

// SendPrivateMessage appends to an assignment's private channel and notifies
// the other party.
func (s *Service) SendPrivateMessage(ctx context.Context, actor domain.Actor, assignmentID uuid.UUID, body string) (*domain.NegotiationMessage, error) {
	a, err := s.stores.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	req, err := s.stores.Requests.GetByID(ctx, a.RequestID)
	if err != nil {
		return nil, err
	}
	if actor.UserID != a.TechnicianID && actor.UserID != req.ClientID {
		return nil, domain.ErrNotChannelMember
	}

	msg := &domain.NegotiationMessage{
		ID:           uuid.New(),
		AssignmentID: &assignmentID,
		SenderID:     actor.UserID,
		Body:         body,
	}
	if err := s.stores.Messages.CreatePrivate(ctx, msg); err != nil {
		return nil, err
	}

	s.realtime.Publish(domain.AssignmentChannel(assignmentID),
		domain.Event{Type: domain.EventMessageCreated, Data: msg})

	recipient := req.ClientID
	if actor.UserID == req.ClientID {
		recipient = a.TechnicianID
	}
	if _, err := s.notifier.Notify(ctx, recipient, "New message", summarize(body)); err != nil {
		s.log.Warn().Err(err).Msg("counterpart notification failed")
	}
	return msg, nil
}

// GroupHistory returns the group channel transcript for a member.
func (s *Service) GroupHistory(ctx context.Context, actor domain.Actor, requestID uuid.UUID) ([]domain.NegotiationMessage, error) {
	if err := s.Authorize(ctx, actor, domain.RequestChannel(requestID)); err != nil {
		return nil, err
	}
	return s.stores.Messages.ListByRequest(ctx, requestID)
}

// PrivateHistory returns the private channel transcript for a member.
func (s *Service) PrivateHistory(ctx context.Context, actor domain.Actor, assignmentID uuid.UUID) ([]domain.NegotiationMessage, error) {
	if err := s.Authorize(ctx, actor, domain.AssignmentChannel(assignmentID)); err != nil {
		return nil, err
	}
	return s.stores.Messages.ListByAssignment(ctx, assignmentID)
}
