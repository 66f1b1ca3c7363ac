package domain

import "errors"

// State-conflict and lookup errors surfaced by the negotiation operations.
// Callers must re-fetch state before retrying; the core never retries these.
var (
	ErrRequestNotFound       = errors.New("request not found")
	ErrRequestClosed         = errors.New("request no longer accepts offers")
	ErrDuplicateOffer        = errors.New("technician already has a live offer on this request")
	ErrNotOwner              = errors.New("actor is not the request owner")
	ErrOfferNotFound         = errors.New("offer not found")
	ErrOfferNotLive          = errors.New("offer is not live")
	ErrAlreadyAssigned       = errors.New("request already has an assignment")
	ErrAssignmentNotFound    = errors.New("assignment not found")
	ErrNotAssignedTechnician = errors.New("actor is not the assigned technician")
	ErrInvalidTransition     = errors.New("invalid assignment state transition")
	ErrChannelClosed         = errors.New("negotiation channel is closed")
	ErrNotChannelMember      = errors.New("actor is not a member of this channel")
	ErrNotificationNotFound  = errors.New("notification not found")
)

// ErrModelUnavailable is the definitive answer from the ranking service that
// no model is loaded. It is never retried; callers degrade to an unranked
// listing instead.
var ErrModelUnavailable = errors.New("recommendation model unavailable")
