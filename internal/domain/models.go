package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceRequest lifecycle states.
const (
	RequestOpen       = "open"
	RequestBidding    = "bidding"
	RequestAssigned   = "assigned"
	RequestInProgress = "in_progress"
	RequestCompleted  = "completed"
	RequestCancelled  = "cancelled"
)

// Offer states.
const (
	OfferSubmitted = "submitted"
	OfferSelected  = "selected"
	OfferRejected  = "rejected"
)

// Assignment execution states.
const (
	AssignmentEnRoute    = "en_route"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
)

// Actor roles carried in the auth context.
const (
	RoleClient     = "client"
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// Actor is the authenticated identity every operation receives. The core
// trusts it and never re-validates credentials.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

type ServiceRequest struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       uuid.UUID  `json:"client_id"`
	CategoryID     *uuid.UUID `json:"category_id,omitempty"`
	Description    string     `json:"description"`
	LocationText   string     `json:"location_text"`
	Lat            *float64   `json:"lat,omitempty"`
	Lon            *float64   `json:"lon,omitempty"`
	SuggestedPrice *float64   `json:"suggested_price,omitempty"`
	Photos         []string   `json:"photos,omitempty"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Live reports whether the request still accepts offers and group messages.
func (r *ServiceRequest) Live() bool {
	return r.State == RequestOpen || r.State == RequestBidding
}

type Offer struct {
	ID           uuid.UUID `json:"id"`
	RequestID    uuid.UUID `json:"request_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Price        float64   `json:"price"`
	Message      string    `json:"message"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

type Assignment struct {
	ID           uuid.UUID `json:"id"`
	RequestID    uuid.UUID `json:"request_id"`
	OfferID      uuid.UUID `json:"offer_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Price        float64   `json:"price"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// NextAssignmentState returns the immediate successor of an assignment state
// and false when the state is terminal.
func NextAssignmentState(state string) (string, bool) {
	switch state {
	case AssignmentEnRoute:
		return AssignmentInProgress, true
	case AssignmentInProgress:
		return AssignmentCompleted, true
	default:
		return "", false
	}
}

// NegotiationMessage belongs to exactly one channel scope: RequestID is set
// while the channel is group-scoped, AssignmentID after migration to the
// private channel. Never both.
type NegotiationMessage struct {
	ID           uuid.UUID  `json:"id"`
	RequestID    *uuid.UUID `json:"request_id,omitempty"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	SenderID     uuid.UUID  `json:"sender_id"`
	Body         string     `json:"body"`
	Price        *float64   `json:"price,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Notification struct {
	ID          uuid.UUID `json:"id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is the public slice of a user exposed to channel members, looked up
// through the read-only directory collaborator.
type Profile struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
}
