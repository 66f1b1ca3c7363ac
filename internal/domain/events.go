package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Event types published to channel subscribers.
const (
	EventRequestCreated      = "request.created"
	EventRequestCancelled    = "request.cancelled"
	EventOfferCreated        = "offer.created"
	EventOfferRejected       = "offer.rejected"
	EventAssignmentCreated   = "assignment.created"
	EventAssignmentUpdated   = "assignment.updated"
	EventMessageCreated      = "message.created"
	EventChannelClosed       = "channel.closed"
	EventChannelJoin         = "channel.join"
	EventNotificationCreated = "notification.created"
	EventTyping              = "typing"
)

// Event is the unit of real-time delivery. Data is any JSON-marshalable
// payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TechniciansChannel is the broadcast key every connected technician joins to
// hear about newly opened requests.
const TechniciansChannel = "technicians"

// RequestChannel is the routing key of the group negotiation channel for a
// request.
func RequestChannel(requestID uuid.UUID) string {
	return fmt.Sprintf("request:%s", requestID)
}

// AssignmentChannel is the routing key of the private execution channel for
// an assignment.
func AssignmentChannel(assignmentID uuid.UUID) string {
	return fmt.Sprintf("assignment:%s", assignmentID)
}

// UserChannel is the per-user key used for targeted real-time delivery
// (notifications, channel migration signals).
func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID)
}
