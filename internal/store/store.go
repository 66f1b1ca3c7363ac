package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/servimatch/servimatch/internal/domain"
)

type Requests interface {
	Create(ctx context.Context, req *domain.ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
	// AdvanceState moves the request from one of the given states to the
	// target state. Returns false when the request was not in any of them.
	AdvanceState(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.ServiceRequest, error)
	ListOpen(ctx context.Context) ([]domain.ServiceRequest, error)
	ListAll(ctx context.Context) ([]domain.ServiceRequest, error)
}

type Offers interface {
	// Create inserts a submitted offer. The request's liveness is re-checked
	// under lock inside the same transaction: a closed request surfaces as
	// domain.ErrRequestClosed, and the first offer advances the request
	// open -> bidding. A live offer by the same technician on the same
	// request surfaces as domain.ErrDuplicateOffer.
	Create(ctx context.Context, offer *domain.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.Offer, error)
	// RejectLive marks every live offer on the request as rejected, except
	// the given one (uuid.Nil rejects all), and returns the offers it
	// rejected.
	RejectLive(ctx context.Context, requestID, exceptOfferID uuid.UUID) ([]domain.Offer, error)
}

type Assignments interface {
	// Select is the single atomic step of the subsystem: in one transaction
	// it inserts the assignment, marks the winning offer selected, rejects
	// the other live offers and advances the request to assigned. A
	// concurrent winner surfaces as domain.ErrAlreadyAssigned; a request
	// that closed underneath the caller rolls the whole transaction back
	// with domain.ErrRequestClosed.
	Select(ctx context.Context, a *domain.Assignment) (rejected []domain.Offer, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error)
	GetByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Assignment, error)
	// AdvanceState moves the assignment from the expected state to the next
	// one. Returns false when the stored state no longer matches.
	AdvanceState(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

type Messages interface {
	// CreateGroup appends a message to a request's group channel. The
	// request must still be live; otherwise domain.ErrChannelClosed.
	CreateGroup(ctx context.Context, msg *domain.NegotiationMessage) error
	// CreateGroupWithOffer persists a priced message and its mirrored offer
	// in one transaction, advancing the request open -> bidding. Either both
	// rows commit or neither does.
	CreateGroupWithOffer(ctx context.Context, msg *domain.NegotiationMessage, offer *domain.Offer) error
	CreatePrivate(ctx context.Context, msg *domain.NegotiationMessage) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.NegotiationMessage, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]domain.NegotiationMessage, error)
}

type Notifications interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
	DeleteAll(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

// Directory is the read-only lookup into user and catalog data this core
// consumes but does not own.
type Directory interface {
	CategoryExists(ctx context.Context, id uuid.UUID) (bool, error)
	AvailableTechnicians(ctx context.Context) ([]uuid.UUID, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

type Stores struct {
	Requests      Requests
	Offers        Offers
	Assignments   Assignments
	Messages      Messages
	Notifications Notifications
	Directory     Directory
}
