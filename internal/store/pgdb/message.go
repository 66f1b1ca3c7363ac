package pgdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servimatch/servimatch/internal/domain"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = "id, request_id, assignment_id, sender_id, body, price, created_at"

// lockLiveRequest verifies under a share lock that the request still accepts
// group traffic, so a message can never slip in after the group channel is
// retired.
func lockLiveRequest(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) error {
	state, err := lockRequestState(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if state != domain.RequestOpen && state != domain.RequestBidding {
		return domain.ErrChannelClosed
	}
	return nil
}

func (s *MessageStore) CreateGroup(ctx context.Context, msg *domain.NegotiationMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockLiveRequest(ctx, tx, *msg.RequestID); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *MessageStore) CreateGroupWithOffer(ctx context.Context, msg *domain.NegotiationMessage, offer *domain.Offer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockLiveRequest(ctx, tx, *msg.RequestID); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO offers (id, request_id, technician_id, price, message, state)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		offer.ID, offer.RequestID, offer.TechnicianID, offer.Price, offer.Message, offer.State,
	).Scan(&offer.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return domain.ErrDuplicateOffer
		}
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE service_requests SET state = 'bidding' WHERE id = $1 AND state = 'open'`,
		offer.RequestID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *MessageStore) CreatePrivate(ctx context.Context, msg *domain.NegotiationMessage) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO negotiation_messages (id, assignment_id, sender_id, body)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		msg.ID, msg.AssignmentID, msg.SenderID, msg.Body,
	).Scan(&msg.CreatedAt)
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.NegotiationMessage) error {
	return tx.QueryRow(ctx,
		`INSERT INTO negotiation_messages (id, request_id, sender_id, body, price)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		msg.ID, msg.RequestID, msg.SenderID, msg.Body, msg.Price,
	).Scan(&msg.CreatedAt)
}

func (s *MessageStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.NegotiationMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM negotiation_messages
		 WHERE request_id = $1 ORDER BY created_at ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *MessageStore) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]domain.NegotiationMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM negotiation_messages
		 WHERE assignment_id = $1 ORDER BY created_at ASC`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.NegotiationMessage, error) {
	var out []domain.NegotiationMessage
	for rows.Next() {
		var m domain.NegotiationMessage
		err := rows.Scan(&m.ID, &m.RequestID, &m.AssignmentID, &m.SenderID, &m.Body, &m.Price, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
