package pgdb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servimatch/servimatch/internal/domain"
)

type AssignmentStore struct {
	pool *pgxpool.Pool
}

func NewAssignmentStore(pool *pgxpool.Pool) *AssignmentStore {
	return &AssignmentStore{pool: pool}
}

const assignmentColumns = "id, request_id, offer_id, technician_id, price, state, created_at"

// Select converts exactly one offer into an assignment. The insert into
// assignments goes first: its unique request_id constraint is the concurrency
// guard, so the loser of a race fails here with ErrAlreadyAssigned and the
// transaction never touches the offers. No prior existence check.
func (s *AssignmentStore) Select(ctx context.Context, a *domain.Assignment) ([]domain.Offer, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO assignments (id, request_id, offer_id, technician_id, price, state)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		a.ID, a.RequestID, a.OfferID, a.TechnicianID, a.Price, a.State,
	).Scan(&a.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, domain.ErrAlreadyAssigned
		}
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE offers SET state = 'selected' WHERE id = $1 AND state = 'submitted'`, a.OfferID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOfferNotLive
	}

	rows, err := tx.Query(ctx,
		`UPDATE offers SET state = 'rejected'
		 WHERE request_id = $1 AND state = 'submitted' AND id <> $2
		 RETURNING `+offerColumns, a.RequestID, a.OfferID)
	if err != nil {
		return nil, err
	}
	rejected, err := collectOffers(rows)
	if err != nil {
		return nil, err
	}

	tag, err = tx.Exec(ctx,
		`UPDATE service_requests SET state = 'assigned'
		 WHERE id = $1 AND state IN ('open','bidding')`, a.RequestID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// The request was cancelled (or otherwise closed) between the
		// caller's read and this transaction. Roll everything back.
		return nil, domain.ErrRequestClosed
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *AssignmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

func (s *AssignmentStore) GetByRequest(ctx context.Context, requestID uuid.UUID) (*domain.Assignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE request_id = $1`, requestID)
	return scanAssignment(row)
}

func (s *AssignmentStore) AdvanceState(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assignments SET state = $1 WHERE id = $2 AND state = $3`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.RequestID, &a.OfferID, &a.TechnicianID, &a.Price, &a.State, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}
