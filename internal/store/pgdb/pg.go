package pgdb

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/store"
)

// builder produces $n placeholders for pgx.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation and on which constraint. The domain error mapping depends on the
// constraint name: the live-offer index means a duplicate bid, the
// assignments key means the request already has a winner.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// lockRequestState takes a share lock on the request row and returns its
// state. The share lock serializes against the selection and cancellation
// transactions' state updates on the same row, so a liveness decision made on
// the returned state holds until the caller's transaction commits.
func lockRequestState(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) (string, error) {
	var state string
	err := tx.QueryRow(ctx,
		`SELECT state FROM service_requests WHERE id = $1 FOR SHARE`, requestID,
	).Scan(&state)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrRequestNotFound
		}
		return "", err
	}
	return state, nil
}

// New bundles the Postgres-backed stores.
func New(pool *pgxpool.Pool) *store.Stores {
	return &store.Stores{
		Requests:      NewRequestStore(pool),
		Offers:        NewOfferStore(pool),
		Assignments:   NewAssignmentStore(pool),
		Messages:      NewMessageStore(pool),
		Notifications: NewNotificationStore(pool),
		Directory:     NewDirectoryStore(pool),
	}
}
