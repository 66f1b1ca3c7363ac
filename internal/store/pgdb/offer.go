package pgdb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servimatch/servimatch/internal/domain"
)

type OfferStore struct {
	pool *pgxpool.Pool
}

func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

const offerColumns = "id, request_id, technician_id, price, message, state, created_at"

// Create inserts the offer under a share lock on its request row, so a bid
// racing a selection or cancellation rolls back instead of landing on a
// closed request. The first offer advances the request open -> bidding in the
// same transaction.
func (s *OfferStore) Create(ctx context.Context, offer *domain.Offer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	state, err := lockRequestState(ctx, tx, offer.RequestID)
	if err != nil {
		return err
	}
	if state != domain.RequestOpen && state != domain.RequestBidding {
		return domain.ErrRequestClosed
	}

	query, args, err := builder.
		Insert("offers").
		Columns("id", "request_id", "technician_id", "price", "message", "state").
		Values(offer.ID, offer.RequestID, offer.TechnicianID, offer.Price, offer.Message, offer.State).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&offer.CreatedAt); err != nil {
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

func (s *OfferStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	offer, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

// ListByRequest returns a request's offers cheapest first, the order clients
// browse them in.
func (s *OfferStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE request_id = $1 ORDER BY price ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

func (s *OfferStore) RejectLive(ctx context.Context, requestID, exceptOfferID uuid.UUID) ([]domain.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE offers SET state = 'rejected'
		 WHERE request_id = $1 AND state = 'submitted' AND id <> $2
		 RETURNING `+offerColumns, requestID, exceptOfferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	err := row.Scan(&o.ID, &o.RequestID, &o.TechnicianID, &o.Price, &o.Message, &o.State, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOffers(rows pgx.Rows) ([]domain.Offer, error) {
	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
