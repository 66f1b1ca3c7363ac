package pgdb

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/servimatch/servimatch/internal/domain"
)

type RequestStore struct {
	pool *pgxpool.Pool
}

func NewRequestStore(pool *pgxpool.Pool) *RequestStore {
	return &RequestStore{pool: pool}
}

const requestColumns = "id, client_id, category_id, description, location_text, lat, lon, suggested_price, photos, state, created_at"

func (s *RequestStore) Create(ctx context.Context, req *domain.ServiceRequest) error {
	query, args, err := builder.
		Insert("service_requests").
		Columns("id", "client_id", "category_id", "description", "location_text",
			"lat", "lon", "suggested_price", "photos", "state").
		Values(req.ID, req.ClientID, req.CategoryID, req.Description, req.LocationText,
			req.Lat, req.Lon, req.SuggestedPrice, req.Photos, req.State).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return err
	}
	return s.pool.QueryRow(ctx, query, args...).Scan(&req.CreatedAt)
}

func (s *RequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *RequestStore) AdvanceState(ctx context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	query, args, err := builder.
		Update("service_requests").
		Set("state", to).
		Where(sq.Eq{"id": id, "state": from}).
		ToSql()
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *RequestStore) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.ServiceRequest, error) {
	return s.list(ctx, sq.Eq{"client_id": clientID})
}

func (s *RequestStore) ListOpen(ctx context.Context) ([]domain.ServiceRequest, error) {
	return s.list(ctx, sq.Eq{"state": []string{domain.RequestOpen, domain.RequestBidding}})
}

func (s *RequestStore) ListAll(ctx context.Context) ([]domain.ServiceRequest, error) {
	return s.list(ctx, nil)
}

func (s *RequestStore) list(ctx context.Context, where any) ([]domain.ServiceRequest, error) {
	q := builder.Select(requestColumns).From("service_requests").OrderBy("created_at DESC")
	if where != nil {
		q = q.Where(where)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	err := row.Scan(&req.ID, &req.ClientID, &req.CategoryID, &req.Description,
		&req.LocationText, &req.Lat, &req.Lon, &req.SuggestedPrice, &req.Photos,
		&req.State, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
