package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/config"
)

// New connects to Postgres and bootstraps the schema.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.DB.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("connected to postgres")

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ensureSchema creates the negotiation tables if missing. The partial unique
// index on offers and the unique request_id on assignments are load-bearing:
// they are what makes duplicate-offer detection and winner selection atomic.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_requests (
			id UUID PRIMARY KEY,
			client_id UUID NOT NULL,
			category_id UUID NULL,
			description TEXT NOT NULL,
			location_text TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION NULL,
			lon DOUBLE PRECISION NULL,
			suggested_price DOUBLE PRECISION NULL,
			photos TEXT[] NULL,
			state TEXT NOT NULL DEFAULT 'open'
				CHECK (state IN ('open','bidding','assigned','in_progress','completed','cancelled')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_client ON service_requests(client_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_state ON service_requests(state)`,

		`CREATE TABLE IF NOT EXISTS offers (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL REFERENCES service_requests(id),
			technician_id UUID NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'submitted'
				CHECK (state IN ('submitted','selected','rejected')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_offers_live
			ON offers(request_id, technician_id) WHERE state <> 'rejected'`,
		`CREATE INDEX IF NOT EXISTS idx_offers_request ON offers(request_id, price ASC)`,

		`CREATE TABLE IF NOT EXISTS assignments (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL UNIQUE REFERENCES service_requests(id),
			offer_id UUID NOT NULL REFERENCES offers(id),
			technician_id UUID NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			state TEXT NOT NULL DEFAULT 'en_route'
				CHECK (state IN ('en_route','in_progress','completed')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS negotiation_messages (
			id UUID PRIMARY KEY,
			request_id UUID NULL REFERENCES service_requests(id),
			assignment_id UUID NULL REFERENCES assignments(id),
			sender_id UUID NOT NULL,
			body TEXT NOT NULL,
			price DOUBLE PRECISION NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK ((request_id IS NULL) <> (assignment_id IS NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_request ON negotiation_messages(request_id, created_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_assignment ON negotiation_messages(assignment_id, created_at ASC)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			recipient_id UUID NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(recipient_id) WHERE read = FALSE`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
