package push

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transport hands a notification to the external mobile push provider.
// Delivery is best-effort; a failure means the recipient reads it from the
// inbox instead.
type Transport interface {
	Deliver(ctx context.Context, userID uuid.UUID, title, body string) error
}

// LogTransport stands in when no provider is configured. It only logs.
type LogTransport struct {
	Log zerolog.Logger
}

func (t LogTransport) Deliver(_ context.Context, userID uuid.UUID, title, _ string) error {
	t.Log.Debug().Str("user", userID.String()).Str("title", title).Msg("push delivery (noop)")
	return nil
}
