package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/push"
	"github.com/servimatch/servimatch/internal/store"
)

// Realtime is the slice of the channel router the fan-out uses.
type Realtime interface {
	Publish(key string, e domain.Event) int
}

// Service persists notifications and fans them out. The inbox record is
// written first and is the source of truth; the realtime and push deliveries
// that follow are best-effort.
type Service struct {
	store    store.Notifications
	realtime Realtime
	push     push.Transport
	log      zerolog.Logger
}

func NewService(st store.Notifications, realtime Realtime, transport push.Transport, log zerolog.Logger) *Service {
	return &Service{store: st, realtime: realtime, push: transport, log: log}
}

// Notify persists the record, then attempts realtime and push delivery. A
// recipient who is offline still finds the record on the next inbox read.
func (s *Service) Notify(ctx context.Context, recipientID uuid.UUID, title, body string) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	s.realtime.Publish(domain.UserChannel(recipientID), domain.Event{
		Type: domain.EventNotificationCreated,
		Data: n,
	})

	if err := s.push.Deliver(ctx, recipientID, title, body); err != nil {
		// Expected when the recipient has no registered device.
		s.log.Debug().Str("recipient", recipientID.String()).Err(err).Msg("push delivery failed")
	}
	return n, nil
}

// NotifyAll fans one event out to many recipients. Each delivery stands on
// its own: a failure is logged and counted, never propagated, and never
// blocks the remaining recipients.
func (s *Service) NotifyAll(ctx context.Context, recipients []uuid.UUID, title, body string) int {
	delivered := 0
	failed := 0
	for _, id := range recipients {
		if _, err := s.Notify(ctx, id, title, body); err != nil {
			failed++
			s.log.Warn().Str("recipient", id.String()).Err(err).Msg("notification failed")
			continue
		}
		delivered++
	}
	if failed > 0 {
		s.log.Warn().Int("failed", failed).Int("delivered", delivered).Msg("bulk fan-out finished with failures")
	}
	return delivered
}
