package channel

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
)

// Session is one connected user. Implementations must make Send safe for
// concurrent use.
type Session interface {
	UserID() uuid.UUID
	Role() string
	Send(e domain.Event) error
}

// Router owns the mapping from routing key to active session set. It is an
// injected dependency of everything that publishes real-time events; there is
// no process-wide registry.
type Router struct {
	log zerolog.Logger

	mu       sync.RWMutex
	channels map[string]map[Session]struct{}
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		log:      log,
		channels: make(map[string]map[Session]struct{}),
	}
}

func (r *Router) Join(key string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.channels[key]
	if !ok {
		members = make(map[Session]struct{})
		r.channels[key] = members
	}
	members[s] = struct{}{}
}

func (r *Router) Leave(key string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(key, s)
}

// Detach removes the session from every channel. Called when the connection
// drops.
func (r *Router) Detach(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.channels {
		r.leaveLocked(key, s)
	}
}

func (r *Router) leaveLocked(key string, s Session) {
	members, ok := r.channels[key]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(r.channels, key)
	}
}

// Member reports whether the session currently belongs to the channel.
func (r *Router) Member(key string, s Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[key][s]
	return ok
}

// Publish delivers the event to every session on the channel and returns how
// many deliveries succeeded. A failed write is logged and dropped; the
// persisted inbox is the source of truth for anything that matters.
func (r *Router) Publish(key string, e domain.Event) int {
	r.mu.RLock()
	members := make([]Session, 0, len(r.channels[key]))
	for s := range r.channels[key] {
		members = append(members, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range members {
		if err := s.Send(e); err != nil {
			r.log.Debug().Str("channel", key).Str("user", s.UserID().String()).
				Err(err).Msg("realtime delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

// Relay forwards an ephemeral event (typing indicators) to everyone on the
// channel except the sender. Nothing is persisted.
func (r *Router) Relay(key string, sender Session, e domain.Event) {
	r.mu.RLock()
	members := make([]Session, 0, len(r.channels[key]))
	for s := range r.channels[key] {
		if s != sender {
			members = append(members, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range members {
		_ = s.Send(e)
	}
}

// Close drops the channel and its membership. Used when a group channel is
// retired after assignment.
func (r *Router) Close(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, key)
}
