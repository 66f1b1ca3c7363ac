package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/middleware"
)

// Gateway is the slice of the negotiation service the socket protocol needs.
// The service persists and broadcasts; the socket layer only parses frames
// and enforces membership.
type Gateway interface {
	Authorize(ctx context.Context, actor domain.Actor, key string) error
	SendGroupMessage(ctx context.Context, actor domain.Actor, requestID uuid.UUID, body string, price *float64) (*domain.NegotiationMessage, error)
	SendPrivateMessage(ctx context.Context, actor domain.Actor, assignmentID uuid.UUID, body string) (*domain.NegotiationMessage, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type session struct {
	conn  *websocket.Conn
	actor domain.Actor
	mu    sync.Mutex
}

func (s *session) UserID() uuid.UUID { return s.actor.UserID }
func (s *session) Role() string      { return s.actor.Role }

func (s *session) Send(e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// inbound is a client -> server socket frame.
type inbound struct {
	Op    string   `json:"op"`
	Key   string   `json:"key,omitempty"`
	Body  string   `json:"body,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

type WSHandler struct {
	router  *Router
	gateway Gateway
	log     zerolog.Logger
}

func NewWSHandler(router *Router, gateway Gateway, log zerolog.Logger) *WSHandler {
	return &WSHandler{router: router, gateway: gateway, log: log}
}

// Serve upgrades the connection and runs the read loop. Every session is
// attached to its own user channel for targeted delivery; technicians also
// hear the new-request broadcast.
func (h *WSHandler) Serve(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s := &session{conn: conn, actor: actor}
	h.router.Join(domain.UserChannel(actor.UserID), s)
	if actor.Role == domain.RoleTechnician {
		h.router.Join(domain.TechniciansChannel, s)
	}
	h.log.Debug().Str("user", actor.UserID.String()).Str("role", actor.Role).Msg("session connected")

	for {
		var frame inbound
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		h.handle(c.Request().Context(), s, frame)
	}

	h.router.Detach(s)
	_ = conn.Close()
	h.log.Debug().Str("user", actor.UserID.String()).Msg("session disconnected")
	return nil
}

func (h *WSHandler) handle(ctx context.Context, s *session, frame inbound) {
	switch frame.Op {
	case "join":
		if err := h.gateway.Authorize(ctx, s.actor, frame.Key); err != nil {
			h.sendErr(s, err)
			return
		}
		h.router.Join(frame.Key, s)
		_ = s.Send(domain.Event{Type: domain.EventChannelJoin, Data: echo.Map{"key": frame.Key}})

	case "leave":
		h.router.Leave(frame.Key, s)

	case "message":
		kind, id, err := ParseKey(frame.Key)
		if err != nil {
			h.sendErr(s, err)
			return
		}
		switch kind {
		case KindRequest:
			_, err = h.gateway.SendGroupMessage(ctx, s.actor, id, frame.Body, frame.Price)
		case KindAssignment:
			_, err = h.gateway.SendPrivateMessage(ctx, s.actor, id, frame.Body)
		default:
			err = domain.ErrNotChannelMember
		}
		if err != nil {
			h.sendErr(s, err)
		}

	case "typing":
		if !h.router.Member(frame.Key, s) {
			return
		}
		h.router.Relay(frame.Key, s, domain.Event{
			Type: domain.EventTyping,
			Data: echo.Map{"key": frame.Key, "user_id": s.actor.UserID},
		})

	default:
		h.sendErr(s, echo.NewHTTPError(http.StatusBadRequest, "unknown op"))
	}
}

func (h *WSHandler) sendErr(s *session, err error) {
	_ = s.Send(domain.Event{Type: "error", Data: echo.Map{"message": err.Error()}})
}
