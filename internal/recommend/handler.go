package recommend

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/store"
)

// Handler serves ranked technician suggestions for a request, degrading to
// the plain availability listing when the scoring service is down. Ranking
// never blocks the negotiation flow.
type Handler struct {
	client    *Client
	directory store.Directory
	log       zerolog.Logger
}

func NewHandler(client *Client, directory store.Directory, log zerolog.Logger) *Handler {
	return &Handler{client: client, directory: directory, log: log}
}

// Recommendations - ranked technicians for a request, unranked on fallback
func (h *Handler) Recommendations(c echo.Context) error {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	ranked, err := h.client.RankTechnicians(c.Request().Context(), requestID)
	if err == nil {
		return c.JSON(http.StatusOK, echo.Map{"ranked": true, "technicians": ranked})
	}
	if errors.Is(err, domain.ErrModelUnavailable) {
		h.log.Info().Str("request", requestID.String()).Msg("ranking model unavailable, falling back")
	} else {
		h.log.Warn().Str("request", requestID.String()).Err(err).Msg("ranking failed, falling back")
	}

	ids, err := h.directory.AvailableTechnicians(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	fallback := make([]RankedTechnician, 0, len(ids))
	for _, id := range ids {
		fallback = append(fallback, RankedTechnician{TechnicianID: id})
	}
	return c.JSON(http.StatusOK, echo.Map{"ranked": false, "technicians": fallback})
}

// Health - upstream scoring service probe
func (h *Handler) Health(c echo.Context) error {
	if err := h.client.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
