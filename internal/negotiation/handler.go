package negotiation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/servimatch/servimatch/internal/httperr"
	"github.com/servimatch/servimatch/internal/middleware"
	"github.com/servimatch/servimatch/internal/store"
)

type Handler struct {
	service  *Service
	stores   *store.Stores
	validate *validator.Validate
}

func NewHandler(service *Service, stores *store.Stores) *Handler {
	return &Handler{
		service:  service,
		stores:   stores,
		validate: validator.New(),
	}
}

type createRequestPayload struct {
	CategoryID     *string  `json:"category_id"`
	Description    string   `json:"description" validate:"required,min=3"`
	LocationText   string   `json:"location_text"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	SuggestedPrice *float64 `json:"suggested_price" validate:"omitempty,gt=0"`
	Photos         []string `json:"photos"`
}

// CreateRequest - client posts a new service request
func (h *Handler) CreateRequest(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body createRequestPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}

	input := CreateRequestInput{
		Description:    body.Description,
		LocationText:   body.LocationText,
		Lat:            body.Lat,
		Lon:            body.Lon,
		SuggestedPrice: body.SuggestedPrice,
		Photos:         body.Photos,
	}
	if body.CategoryID != nil {
		id, err := uuid.Parse(*body.CategoryID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
		}
		input.CategoryID = &id
	}

	req, err := h.service.CreateRequest(c.Request().Context(), actor, input)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"request": req})
}

// GetRequest returns one request with its offers.
func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	req, err := h.stores.Requests.GetByID(c.Request().Context(), id)
	if err != nil {
		return httperr.JSON(c, err)
	}
	offers, err := h.stores.Offers.ListByRequest(c.Request().Context(), id)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"request": req, "offers": offers})
}

// ListMyRequests - client lists their own requests
func (h *Handler) ListMyRequests(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requests, err := h.stores.Requests.ListByClient(c.Request().Context(), actor.UserID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": requests})
}

// ListOpenRequests - technicians browse requests still accepting offers
func (h *Handler) ListOpenRequests(c echo.Context) error {
	requests, err := h.stores.Requests.ListOpen(c.Request().Context())
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": requests})
}

// ListAllRequests - admin view
func (h *Handler) ListAllRequests(c echo.Context) error {
	requests, err := h.stores.Requests.ListAll(c.Request().Context())
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": requests})
}

// CancelRequest - client or admin cancels before assignment
func (h *Handler) CancelRequest(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	if err := h.service.CancelRequest(c.Request().Context(), actor, id); err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "request cancelled"})
}

type submitOfferPayload struct {
	Price   float64 `json:"price" validate:"required,gt=0"`
	Message string  `json:"message" validate:"max=500"`
}

// SubmitOffer - technician bids on a request
func (h *Handler) SubmitOffer(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	var body submitOfferPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}

	offer, err := h.service.SubmitOffer(c.Request().Context(), actor, requestID, body.Price, body.Message)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"offer": offer})
}

// ListOffers returns a request's offers, cheapest first.
func (h *Handler) ListOffers(c echo.Context) error {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	offers, err := h.stores.Offers.ListByRequest(c.Request().Context(), requestID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"offers": offers})
}

type selectOfferPayload struct {
	OfferID string `json:"offer_id" validate:"required,uuid"`
}

// SelectOffer - client picks the winning offer
func (h *Handler) SelectOffer(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	var body selectOfferPayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}
	offerID, _ := uuid.Parse(body.OfferID)

	a, err := h.service.SelectOffer(c.Request().Context(), actor, requestID, offerID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"assignment": a})
}

// GetAssignment returns one assignment.
func (h *Handler) GetAssignment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	a, err := h.stores.Assignments.GetByID(c.Request().Context(), id)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"assignment": a})
}

type advancePayload struct {
	State string `json:"state" validate:"required,oneof=in_progress completed"`
}

// AdvanceAssignment - the assigned technician moves execution forward
func (h *Handler) AdvanceAssignment(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	var body advancePayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}

	a, err := h.service.AdvanceAssignment(c.Request().Context(), actor, id, body.State)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"assignment": a})
}

type sendMessagePayload struct {
	Body  string   `json:"body" validate:"required,max=2000"`
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
}

// SendGroupMessage - HTTP fallback for the group channel socket op
func (h *Handler) SendGroupMessage(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}

	var body sendMessagePayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}

	msg, err := h.service.SendGroupMessage(c.Request().Context(), actor, requestID, body.Body, body.Price)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg})
}

// SendPrivateMessage - HTTP fallback for the private channel socket op
func (h *Handler) SendPrivateMessage(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	var body sendMessagePayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	}

	msg, err := h.service.SendPrivateMessage(c.Request().Context(), actor, assignmentID, body.Body)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg})
}

// GroupMessages - transcript of a request's group channel
func (h *Handler) GroupMessages(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	msgs, err := h.service.GroupHistory(c.Request().Context(), actor, requestID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// PrivateMessages - transcript of an assignment's private channel
func (h *Handler) PrivateMessages(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	msgs, err := h.service.PrivateHistory(c.Request().Context(), actor, assignmentID)
	if err != nil {
		return httperr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid payload"
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("'%s' is required", fe.Field()))
		case "gt":
			parts = append(parts, fmt.Sprintf("'%s' must be greater than %s", fe.Field(), fe.Param()))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("'%s' length out of range", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("'%s' must be one of: %s", fe.Field(), fe.Param()))
		case "uuid":
			parts = append(parts, fmt.Sprintf("'%s' must be a uuid", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("'%s' is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}
