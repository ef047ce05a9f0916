package webhook

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eyescreen/screening/internal/platform/auth"
)

// Handler exposes endpoint management over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts the routes under prefix. mw guards every route.
func (h *Handler) RegisterRoutes(g *echo.Group, prefix string, mw ...echo.MiddlewareFunc) {
	g.POST(prefix, h.register, mw...)
	g.GET(prefix, h.list, mw...)
	g.DELETE(prefix+"/:id", h.delete, mw...)
	g.POST(prefix+"/:id/test", h.test, mw...)
	g.GET(prefix+"/:id/deliveries", h.deliveries, mw...)
}

type registerRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

func notFound(err error) error {
	if errors.Is(err, ErrEndpointNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "The requested resource was not found.")
	}
	return err
}

func (h *Handler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Bad request.")
	}
	ep, err := h.manager.Register(c.Request().Context(), req.URL, req.Secret, req.Events,
		auth.OperatorIDFromContext(c.Request().Context()))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false,
			"message": err.Error(),
			"errors":  map[string][]string{"url": {err.Error()}},
		})
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: ep, Message: "Webhook registered."})
}

func (h *Handler) list(c echo.Context) error {
	eps, err := h.manager.store.ListEndpoints(c.Request().Context())
	if err != nil {
		return err
	}
	for _, ep := range eps {
		ep.Secret = ""
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: eps})
}

func (h *Handler) delete(c echo.Context) error {
	if err := h.manager.store.DeleteEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Message: "Webhook removed."})
}

func (h *Handler) test(c echo.Context) error {
	d, err := h.manager.Test(c.Request().Context(), c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: d})
}

func (h *Handler) deliveries(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.manager.store.GetEndpoint(ctx, c.Param("id")); err != nil {
		return notFound(err)
	}
	log, err := h.manager.store.ListDeliveries(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: log})
}
