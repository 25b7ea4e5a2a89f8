package advisory

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/amsmonitor/internal/platform/middleware"
)

// SessionHeader identifies the form a check belongs to. Checks sharing a
// session and kind supersede each other.
const SessionHeader = "X-Session-ID"

type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/advisory/:kind", h.Check)
}

type checkResponse struct {
	Kind    Kind     `json:"kind"`
	Finding *Finding `json:"finding"`
}

// Check always answers 200 for a valid request; service trouble yields a
// null finding.
func (h *Handler) Check(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Drug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "drug is required")
	}

	session := c.Request().Header.Get(SessionHeader)
	if session == "" {
		session = middleware.ActorFromContext(c.Request().Context())
	}
	key := session + ":" + string(kind)

	finding := h.checker.Check(c.Request().Context(), key, kind, req)
	return c.JSON(http.StatusOK, checkResponse{Kind: kind, Finding: finding})
}
