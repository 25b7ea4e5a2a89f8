package roster

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/amsmonitor/internal/domain/patient"
	"github.com/ehr/amsmonitor/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type listResponse struct {
	Filter string `json:"filter"`
	*pagination.Response
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/roster", h.List)
	api.GET("/roster/kpis", h.KPIs)
	api.GET("/roster/export", h.Export)
}

func (h *Handler) List(c echo.Context) error {
	filter := c.QueryParam("filter")
	if _, err := Lookup(filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entries, err := h.svc.Filter(c.Request().Context(), filter)
	if err != nil {
		return patient.HTTPError(err)
	}
	return c.JSON(http.StatusOK, listResponse{
		Filter:   filterOrDefault(filter),
		Response: pagination.Page(entries, pagination.FromContext(c)),
	})
}

func (h *Handler) KPIs(c echo.Context) error {
	sum, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return patient.HTTPError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Export(c echo.Context) error {
	filter := c.QueryParam("filter")
	if _, err := Lookup(filter); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request().Context(), &buf, filter); err != nil {
		return patient.HTTPError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=ams-roster-%s.xlsx", filterOrDefault(filter)))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func filterOrDefault(name string) string {
	if name == "" {
		return FilterActive
	}
	return name
}
