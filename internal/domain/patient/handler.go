package patient

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
	"github.com/ehr/amsmonitor/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.List)
	api.POST("/patients", h.Admit)
	api.GET("/patients/:id", h.Get)
	api.PATCH("/patients/:id/clinical", h.UpdateClinical)
	api.POST("/patients/:id/discharge", h.Discharge)
	api.POST("/patients/:id/readmit", h.Readmit)
	api.POST("/patients/:id/expire", h.MarkExpired)

	api.POST("/patients/:id/transfers", h.Transfer)
	api.PUT("/patients/:id/transfers/:tid", h.EditTransfer)

	api.POST("/patients/:id/episodes", h.RegisterEpisode)
	api.POST("/patients/:id/episodes/:eid/stop", h.Stop)
	api.POST("/patients/:id/episodes/:eid/complete", h.Complete)
	api.POST("/patients/:id/episodes/:eid/shift", h.Shift)
	api.POST("/patients/:id/episodes/:eid/undo", h.Undo)
	api.POST("/patients/:id/episodes/:eid/dose-change", h.ChangeDose)
	api.POST("/patients/:id/episodes/:eid/continue", h.Continue)
	api.POST("/patients/:id/episodes/:eid/susceptibility", h.AnnotateSusceptibility)

	api.POST("/patients/:id/episodes/:eid/doses", h.LogDose)
	api.DELETE("/patients/:id/episodes/:eid/doses/:date/:slot", h.DeleteDose)
}

// -- Request bodies --

type atRequest struct {
	At time.Time `json:"at"`
}

type transitionRequest struct {
	At     time.Time            `json:"at"`
	Reason therapy.ReasonChoice `json:"reason"`
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

type editTransferRequest struct {
	Ward string `json:"ward"`
	Bed  string `json:"bed"`
}

type doseChangeRequest struct {
	Dose   string               `json:"dose"`
	Reason therapy.ReasonChoice `json:"reason"`
}

type continueRequest struct {
	RequestedBy string `json:"requested_by"`
}

type susceptibilityRequest struct {
	Note string       `json:"note"`
	Date therapy.Date `json:"date"`
}

// -- Patient Handlers --

func (h *Handler) List(c echo.Context) error {
	views, err := h.svc.List(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(views, pagination.FromContext(c)))
}

func (h *Handler) Admit(c echo.Context) error {
	var in AdmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Admit(c.Request().Context(), in)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateClinical(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in ClinicalInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.UpdateClinical(c.Request().Context(), id, in))
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req atRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Discharge(c.Request().Context(), id, req.At))
}

func (h *Handler) Readmit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return respond(c, http.StatusOK)(h.svc.Readmit(c.Request().Context(), id))
}

func (h *Handler) MarkExpired(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req atRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.MarkExpired(c.Request().Context(), id, req.At))
}

// -- Transfer Handlers --

func (h *Handler) Transfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in TransferInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusCreated)(h.svc.Transfer(c.Request().Context(), id, in))
}

func (h *Handler) EditTransfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tid, err := uuid.Parse(c.Param("tid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transfer id")
	}
	var req editTransferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.EditTransfer(c.Request().Context(), id, tid, req.Ward, req.Bed))
}

// -- Episode Handlers --

func (h *Handler) RegisterEpisode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in therapy.EpisodeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusCreated)(h.svc.RegisterEpisode(c.Request().Context(), id, in))
}

func (h *Handler) Stop(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Stop(c.Request().Context(), id, eid, req.At, req.Reason))
}

func (h *Handler) Complete(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req atRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Complete(c.Request().Context(), id, eid, req.At))
}

func (h *Handler) Shift(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Shift(c.Request().Context(), id, eid, req.At, req.Reason))
}

func (h *Handler) Undo(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Undo(c.Request().Context(), id, eid, req.Confirm))
}

func (h *Handler) ChangeDose(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req doseChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.ChangeDose(c.Request().Context(), id, eid, req.Dose, req.Reason))
}

func (h *Handler) Continue(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req continueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.Continue(c.Request().Context(), id, eid, req.RequestedBy))
}

func (h *Handler) AnnotateSusceptibility(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var req susceptibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusOK)(h.svc.AnnotateSusceptibility(c.Request().Context(), id, eid, req.Note, req.Date))
}

// -- Administration Handlers --

func (h *Handler) LogDose(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	var in DoseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusCreated)(h.svc.LogDose(c.Request().Context(), id, eid, in))
}

func (h *Handler) DeleteDose(c echo.Context) error {
	id, eid, err := episodeParams(c)
	if err != nil {
		return err
	}
	date, err := therapy.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date")
	}
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid slot")
	}
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return respond(c, http.StatusOK)(h.svc.DeleteDose(c.Request().Context(), id, eid, date, slot, confirmed))
}

func episodeParams(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	eid, err := uuid.Parse(c.Param("eid"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid episode id")
	}
	return id, eid, nil
}

func respond(c echo.Context, status int) func(*View, error) error {
	return func(v *View, err error) error {
		if err != nil {
			return HTTPError(err)
		}
		return c.JSON(status, v)
	}
}

// HTTPError maps service errors onto HTTP responses. Validation errors keep
// their field so the client can re-prompt.
func HTTPError(err error) error {
	var ve *therapy.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, echo.Map{"field": ve.Field, "message": ve.Message})
	case errors.Is(err, therapy.ErrConfirmationRequired):
		return echo.NewHTTPError(http.StatusConflict, echo.Map{"field": "confirm", "message": "this action must be confirmed"})
	case errors.Is(err, therapy.ErrInvalidTransition), errors.Is(err, therapy.ErrSlotOccupied):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEpisodeNotFound),
		errors.Is(err, ErrTransferNotFound), errors.Is(err, therapy.ErrDoseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "patient store unavailable").SetInternal(err)
}
