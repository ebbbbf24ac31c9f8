package reports

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/genai"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole("doctor"))
	g.POST("/diagnosis", h.DraftDiagnosis)
}

type draftRequest struct {
	Symptoms   string `json:"symptoms"`
	Structured bool   `json:"structured"`
}

// DraftDiagnosis generates a diagnosis draft. The upstream model is a black
// box; its failures surface as 502 so clients can distinguish them from
// CareLink faults.
func (h *Handler) DraftDiagnosis(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if req.Structured {
		report, err := h.svc.DraftStructured(ctx, req.Symptoms)
		if err != nil {
			return draftError(err)
		}
		return c.JSON(http.StatusOK, report)
	}

	text, err := h.svc.DraftText(ctx, req.Symptoms)
	if err != nil {
		return draftError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"report": text})
}

func draftError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, genai.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, "report generation unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
