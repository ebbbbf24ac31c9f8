package profile

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/users/me", h.GetMe)
	api.PUT("/users/me", h.SaveMe)
	api.GET("/users/:id", h.GetUser)
	api.GET("/users", h.Directory, auth.RequireRole("doctor", "patient"))
}

func (h *Handler) GetMe(c echo.Context) error {
	id := auth.UserIDFromContext(c.Request().Context())
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return c.JSON(http.StatusOK, u)
}

type saveProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        string `json:"role"`
}

// SaveMe creates or updates the caller's profile. The id always comes from
// the verified token, never the body.
func (h *Handler) SaveMe(c echo.Context) error {
	var req saveProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	u := &User{
		ID:          auth.UserIDFromContext(ctx),
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Role:        req.Role,
	}
	if err := h.svc.Save(ctx, u); err != nil {
		if errors.Is(err, ErrInvalidUser) || errors.Is(err, ErrInvalidRole) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrInvalidUser) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return c.JSON(http.StatusOK, u)
}

// Directory returns the counterpart role's profiles for the conversation
// picker.
func (h *Handler) Directory(c echo.Context) error {
	roles := auth.RolesFromContext(c.Request().Context())
	role := ""
	if len(roles) > 0 {
		role = roles[0]
	}
	users, err := h.svc.Directory(c.Request().Context(), role)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}
