package chat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc      *Service
	debounce *TypingDebouncer
}

func NewHandler(svc *Service, debounce *TypingDebouncer) *Handler {
	return &Handler{svc: svc, debounce: debounce}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("doctor", "patient"))
	g.GET("/conversations", h.ListMyConversations)
	g.GET("/conversations/resolve", h.ResolveConversation)
	g.GET("/conversations/:key", h.GetConversation)
	g.GET("/conversations/:key/messages", h.ListMessages)
	g.POST("/conversations/:key/messages", h.SendMessage)
	g.POST("/conversations/:key/read", h.MarkRead)
	g.PUT("/conversations/:key/typing", h.SetTyping)
}

// ResolveConversation computes the canonical key between the caller and the
// user given in ?with=.
func (h *Handler) ResolveConversation(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	key, err := ResolveKey(userID, c.QueryParam("with"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"key": key})
}

func (h *Handler) ListMyConversations(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	sessions, err := h.svc.ListMine(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) GetConversation(c echo.Context) error {
	key := c.Param("key")
	if err := h.requireParticipant(c, key); err != nil {
		return err
	}
	conv, err := h.svc.Conversation(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) ListMessages(c echo.Context) error {
	key := c.Param("key")
	if err := h.requireParticipant(c, key); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.HistoryPage(c.Request().Context(), key, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage appends to the stream. Whitespace-only text is accepted and
// dropped (204) per the degrade policy; store failures surface as errors so
// the client can restore the draft.
func (h *Handler) SendMessage(c echo.Context) error {
	key := c.Param("key")
	userID := auth.UserIDFromContext(c.Request().Context())

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if h.debounce != nil {
		// A send always ends the typing signal, even if the append fails.
		defer h.debounce.Sent(c.Request().Context(), key, userID)
	}

	m, err := h.svc.SendMessage(c.Request().Context(), key, userID, req.Text)
	if err != nil {
		return httpError(err)
	}
	if m == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) MarkRead(c echo.Context) error {
	key := c.Param("key")
	if err := h.requireParticipant(c, key); err != nil {
		return err
	}
	if err := h.svc.MarkRead(c.Request().Context(), key); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type setTypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

func (h *Handler) SetTyping(c echo.Context) error {
	key := c.Param("key")
	userID := auth.UserIDFromContext(c.Request().Context())

	var req setTypingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var err error
	if h.debounce != nil {
		if req.IsTyping {
			err = h.debounce.Keystroke(c.Request().Context(), key, userID)
		} else {
			err = h.debounce.Sent(c.Request().Context(), key, userID)
		}
	} else {
		err = h.svc.SetTyping(c.Request().Context(), key, userID, req.IsTyping)
	}
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) requireParticipant(c echo.Context, key string) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if _, err := Counterpart(key, userID); err != nil {
		return httpError(err)
	}
	return nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidParticipants), errors.Is(err, ErrInvalidKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
