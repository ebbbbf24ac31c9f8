// Package websocket fans realtime events out to connected clients. It
// implements a hub-and-spoke pattern where each client subscribes to the
// topics it is authorized to watch and receives every event broadcast to
// those topics.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/realtime"
)

// ClientMessage is an inbound frame from a WebSocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a single WebSocket connection with its topic subscriptions.
type Client struct {
	ID     string
	UserID string
	Topics []string
	Send   chan []byte
	hub    *Hub
	conn   Conn
}

// TopicAuthorizer decides whether a user may subscribe to a topic. The
// messaging layer supplies one that limits users to their own inbox and the
// conversations they participate in.
type TopicAuthorizer func(userID, topic string) bool

// Hub tracks clients and their topic subscriptions and bridges the
// in-process event bus onto the wire. The hub lazily subscribes to a bus
// topic when the first client asks for it and disposes the bus subscription
// when the last client leaves.
type Hub struct {
	bus *realtime.Bus
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	feeds   map[string]realtime.Disposer // topic -> bus subscription
}

func NewHub(bus *realtime.Bus, logger zerolog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		log:     logger,
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		feeds:   make(map[string]realtime.Disposer),
	}
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.attach(client, topic)
	}
}

// Unregister removes a client from the hub, all topic subscriptions, and
// closes the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		h.detach(client, topic)
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to an already-registered client.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.attach(client, topic)
	}
	client.Topics = append(client.Topics, topics...)
}

// Unsubscribe removes topics from an already-registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
		h.detach(client, t)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// attach wires a client to a topic, opening the bus feed on first use.
// Callers hold h.mu.
func (h *Hub) attach(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
		if h.bus != nil {
			t := topic
			h.feeds[t] = h.bus.Subscribe(t, func(e realtime.Event) {
				h.Broadcast(t, e)
			})
		}
	}
	h.clients[topic][client] = struct{}{}
}

// detach unwires a client from a topic, closing the bus feed when the last
// client leaves. Callers hold h.mu.
func (h *Hub) detach(client *Client, topic string) {
	subscribers, ok := h.clients[topic]
	if !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, topic)
		if dispose, ok := h.feeds[topic]; ok {
			dispose()
			delete(h.feeds, topic)
		}
	}
}

// Broadcast sends an event to all clients subscribed to the given topic.
func (h *Hub) Broadcast(topic string, event realtime.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("topic", topic).Msg("marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// Publish implements realtime.Publisher by broadcasting to the event's topic
// subscribers directly, bypassing the bus.
func (h *Hub) Publish(_ context.Context, event realtime.Event) error {
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler — Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is enforced by the CORS middleware upstream.
	},
}

// PresenceTracker flips a user's online flag on connect and disconnect.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Handler upgrades HTTP connections, enforces topic authorization, and keeps
// presence in sync with the connection lifecycle.
type Handler struct {
	hub       *Hub
	authorize TopicAuthorizer
	presence  PresenceTracker
	log       zerolog.Logger

	mu    sync.Mutex
	conns map[string]int // userID -> open connection count
}

func NewHandler(hub *Hub, authorize TopicAuthorizer, presence PresenceTracker, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		authorize: authorize,
		presence:  presence,
		log:       logger,
		conns:     make(map[string]int),
	}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client, and starts the
// read/write pumps. A user shows online while at least one of their
// connections is open.
func (h *Handler) HandleConnect(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Topics: []string{},
		Send:   make(chan []byte, 256),
		hub:    h.hub,
		conn:   &gorillaConnAdapter{ws},
	}

	h.hub.Register(client)
	h.connOpened(userID)

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// ProcessMessage applies an inbound frame to the client's subscriptions.
// Unauthorized topics are dropped silently.
func (h *Handler) ProcessMessage(client *Client, msg ClientMessage) {
	allowed := msg.Topics
	if h.authorize != nil {
		allowed = allowed[:0]
		for _, topic := range msg.Topics {
			if h.authorize(client.UserID, topic) {
				allowed = append(allowed, topic)
			} else {
				h.log.Debug().Str("user_id", client.UserID).Str("topic", topic).
					Msg("websocket subscription denied")
			}
		}
	}

	switch msg.Action {
	case "subscribe":
		h.hub.Subscribe(client, allowed)
	case "unsubscribe":
		h.hub.Unsubscribe(client, allowed)
	}
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
		h.connClosed(client.UserID)
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed frames.
		}

		h.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// connOpened bumps the user's connection count, flipping presence on the
// first open connection.
func (h *Handler) connOpened(userID string) {
	h.mu.Lock()
	h.conns[userID]++
	first := h.conns[userID] == 1
	h.mu.Unlock()

	if first {
		h.setOnline(userID, true)
	}
}

// connClosed decrements the count, flipping presence when the user's last
// connection goes away.
func (h *Handler) connClosed(userID string) {
	h.mu.Lock()
	h.conns[userID]--
	last := h.conns[userID] <= 0
	if last {
		delete(h.conns, userID)
	}
	h.mu.Unlock()

	if last {
		h.setOnline(userID, false)
	}
}

func (h *Handler) setOnline(userID string, online bool) {
	if h.presence == nil {
		return
	}
	if err := h.presence.SetOnline(context.Background(), userID, online); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Bool("online", online).
			Msg("presence update failed")
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
