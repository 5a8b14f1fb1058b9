package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"gridmenu/internal/config"
	"gridmenu/internal/models"
	"gridmenu/internal/services"
)

// WebSocketHandler handles host-client WebSocket connections. It is the
// engine's only transport: client events (clicks, closes, context updates)
// flow in, and it implements services.HostBridge so rendered menus and
// dispatched commands flow back out over the same socket.
type WebSocketHandler struct {
	connManager *services.ConnectionManager
	sessions    *services.SessionService
	loop        *services.LoopService
	messages    *config.Messages

	clickRate  float64
	clickBurst int
}

// NewWebSocketHandler creates a new WebSocket handler. The session service
// is attached afterwards via SetSessionService; the gateway is the bridge
// the session service is built on.
func NewWebSocketHandler(connManager *services.ConnectionManager, loop *services.LoopService, messages *config.Messages, clickRate float64, clickBurst int) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		loop:        loop,
		messages:    messages,
		clickRate:   clickRate,
		clickBurst:  clickBurst,
	}
}

// SetSessionService wires the session engine (set after construction).
func (h *WebSocketHandler) SetSessionService(sessions *services.SessionService) {
	h.sessions = sessions
}

// Handle handles a new WebSocket connection
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	userID := c.Locals("user_id").(string)
	userName, _ := c.Locals("user_name").(string)
	role, _ := c.Locals("user_role").(string)

	// Create a done channel to signal goroutines to stop
	done := make(chan struct{})

	userConn := &models.UserConnection{
		ConnID:       connID,
		UserID:       userID,
		DisplayName:  userName,
		Elevated:     role == "admin",
		Conn:         c,
		CreatedAt:    time.Now(),
		WriteChan:    make(chan models.ServerMessage, 100),
		StopChan:     make(chan bool, 1),
		ClickLimiter: rate.NewLimiter(rate.Limit(h.clickRate), h.clickBurst),
		Context:      make(map[string]string),
	}

	// A user holds one connection; shut down any socket they left behind.
	if displaced := h.connManager.Add(userConn); displaced != nil {
		log.Printf("🔁 Displacing stale connection %s for user %s", displaced.ConnID, userID)
		displaced.Conn.Close()
		close(displaced.WriteChan)
		close(displaced.StopChan)
	}

	defer func() {
		close(done) // Signal all goroutines to stop
		h.connManager.Remove(connID)

		// Close the user's session unless a newer connection took over.
		h.loop.Defer(func() {
			if !h.connManager.HasUser(userID) {
				h.sessions.ReleaseClosed(userID)
			}
		})
	}()

	// Idle clients are kept alive by the ping loop; two missed ping
	// intervals means the connection is gone.
	c.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.SetPongHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	// Start ping goroutine to keep connection alive
	go h.pingLoop(userConn, done)

	// Start write goroutine
	go h.writeLoop(userConn)

	// Send connected message
	userConn.WriteChan <- models.ServerMessage{
		Type:    "connected",
		Content: "WebSocket connected. Ready to receive events.",
	}

	// Read loop
	h.readLoop(userConn)
}

// pingLoop sends periodic pings to keep the WebSocket connection alive
func (h *WebSocketHandler) pingLoop(userConn *models.UserConnection, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			userConn.Mutex.Lock()
			if err := userConn.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("⚠️ Ping failed for %s: %v", userConn.ConnID, err)
				userConn.Mutex.Unlock()
				return
			}
			userConn.Mutex.Unlock()
		}
	}
}

// readLoop handles incoming events from the client
func (h *WebSocketHandler) readLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in readLoop: %v", r)
		}
	}()

	for {
		_, msg, err := userConn.Conn.ReadMessage()
		if err != nil {
			log.Printf("❌ WebSocket read error for %s: %v", userConn.ConnID, err)
			break
		}

		// Reset read deadline after successful read
		userConn.Conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var clientMsg models.ClientMessage
		if err := json.Unmarshal(msg, &clientMsg); err != nil {
			log.Printf("⚠️  Invalid message format from %s: %v", userConn.ConnID, err)
			userConn.WriteChan <- models.ServerMessage{
				Type:         "error",
				ErrorCode:    "invalid_format",
				ErrorMessage: "Invalid message format",
			}
			continue
		}

		switch clientMsg.Type {
		case "ping":
			// Respond to client heartbeat immediately
			userConn.WriteChan <- models.ServerMessage{
				Type: "pong",
			}
		case "open":
			h.handleOpen(userConn, clientMsg)
		case "click":
			h.handleClick(userConn, clientMsg)
		case "closed":
			h.handleClosed(userConn)
		case "set_context":
			h.handleSetContext(userConn, clientMsg)
		default:
			log.Printf("⚠️  Unknown message type: %s", clientMsg.Type)
		}
	}
}

// handleOpen processes a client request to open a menu.
func (h *WebSocketHandler) handleOpen(userConn *models.UserConnection, clientMsg models.ClientMessage) {
	menuID := clientMsg.MenuID
	if menuID == "" {
		userConn.WriteChan <- models.ServerMessage{
			Type:         "error",
			ErrorCode:    "missing_menu_id",
			ErrorMessage: "open requires a menu_id",
		}
		return
	}

	userID := userConn.UserID
	h.loop.Defer(func() {
		if _, err := h.sessions.Open(userID, menuID); err != nil {
			h.sendDenied(userID, menuID, err)
		}
	})
}

// handleClick throttles and defers a slot click. Clicks run on the engine
// loop one step after arrival, never inline with the read loop.
func (h *WebSocketHandler) handleClick(userConn *models.UserConnection, clientMsg models.ClientMessage) {
	if clientMsg.Slot == nil {
		return
	}
	if !userConn.ClickLimiter.Allow() {
		log.Printf("🚫 Click throttled for user %s", userConn.UserID)
		return
	}

	userID := userConn.UserID
	slot := *clientMsg.Slot
	h.loop.Defer(func() {
		h.sessions.HandleClick(userID, slot)
	})
}

// handleClosed processes a host report that the user closed their
// container. Escapeable menus (and engine-forced closes) are released;
// non-escapeable menus are reopened on the next loop step.
func (h *WebSocketHandler) handleClosed(userConn *models.UserConnection) {
	userID := userConn.UserID
	h.loop.Defer(func() {
		menuID := h.sessions.GetOpenMenu(userID)
		if menuID == "" {
			return
		}
		if h.sessions.IsEscapeable(userID) {
			h.sessions.ReleaseClosed(userID)
			return
		}

		// The user may not leave this menu on their own.
		h.sessions.ReleaseClosed(userID)
		if _, err := h.sessions.Open(userID, menuID); err != nil {
			log.Printf("⚠️  Failed to reopen non-escapeable menu %s for user %s: %v", menuID, userID, err)
			return
		}
		services.CountReopenEnforcement()
		log.Printf("🔒 Reopened non-escapeable menu %s for user %s", menuID, userID)
	})
}

// handleSetContext stores a host-pushed context value for the connection.
func (h *WebSocketHandler) handleSetContext(userConn *models.UserConnection, clientMsg models.ClientMessage) {
	if clientMsg.Key == "" {
		return
	}
	userConn.SetContextValue(clientMsg.Key, clientMsg.Value)
}

// sendDenied translates an open denial into a user-facing message.
func (h *WebSocketHandler) sendDenied(userID, menuID string, err error) {
	message := h.messages.MenuNotFound
	code := "menu_not_found"
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		message = h.messages.PermissionDenied
		code = "permission_denied"
	case errors.Is(err, services.ErrConditionNotMet):
		message = h.messages.ConditionNotMet
		code = "condition_not_met"
	case errors.Is(err, services.ErrEvaluatorUnavailable):
		message = h.messages.EvaluatorUnavailable
		code = "evaluator_unavailable"
	}

	h.send(userID, models.ServerMessage{
		Type:         "denied",
		MenuID:       menuID,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// writeLoop writes messages from the channel to the WebSocket
func (h *WebSocketHandler) writeLoop(userConn *models.UserConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in writeLoop: %v", r)
		}
	}()

	for msg := range userConn.WriteChan {
		if err := userConn.Conn.WriteJSON(msg); err != nil {
			log.Printf("❌ WebSocket write error for %s: %v", userConn.ConnID, err)
			return
		}
	}
}

// send queues a message for a user's current connection. The engine loop
// must never block on a slow client, so a full write buffer drops the
// message.
func (h *WebSocketHandler) send(userID string, msg models.ServerMessage) {
	conn, ok := h.connManager.GetByUser(userID)
	if !ok {
		return
	}
	select {
	case conn.WriteChan <- msg:
	default:
		log.Printf("⚠️  Write buffer full for user %s, dropping %s message", userID, msg.Type)
	}
}

// PushMenu delivers rendered container content to a user's client.
func (h *WebSocketHandler) PushMenu(userID string, menu *models.RenderedMenu) {
	h.send(userID, models.ServerMessage{
		Type:   "menu_open",
		MenuID: menu.MenuID,
		Menu:   menu,
	})
}

// PushClose tells a user's client to close its container.
func (h *WebSocketHandler) PushClose(userID string) {
	h.send(userID, models.ServerMessage{
		Type: "menu_close",
	})
}

// RunUserCommand executes a command on the host as if the user invoked it.
func (h *WebSocketHandler) RunUserCommand(userID, command string) {
	h.send(userID, models.ServerMessage{
		Type:    "command",
		Command: command,
		RunAs:   "user",
	})
}

// RunSystemCommand executes a command on the host as the system actor.
func (h *WebSocketHandler) RunSystemCommand(userID, command string) {
	h.send(userID, models.ServerMessage{
		Type:    "command",
		Command: command,
		RunAs:   "system",
	})
}
