package models

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"
)

// ClientMessage represents an event from the host client
type ClientMessage struct {
	Type   string `json:"type"` // "click", "closed", "open", "set_context", "ping"
	Slot   *int   `json:"slot,omitempty"`    // for "click"
	MenuID string `json:"menu_id,omitempty"` // for "open"
	Key    string `json:"key,omitempty"`     // for "set_context"
	Value  string `json:"value,omitempty"`   // for "set_context"
}

// ServerMessage represents a message pushed to the host client
type ServerMessage struct {
	Type         string        `json:"type"` // "connected", "menu_open", "menu_close", "command", "denied", "pong", "error"
	Menu         *RenderedMenu `json:"menu,omitempty"`
	MenuID       string        `json:"menu_id,omitempty"`
	Command      string        `json:"command,omitempty"`
	RunAs        string        `json:"run_as,omitempty"` // "user" or "system"
	Content      string        `json:"content,omitempty"`
	ErrorCode    string        `json:"code,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
}

// UserConnection represents an active host-client WebSocket connection for
// one user. WriteChan is the only path to the socket; the write loop owns
// the connection for data frames, Mutex guards control frames.
type UserConnection struct {
	ConnID      string
	UserID      string
	DisplayName string
	Elevated    bool // administrative privilege (bypasses permission checks)
	ClientIP    string
	Conn        *websocket.Conn
	CreatedAt   time.Time
	WriteChan   chan ServerMessage
	StopChan    chan bool
	Mutex       sync.Mutex

	// ClickLimiter throttles click events per connection.
	ClickLimiter *rate.Limiter

	// Context holds host-pushed key/value state, readable by the
	// %ctx_<key>% placeholder provider.
	Context   map[string]string
	ContextMu sync.RWMutex
}

// ContextValue returns a host-pushed context value for this user.
func (c *UserConnection) ContextValue(key string) (string, bool) {
	c.ContextMu.RLock()
	defer c.ContextMu.RUnlock()
	v, ok := c.Context[key]
	return v, ok
}

// SetContextValue stores a host-pushed context value.
func (c *UserConnection) SetContextValue(key, value string) {
	c.ContextMu.Lock()
	defer c.ContextMu.Unlock()
	if c.Context == nil {
		c.Context = make(map[string]string)
	}
	c.Context[key] = value
}
