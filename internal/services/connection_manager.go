package services

import (
	"log"
	"sync"

	"gridmenu/internal/models"
)

// ConnectionManager manages all active host-client WebSocket connections.
// At most one connection per user: a new connection for the same user
// replaces the old one.
type ConnectionManager struct {
	connections map[string]*models.UserConnection // connID -> connection
	byUser      map[string]string                 // userID -> connID
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.UserConnection),
		byUser:      make(map[string]string),
	}
}

// Add adds a new connection, displacing any previous connection held by
// the same user. The displaced connection (if any) is returned so the
// caller can shut it down.
func (cm *ConnectionManager) Add(conn *models.UserConnection) *models.UserConnection {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	var displaced *models.UserConnection
	if oldID, ok := cm.byUser[conn.UserID]; ok {
		displaced = cm.connections[oldID]
		delete(cm.connections, oldID)
	}
	cm.connections[conn.ConnID] = conn
	cm.byUser[conn.UserID] = conn.ConnID
	log.Printf("✅ Connection added: %s user=%s (Total: %d)", conn.ConnID, conn.UserID, len(cm.connections))
	return displaced
}

// Remove removes a connection
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if conn, exists := cm.connections[connID]; exists {
		close(conn.WriteChan)
		close(conn.StopChan)
		delete(cm.connections, connID)
		if cm.byUser[conn.UserID] == connID {
			delete(cm.byUser, conn.UserID)
		}
		log.Printf("❌ Connection removed: %s user=%s (Total: %d)", connID, conn.UserID, len(cm.connections))
	}
}

// Get retrieves a connection by ID
func (cm *ConnectionManager) Get(connID string) (*models.UserConnection, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	conn, exists := cm.connections[connID]
	return conn, exists
}

// GetByUser retrieves a user's current connection.
func (cm *ConnectionManager) GetByUser(userID string) (*models.UserConnection, bool) {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	connID, ok := cm.byUser[userID]
	if !ok {
		return nil, false
	}
	conn, exists := cm.connections[connID]
	return conn, exists
}

// HasUser reports whether a user currently has a live connection.
func (cm *ConnectionManager) HasUser(userID string) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	_, ok := cm.byUser[userID]
	return ok
}

// Count returns the number of active connections
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// UserIDs returns the IDs of every connected user.
func (cm *ConnectionManager) UserIDs() []string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	ids := make([]string, 0, len(cm.byUser))
	for userID := range cm.byUser {
		ids = append(ids, userID)
	}
	return ids
}

// GetAll returns all active connections
func (cm *ConnectionManager) GetAll() []*models.UserConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	conns := make([]*models.UserConnection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	return conns
}
