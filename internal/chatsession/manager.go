// Package chatsession serves browser chat sessions over WebSocket. Each
// socket owns one conversation client.
package chatsession

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks active chat sockets by session ID.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]*websocket.Conn),
	}
}

// GetActive returns the connection for a session, or nil.
func (m *SessionManager) GetActive(sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Register adds conn under sessionID, closing any connection it replaces.
func (m *SessionManager) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[sessionID] = conn
	slog.Info("Chat session registered", "session_id", sessionID, "active", len(m.active))
}

// Unregister removes conn if it is still the registered connection.
func (m *SessionManager) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[sessionID]; exists && current == conn {
		delete(m.active, sessionID)
		slog.Info("Chat session unregistered", "session_id", sessionID, "active", len(m.active))
	}
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll closes every active session. Used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	for sid, conn := range sessions {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		slog.Info("Chat session closed", "session_id", sid)
	}
}
