package connection

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Subscriber holds information about a connected stream subscriber
type Subscriber struct {
	ConnectionID  string
	RemoteAddr    string
	ConnectedAt   time.Time
	LastDelivered time.Time
	Delivered     int64
	Conn          net.Conn
	mu            sync.RWMutex
}

// MarkDelivered records a successful write to the subscriber
func (s *Subscriber) MarkDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastDelivered = time.Now()
	s.Delivered++
}

// GetLastDelivered returns the time of the last successful write
func (s *Subscriber) GetLastDelivered() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastDelivered
}

// GetDelivered returns the number of lines written to the subscriber
func (s *Subscriber) GetDelivered() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Delivered
}

// Manager manages all connected subscribers
type Manager struct {
	subscribers map[string]*Subscriber // key: connection_id
	mu          sync.RWMutex
	maxConns    int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		subscribers: make(map[string]*Subscriber),
		maxConns:    maxConnections,
	}
}

// Register adds a new subscriber connection
func (m *Manager) Register(connectionID string, conn net.Conn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.subscribers) >= m.maxConns {
		return ErrMaxConnectionsReached
	}

	if _, exists := m.subscribers[connectionID]; exists {
		return fmt.Errorf("connection ID %s already registered", connectionID)
	}

	now := time.Now()
	m.subscribers[connectionID] = &Subscriber{
		ConnectionID:  connectionID,
		RemoteAddr:    conn.RemoteAddr().String(),
		ConnectedAt:   now,
		LastDelivered: now,
		Conn:          conn,
	}
	return nil
}

// Unregister removes a subscriber connection
func (m *Manager) Unregister(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subscribers[connectionID]; !exists {
		return fmt.Errorf("connection ID %s not found", connectionID)
	}
	delete(m.subscribers, connectionID)
	return nil
}

// Get retrieves subscriber information by connection ID
func (m *Manager) Get(connectionID string) (*Subscriber, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, exists := m.subscribers[connectionID]
	return sub, exists
}

// Snapshot returns the subscribers connected right now. The slice is a copy
// so callers can write to connections without holding the manager lock.
func (m *Manager) Snapshot() []*Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]*Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the total number of connected subscribers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var delivered int64
	for _, sub := range m.subscribers {
		delivered += sub.GetDelivered()
	}
	return ManagerStats{
		TotalConnections: len(m.subscribers),
		MaxConnections:   m.maxConns,
		LinesDelivered:   delivered,
	}
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int
	MaxConnections   int
	LinesDelivered   int64
}

var (
	ErrMaxConnectionsReached = &ConnectionError{"maximum connections reached"}
)

// ConnectionError represents a connection error
type ConnectionError struct {
	msg string
}

func (e *ConnectionError) Error() string {
	return e.msg
}
