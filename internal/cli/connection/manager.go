package connection

import (
	"sync"
	"time"
)

// Manager tracks the current server connection of a CLI session.
type Manager struct {
	timeout time.Duration

	mu      sync.Mutex
	current *Client
}

// NewManager creates a new connection manager.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Connect dials addr and makes it the current connection. The previous
// connection is closed only when the dial succeeds.
func (m *Manager) Connect(addr string) (*Client, error) {
	c, err := Dial(addr, m.timeout)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev := m.current
	m.current = c
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return c, nil
}

// Disconnect closes the current connection.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}

// Current returns the current connection, or nil.
func (m *Manager) Current() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsConnected returns true if a connection is active.
func (m *Manager) IsConnected() bool {
	return m.Current() != nil
}
