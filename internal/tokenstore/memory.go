package tokenstore

import (
	"context"
	"sync"
)

// Memory — хранилище в памяти процесса. Используется в тестах и для
// одноразовых сессий (storage.driver=memory).
type Memory struct {
	mu       sync.RWMutex
	access   string
	refresh  string
	identity []byte
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) AccessToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.access == "" {
		return "", ErrNotFound
	}

	return m.access, nil
}

func (m *Memory) RefreshToken(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.refresh == "" {
		return "", ErrNotFound
	}

	return m.refresh, nil
}

func (m *Memory) SetTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	m.access, m.refresh = access, refresh
	m.mu.Unlock()

	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.access, m.refresh, m.identity = "", "", nil
	m.mu.Unlock()

	return nil
}

func (m *Memory) Identity(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.identity) == 0 {
		return nil, ErrNotFound
	}

	return append([]byte(nil), m.identity...), nil
}

func (m *Memory) SetIdentity(_ context.Context, user []byte) error {
	m.mu.Lock()
	m.identity = append([]byte(nil), user...)
	m.mu.Unlock()

	return nil
}
