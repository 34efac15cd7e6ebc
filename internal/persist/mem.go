package persist

import (
	"context"
	"strings"
	"sync"

	"github.com/inamate/sketchboard/internal/element"
)

// MemStore keeps everything in process memory. Used for tests and for
// single-node servers that can lose state on restart.
type MemStore struct {
	mu     sync.RWMutex
	scenes map[string]snapshot
	users  map[string]User
	emails map[string]string // lower-cased email -> user id
}

func NewMemStore() *MemStore {
	return &MemStore{
		scenes: make(map[string]snapshot),
		users:  make(map[string]User),
		emails: make(map[string]string),
	}
}

func (m *MemStore) LoadScene(_ context.Context, sceneID string) ([]element.Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.scenes[sceneID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAll(snap.Elements), nil
}

func (m *MemStore) SaveScene(_ context.Context, sceneID string, els []element.Element) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version := m.scenes[sceneID].Version + 1
	m.scenes[sceneID] = snapshot{Version: version, Elements: cloneAll(els)}
	return version, nil
}

func (m *MemStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := m.emails[key]; ok {
		return ErrConflict
	}
	if _, ok := m.users[u.ID]; ok {
		return ErrConflict
	}
	m.users[u.ID] = u
	m.emails[key] = u.ID
	return nil
}

func (m *MemStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemStore) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) Close() error { return nil }

func cloneAll(els []element.Element) []element.Element {
	out := make([]element.Element, len(els))
	for i, el := range els {
		out[i] = el.Clone()
	}
	return out
}
