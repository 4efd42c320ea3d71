// Package lock provides keyed mutexes. The runner uses one to serialize
// tasks whose config sets parallel: false, since such a task must not run
// concurrently with any other task of the same name.
package lock

import "sync"

// KeyedMutex is a lazily populated map of named mutexes.
type KeyedMutex struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

// NewKeyedMutex returns an empty keyed mutex map.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{mutexes: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use.
func (m *KeyedMutex) Lock(key string) {
	m.get(key).Lock()
}

// Unlock releases the mutex for key.
func (m *KeyedMutex) Unlock(key string) {
	m.get(key).Unlock()
}

func (m *KeyedMutex) get(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mu, ok := m.mutexes[key]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}
