// Package storage provides the shared durable key space that backs every
// record store. Each store namespaces its keys, so the whole application
// shares one Backend without collisions.
package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// Backend is the durable storage capability. Implementations must be safe
// for concurrent use. Callers decide how to react to failures; the record
// stores treat writes as best-effort and reads as empty-on-failure.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// Lister is an optional Backend extension for enumerating stored keys by
// prefix. Both shipped backends implement it.
type Lister interface {
	Keys(prefix string) ([]string, error)
}

// Memory is an in-process Backend used by tests and as a fallback when no
// durable medium is available.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all stored keys with the given prefix, sorted.
func (m *Memory) Keys(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
