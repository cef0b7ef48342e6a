// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by ConfigStore.Get for keys that were never set.
var ErrNotFound = errors.New("setting not found")

// ConfigStore persists JSON-encoded setting values by key.
type ConfigStore interface {
	// Get returns the JSON value of key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores the JSON value of key.
	Set(ctx context.Context, key string, value []byte) error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is a ConfigStore that keeps values in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	setErr error
	writes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get implements ConfigStore.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements ConfigStore.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

// FailWrites makes every following Set return err; nil restores writes.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	s.setErr = err
	s.mu.Unlock()
}

// Writes returns the number of successful Set calls.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Keys returns the stored keys.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}
