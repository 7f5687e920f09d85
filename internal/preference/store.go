// Package preference persists the per-client UI language.
//
// Stores return values as written; deciding what to do with an unknown
// language is left to the caller.
package preference

import (
	"context"
	"sync"

	"skyview/internal/types"
)

// Store reads and writes one language preference per client.
type Store interface {
	// Load returns the stored language. The boolean is false when nothing
	// has been stored for clientID.
	Load(ctx context.Context, clientID string) (types.Language, bool, error)
	Save(ctx context.Context, clientID string, lang types.Language) error
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	langs map[string]types.Language
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{langs: make(map[string]types.Language)}
}

func (s *MemoryStore) Load(_ context.Context, clientID string) (types.Language, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lang, ok := s.langs[clientID]
	return lang, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, clientID string, lang types.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.langs[clientID] = lang
	return nil
}
