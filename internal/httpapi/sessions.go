package httpapi

import (
	"sync"

	"github.com/bull/wikiquery/internal/agent"
)

// sessionStore holds pending streaming-chat histories in memory, keyed by
// session id. Sessions survive the stream so a client can re-pull after a
// dropped connection.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]agent.ChatEntry
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string][]agent.ChatEntry)}
}

func (s *sessionStore) put(id string, chat []agent.ChatEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = chat
}

func (s *sessionStore) get(id string) ([]agent.ChatEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.sessions[id]
	return chat, ok
}
