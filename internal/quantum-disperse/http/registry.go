package http

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quantumauth-io/quantum-disperse/internal/quantum-disperse/session"
)

// Registry holds the connected sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

func (r *Registry) Add(s *session.Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id
}

func (r *Registry) Get(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops id and closes its session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
