package repository

import (
	"sync"

	"go-scan-capture/internal/capture"
)

// InMemorySessionRepository keeps live sessions in a map. Sessions are
// transient by design: a restart ends any scan in progress.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*capture.Session
}

func NewInMemorySessionRepository() SessionRepository {
	return &InMemorySessionRepository{
		sessions: make(map[string]*capture.Session),
	}
}

func (r *InMemorySessionRepository) Save(session *capture.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID()]; exists {
		return ErrSessionExists
	}
	r.sessions[session.ID()] = session
	return nil
}

func (r *InMemorySessionRepository) Get(id string) (*capture.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (r *InMemorySessionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *InMemorySessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
