package server

import (
	"sync"

	"github.com/cardroom/cardroom/internal/game"
)

// Registry is the process-wide map from client-supplied instance key to its
// session. Sessions are created lazily on first reference and never
// expired; state is in-memory only.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*game.Session
	create   func(key string) *game.Session
}

// NewRegistry builds a registry that uses create to construct sessions on
// first reference.
func NewRegistry(create func(key string) *game.Session) *Registry {
	return &Registry{
		sessions: make(map[string]*game.Session),
		create:   create,
	}
}

// GetOrCreate returns the session for key, creating it if absent.
func (r *Registry) GetOrCreate(key string) *game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[key]
	if !ok {
		sess = r.create(key)
		r.sessions[key] = sess
	}
	return sess
}

// Get returns the session for key, or nil if it was never referenced.
func (r *Registry) Get(key string) *game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}
