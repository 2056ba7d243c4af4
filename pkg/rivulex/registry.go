package rivulex

import "sync"

// Registry maps stream names to per-action handlers. Registration is
// last-writer-wins; lookup is exact-match by action name.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]map[string]Handler)}
}

// Register binds handler to (stream, action), replacing any previous
// handler for that action.
func (r *Registry) Register(stream, action string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.streams[stream]
	if !ok {
		actions = make(map[string]Handler)
		r.streams[stream] = actions
	}
	actions[action] = handler
}

// Handlers returns a snapshot of the action handlers for stream. The
// copy is owned by the caller; dispatch never observes later mutation.
func (r *Registry) Handlers(stream string) map[string]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions := r.streams[stream]
	out := make(map[string]Handler, len(actions))
	for action, h := range actions {
		out[action] = h
	}
	return out
}

// Streams returns the stream names with at least one registration.
func (r *Registry) Streams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.streams))
	for stream := range r.streams {
		out = append(out, stream)
	}
	return out
}
