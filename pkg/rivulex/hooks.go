package rivulex

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Hook names an engine lifecycle event.
type Hook string

const (
	HookPublished Hook = "published"
	HookFailed    Hook = "failed"
	HookConfirmed Hook = "confirmed"
	HookRejected  Hook = "rejected"
	HookTimeout   Hook = "timeout"
)

// HookEvent is the payload delivered to hook listeners.
type HookEvent struct {
	ID    string // stream entry ID, when known
	Event *Event // the event involved, may be partial for publish failures
	Err   error  // set for failed deliveries and publishes
}

// Listener receives hook events. Listeners run synchronously on the
// emitting goroutine and should avoid heavy work.
type Listener func(ev HookEvent)

type subscription struct {
	token string
	fn    Listener
}

// Hooks is an in-process publish/subscribe bus for lifecycle events.
// Listener panics are recovered and logged; they never propagate into
// the engine.
type Hooks struct {
	mu        sync.RWMutex
	listeners map[Hook][]subscription
	logger    *slog.Logger
}

// NewHooks creates an empty hook bus.
func NewHooks(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		listeners: make(map[Hook][]subscription),
		logger:    logger,
	}
}

// On registers a listener for the named hook and returns a token for
// removal. Listeners registered before listen/publish observe all
// subsequent events.
func (h *Hooks) On(hook Hook, fn Listener) string {
	token := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[hook] = append(h.listeners[hook], subscription{token: token, fn: fn})
	return token
}

// Off removes a previously registered listener by its token.
func (h *Hooks) Off(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for hook, subs := range h.listeners {
		for i, sub := range subs {
			if sub.token == token {
				h.listeners[hook] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// emit dispatches ev to the hook's listeners in registration order over
// a snapshot, so listener sets may be mutated concurrently with
// emission.
func (h *Hooks) emit(hook Hook, ev HookEvent) {
	h.mu.RLock()
	subs := h.listeners[hook]
	h.mu.RUnlock()

	for _, sub := range subs {
		h.dispatch(hook, sub.fn, ev)
	}
}

func (h *Hooks) dispatch(hook Hook, fn Listener, ev HookEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hook listener panicked", "hook", string(hook), "panic", r)
		}
	}()
	fn(ev)
}
