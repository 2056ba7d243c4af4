package rivulex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitHooks_EmitDeliversInRegistrationOrder(t *testing.T) {
	h := NewHooks(nil)

	var order []int
	h.On(HookPublished, func(HookEvent) { order = append(order, 1) })
	h.On(HookPublished, func(HookEvent) { order = append(order, 2) })
	h.On(HookPublished, func(HookEvent) { order = append(order, 3) })

	h.emit(HookPublished, HookEvent{ID: "1-0"})

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestUnitHooks_ListenersScopedToHook(t *testing.T) {
	h := NewHooks(nil)

	confirmed := 0
	rejected := 0
	h.On(HookConfirmed, func(HookEvent) { confirmed++ })
	h.On(HookRejected, func(HookEvent) { rejected++ })

	h.emit(HookConfirmed, HookEvent{})
	h.emit(HookConfirmed, HookEvent{})

	assert.Equal(t, 2, confirmed)
	assert.Equal(t, 0, rejected)
}

func TestUnitHooks_OffRemovesListener(t *testing.T) {
	h := NewHooks(nil)

	calls := 0
	token := h.On(HookFailed, func(HookEvent) { calls++ })

	h.emit(HookFailed, HookEvent{})
	h.Off(token)
	h.emit(HookFailed, HookEvent{})

	assert.Equal(t, 1, calls)
}

func TestUnitHooks_PanickingListenerDoesNotPropagate(t *testing.T) {
	h := NewHooks(nil)

	after := false
	h.On(HookTimeout, func(HookEvent) { panic("listener bug") })
	h.On(HookTimeout, func(HookEvent) { after = true })

	require.NotPanics(t, func() {
		h.emit(HookTimeout, HookEvent{})
	})
	assert.True(t, after, "later listeners still run")
}

func TestUnitHooks_ConcurrentSubscribeAndEmit(t *testing.T) {
	h := NewHooks(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.On(HookPublished, func(HookEvent) {})
		}()
		go func() {
			defer wg.Done()
			h.emit(HookPublished, HookEvent{})
		}()
	}
	wg.Wait()
}
