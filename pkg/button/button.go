// Package button handles push buttons wired between a GPIO line and ground,
// with the line pulled up.
package button

import (
	"fmt"
	"sync"
	"time"

	"github.com/mazen160/go-random"
	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

const DefaultDebounce = 50 * time.Millisecond

type Button struct {
	hw       hal.GPIOHandler
	pin      int
	debounce time.Duration

	mu        sync.Mutex
	lastPress time.Duration
	pressed   bool // at least one press accepted
	presses   int
	onPress   func(hal.EdgeEvent)

	muWaiters sync.Mutex
	waiters   map[string]chan hal.EdgeEvent
}

// New claims pin as a pulled-up input and starts watching for presses.
// Falling edges closer than debounce to the previously accepted press are
// ignored. A zero debounce disables filtering.
func New(hw hal.GPIOHandler, pin int, debounce time.Duration) (*Button, error) {
	if hw == nil {
		return nil, fmt.Errorf("GPIO handler is required")
	}
	b := &Button{
		hw:       hw,
		pin:      pin,
		debounce: debounce,
		waiters:  make(map[string]chan hal.EdgeEvent),
	}
	if err := hw.Watch(pin, hal.PullUp, hal.EdgeFalling, b.edgeEvent); err != nil {
		return nil, fmt.Errorf("failed to watch button line %d: %w", pin, err)
	}
	return b, nil
}

func (obj *Button) Pin() int {
	return obj.pin
}

// OnPress sets the callback run for every accepted press. It runs on the
// event delivery goroutine of the GPIO backend.
func (obj *Button) OnPress(handler func(hal.EdgeEvent)) {
	obj.mu.Lock()
	obj.onPress = handler
	obj.mu.Unlock()
}

// Presses returns the number of accepted presses.
func (obj *Button) Presses() int {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.presses
}

// Pressed reports whether the button is currently held down.
func (obj *Button) Pressed() (bool, error) {
	v, err := obj.hw.Value(obj.pin)
	if err != nil {
		return false, fmt.Errorf("failed to read button line %d: %w", obj.pin, err)
	}
	return v == hal.Low, nil
}

func (obj *Button) edgeEvent(evt hal.EdgeEvent) {
	if evt.Edge != hal.EdgeFalling {
		return
	}
	obj.mu.Lock()
	if obj.pressed && evt.Timestamp-obj.lastPress < obj.debounce {
		obj.mu.Unlock()
		return
	}
	obj.pressed = true
	obj.lastPress = evt.Timestamp
	obj.presses++
	handler := obj.onPress
	obj.mu.Unlock()

	if handler != nil {
		handler(evt)
	}
	obj.notifyWaiters(evt)
}

func (obj *Button) notifyWaiters(evt hal.EdgeEvent) {
	obj.muWaiters.Lock()
	defer obj.muWaiters.Unlock()
	for id, ch := range obj.waiters {
		ch <- evt
		close(ch)
		delete(obj.waiters, id)
	}
}

// WaitPress blocks until the next accepted press or until timeout passes.
func (obj *Button) WaitPress(timeout time.Duration) (hal.EdgeEvent, error) {
	ch := make(chan hal.EdgeEvent, 1)
	id, err := random.String(16)
	if err != nil {
		return hal.EdgeEvent{}, fmt.Errorf("failed to generate random id: %w", err)
	}
	obj.muWaiters.Lock()
	obj.waiters[id] = ch
	obj.muWaiters.Unlock()

	select {
	case <-time.After(timeout):
		obj.muWaiters.Lock()
		delete(obj.waiters, id)
		obj.muWaiters.Unlock()
		return hal.EdgeEvent{}, fmt.Errorf("no button press on line %d within %s", obj.pin, timeout)
	case evt := <-ch:
		return evt, nil
	}
}

// Close stops watching and releases the line.
func (obj *Button) Close() error {
	if err := obj.hw.Release(obj.pin); err != nil {
		return fmt.Errorf("failed to release button line %d: %w", obj.pin, err)
	}
	return nil
}
