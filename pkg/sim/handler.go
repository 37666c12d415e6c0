// Package sim provides in-memory stand-ins for the hardware this module talks
// to: a GPIO handler with attachable device models, a 74HC595 model and an
// ADS1x15 I2C bus. The tools use them with -sim, the tests use them as doubles.
package sim

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// Toggle is one recorded output write.
type Toggle struct {
	Pin   int
	Value int
}

// Device models hardware attached to output lines. OnWrite is called for
// every output write before it takes effect; an error rejects the write.
type Device interface {
	OnWrite(pin int, value int) error
}

// Aborter is implemented by devices that track frames spanning several
// writes. Abort is called when a platform error stops a write to pin.
type Aborter interface {
	Abort(pin int)
}

type watcher struct {
	edge    hal.Edge
	handler hal.EdgeHandler
}

type pinState struct {
	direction hal.Direction
	pull      hal.Pull
	value     int
	driven    bool // input level set by Inject
	watch     *watcher
}

// Handler is a simulated hal.GPIOHandler.
type Handler struct {
	mu      sync.Mutex
	pins    map[int]*pinState
	devices []Device
	trace   []Toggle
	failOn  map[int]error
	verbose bool
	start   time.Time
}

func NewHandler() *Handler {
	return &Handler{
		pins:   make(map[int]*pinState),
		failOn: make(map[int]error),
		start:  time.Now(),
	}
}

func (obj *Handler) SetVerbosity(verbose bool) {
	obj.mu.Lock()
	obj.verbose = verbose
	obj.mu.Unlock()
}

// Attach connects a device model to the handler's output lines.
func (obj *Handler) Attach(d Device) {
	obj.mu.Lock()
	obj.devices = append(obj.devices, d)
	obj.mu.Unlock()
}

// FailOn makes every following write to pin fail with cause, as a platform
// error would. A nil cause clears the failure.
func (obj *Handler) FailOn(pin int, cause error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if cause == nil {
		delete(obj.failOn, pin)
		return
	}
	obj.failOn[pin] = cause
}

// Trace returns a copy of all output writes recorded so far.
func (obj *Handler) Trace() []Toggle {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return append([]Toggle(nil), obj.trace...)
}

func (obj *Handler) ResetTrace() {
	obj.mu.Lock()
	obj.trace = nil
	obj.mu.Unlock()
}

// Claimed returns the sorted offsets of all claimed lines.
func (obj *Handler) Claimed() []int {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	pins := make([]int, 0, len(obj.pins))
	for pin := range obj.pins {
		pins = append(pins, pin)
	}
	sort.Ints(pins)
	return pins
}

// Pull returns the bias a claimed line was configured with.
func (obj *Handler) Pull(pin int) (hal.Pull, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	p, ok := obj.pins[pin]
	if !ok {
		return hal.PullNone, fmt.Errorf("sim line %d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return p.pull, nil
}

func (obj *Handler) Configure(pin int, dir hal.Direction, pull hal.Pull) error {
	if pin < 0 {
		return fmt.Errorf("failed to request sim line %d: %w", pin, hal.ErrInvalidPin)
	}
	if dir != hal.DirectionInput && dir != hal.DirectionOutput {
		return fmt.Errorf("failed to configure sim line %d with direction %s: %w", pin, dir, hal.ErrInvalidPin)
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.verbose {
		log.Printf("sim: Configure(%d, %s)", pin, dir)
	}
	obj.pins[pin] = &pinState{direction: dir, pull: pull}
	return nil
}

func (obj *Handler) SetValue(pin int, value int) error {
	if !hal.ValidLevel(value) {
		return fmt.Errorf("failed to set sim line %d to %d: %w", pin, value, hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	p, ok := obj.pins[pin]
	if !ok || p.direction != hal.DirectionOutput {
		obj.mu.Unlock()
		return fmt.Errorf("sim line %d is not configured as output: %w", pin, hal.ErrInvalidPin)
	}
	devices := append([]Device(nil), obj.devices...)
	cause, failed := obj.failOn[pin]
	obj.mu.Unlock()

	if failed {
		for _, d := range devices {
			if a, ok := d.(Aborter); ok {
				a.Abort(pin)
			}
		}
		return fmt.Errorf("failed to set value on sim line %d: %w: %w", pin, hal.ErrHardwareWrite, cause)
	}
	// devices run unlocked, so writes from concurrent callers interleave as
	// they would on the wires
	for _, d := range devices {
		if err := d.OnWrite(pin, value); err != nil {
			return fmt.Errorf("sim line %d write rejected: %w", pin, err)
		}
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.verbose {
		log.Printf("sim: SetValue(%d, %d)", pin, value)
	}
	if p, ok := obj.pins[pin]; ok {
		p.value = value
	}
	obj.trace = append(obj.trace, Toggle{Pin: pin, Value: value})
	return nil
}

func (obj *Handler) SetValues(pins []int, values []int) error {
	if len(pins) != len(values) {
		return fmt.Errorf("expected %d values, but got %d: %w", len(pins), len(values), hal.ErrInvalidValue)
	}
	for i, pin := range pins {
		if err := obj.SetValue(pin, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *pinState) level() int {
	if p.direction == hal.DirectionOutput || p.driven {
		return p.value
	}
	if p.pull == hal.PullUp {
		return hal.High
	}
	return hal.Low
}

func (obj *Handler) Value(pin int) (int, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	p, ok := obj.pins[pin]
	if !ok {
		return 0, fmt.Errorf("sim line %d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return p.level(), nil
}

func (obj *Handler) Direction(pin int) (hal.Direction, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	p, ok := obj.pins[pin]
	if !ok {
		return hal.DirectionUnknown, fmt.Errorf("sim line %d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return p.direction, nil
}

func (obj *Handler) Watch(pin int, pull hal.Pull, edge hal.Edge, handler hal.EdgeHandler) error {
	if pin < 0 {
		return fmt.Errorf("failed to request sim line %d: %w", pin, hal.ErrInvalidPin)
	}
	if handler == nil {
		return errors.New("sim: nil edge handler")
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.pins[pin] = &pinState{
		direction: hal.DirectionInput,
		pull:      pull,
		watch:     &watcher{edge: edge, handler: handler},
	}
	return nil
}

// Inject sets the externally driven level of an input line, as a button or
// sensor would. Watchers are called synchronously for matching edges.
func (obj *Handler) Inject(pin int, value int) error {
	return obj.InjectAt(pin, value, time.Since(obj.start))
}

// InjectAt is Inject with an explicit event timestamp.
func (obj *Handler) InjectAt(pin int, value int, ts time.Duration) error {
	if !hal.ValidLevel(value) {
		return fmt.Errorf("failed to inject %d on sim line %d: %w", value, pin, hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	p, ok := obj.pins[pin]
	if !ok || p.direction != hal.DirectionInput {
		obj.mu.Unlock()
		return fmt.Errorf("sim line %d is not configured as input: %w", pin, hal.ErrInvalidPin)
	}
	prev := p.level()
	p.value = value
	p.driven = true
	w := p.watch
	obj.mu.Unlock()

	if w == nil || prev == value {
		return nil
	}
	evt := hal.EdgeEvent{Pin: pin, Edge: hal.EdgeFalling, Timestamp: ts}
	if value == hal.High {
		evt.Edge = hal.EdgeRising
	}
	if w.edge == hal.EdgeBoth || w.edge == evt.Edge {
		w.handler(evt)
	}
	return nil
}

func (obj *Handler) Release(pin int) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	delete(obj.pins, pin)
	return nil
}

func (obj *Handler) Close() error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.pins = make(map[int]*pinState)
	return nil
}

var _ hal.GPIOHandler = (*Handler)(nil)
