// Package periphio implements hal.GPIOHandler on top of periph.io host
// drivers, for boards where the GPIO character device is not available.
package periphio

import (
	"fmt"
	"sync"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edge wait granularity, bounds how long Release waits for a watcher to stop
const edgePollInterval = 100 * time.Millisecond

type lineInfo struct {
	pin       gpio.PinIO
	direction hal.Direction
	stop      chan struct{}
	done      chan struct{}
}

// Handler addresses pins by their BCM number (GPIOx).
type Handler struct {
	lookup func(name string) gpio.PinIO
	mu     sync.Mutex
	lines  map[int]*lineInfo
	start  time.Time
}

// NewHandler initialises the periph host drivers. host.Init can safely be
// called multiple times.
func NewHandler() (*Handler, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	return NewHandlerWithLookup(gpioreg.ByName), nil
}

// NewHandlerWithLookup builds a handler resolving pins through lookup instead
// of the global periph registry.
func NewHandlerWithLookup(lookup func(name string) gpio.PinIO) *Handler {
	return &Handler{
		lookup: lookup,
		lines:  make(map[int]*lineInfo),
		start:  time.Now(),
	}
}

func pullOf(pull hal.Pull) gpio.Pull {
	switch pull {
	case hal.PullUp:
		return gpio.PullUp
	case hal.PullDown:
		return gpio.PullDown
	}
	return gpio.Float
}

func edgeOf(edge hal.Edge) gpio.Edge {
	switch edge {
	case hal.EdgeRising:
		return gpio.RisingEdge
	case hal.EdgeFalling:
		return gpio.FallingEdge
	}
	return gpio.BothEdges
}

func (obj *Handler) resolve(pin int) (gpio.PinIO, error) {
	if pin < 0 {
		return nil, fmt.Errorf("invalid GPIO number %d: %w", pin, hal.ErrInvalidPin)
	}
	p := obj.lookup(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("GPIO%d not found: %w", pin, hal.ErrInvalidPin)
	}
	return p, nil
}

// take removes a line from the claimed set and stops its watcher.
func (obj *Handler) take(pin int) *lineInfo {
	obj.mu.Lock()
	info, ok := obj.lines[pin]
	delete(obj.lines, pin)
	obj.mu.Unlock()
	if !ok {
		return nil
	}
	if info.stop != nil {
		close(info.stop)
		<-info.done
	}
	return info
}

func (obj *Handler) Configure(pin int, dir hal.Direction, pull hal.Pull) error {
	p, err := obj.resolve(pin)
	if err != nil {
		return err
	}
	obj.take(pin)

	switch dir {
	case hal.DirectionOutput:
		err = p.Out(gpio.Low)
	case hal.DirectionInput:
		err = p.In(pullOf(pull), gpio.NoEdge)
	default:
		return fmt.Errorf("failed to configure %s with direction %s: %w", p, dir, hal.ErrInvalidPin)
	}
	if err != nil {
		return fmt.Errorf("failed to configure %s as %s: %w: %w", p, dir, hal.ErrInvalidPin, err)
	}
	obj.mu.Lock()
	obj.lines[pin] = &lineInfo{pin: p, direction: dir}
	obj.mu.Unlock()
	return nil
}

func (obj *Handler) line(pin int) (*lineInfo, bool) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	info, ok := obj.lines[pin]
	return info, ok
}

func (obj *Handler) SetValue(pin int, value int) error {
	if !hal.ValidLevel(value) {
		return fmt.Errorf("failed to set GPIO%d to %d: %w", pin, value, hal.ErrInvalidValue)
	}
	info, ok := obj.line(pin)
	if !ok || info.direction != hal.DirectionOutput {
		return fmt.Errorf("GPIO%d is not configured as output: %w", pin, hal.ErrInvalidPin)
	}
	if err := info.pin.Out(gpio.Level(value == hal.High)); err != nil {
		return fmt.Errorf("failed to set value on %s: %w: %w", info.pin, hal.ErrHardwareWrite, err)
	}
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

func (obj *Handler) Value(pin int) (int, error) {
	info, ok := obj.line(pin)
	if !ok {
		return 0, fmt.Errorf("GPIO%d is not open: %w", pin, hal.ErrInvalidPin)
	}
	if info.pin.Read() == gpio.High {
		return hal.High, nil
	}
	return hal.Low, nil
}

func (obj *Handler) Direction(pin int) (hal.Direction, error) {
	info, ok := obj.line(pin)
	if !ok {
		return hal.DirectionUnknown, fmt.Errorf("GPIO%d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return info.direction, nil
}

func (obj *Handler) Watch(pin int, pull hal.Pull, edge hal.Edge, handler hal.EdgeHandler) error {
	p, err := obj.resolve(pin)
	if err != nil {
		return err
	}
	obj.take(pin)
	if err := p.In(pullOf(pull), edgeOf(edge)); err != nil {
		return fmt.Errorf("failed to enable edge detection on %s: %w: %w", p, hal.ErrInvalidPin, err)
	}
	info := &lineInfo{
		pin:       p,
		direction: hal.DirectionInput,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	obj.mu.Lock()
	obj.lines[pin] = info
	obj.mu.Unlock()

	go func() {
		defer close(info.done)
		for {
			select {
			case <-info.stop:
				return
			default:
			}
			if !p.WaitForEdge(edgePollInterval) {
				continue
			}
			evt := hal.EdgeEvent{Pin: pin, Edge: hal.EdgeFalling, Timestamp: time.Since(obj.start)}
			if p.Read() == gpio.High {
				evt.Edge = hal.EdgeRising
			}
			if edge != hal.EdgeBoth && evt.Edge != edge {
				continue
			}
			handler(evt)
		}
	}()
	return nil
}

func (obj *Handler) release(info *lineInfo) error {
	if err := info.pin.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("failed to release %s: %w", info.pin, err)
	}
	return nil
}

func (obj *Handler) Release(pin int) error {
	info := obj.take(pin)
	if info == nil {
		return nil
	}
	return obj.release(info)
}

func (obj *Handler) Close() error {
	obj.mu.Lock()
	pins := make([]int, 0, len(obj.lines))
	for pin := range obj.lines {
		pins = append(pins, pin)
	}
	obj.mu.Unlock()

	var first error
	for _, pin := range pins {
		if err := obj.Release(pin); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ hal.GPIOHandler = (*Handler)(nil)
