// Package gpiomem implements hal.GPIOHandler by mapping the BCM2835 GPIO
// registers through /dev/gpiomem. It needs no kernel GPIO character device
// and toggles lines faster than the other backends.
package gpiomem

import (
	"fmt"
	"sync"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"github.com/stianeikeland/go-rpio/v4"
)

// BCM2835 has 54 GPIO lines
const maxPin = 53

// the register interface has no edge interrupts, watched lines are sampled
const watchInterval = time.Millisecond

type lineInfo struct {
	pin       rpio.Pin
	direction hal.Direction
	stop      chan struct{}
	done      chan struct{}
}

type Handler struct {
	mu    sync.Mutex
	lines map[int]*lineInfo
	start time.Time
}

// NewHandler maps the GPIO registers. Only one handler should be open at a
// time since the mapping is process wide.
func NewHandler() (*Handler, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to map GPIO registers: %w", err)
	}
	return newHandler(), nil
}

func newHandler() *Handler {
	return &Handler{
		lines: make(map[int]*lineInfo),
		start: time.Now(),
	}
}

func checkPin(pin int) error {
	if pin < 0 || pin > maxPin {
		return fmt.Errorf("GPIO%d does not exist: %w", pin, hal.ErrInvalidPin)
	}
	return nil
}

func pullOf(pull hal.Pull) rpio.Pull {
	switch pull {
	case hal.PullUp:
		return rpio.PullUp
	case hal.PullDown:
		return rpio.PullDown
	}
	return rpio.PullOff
}

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

func (obj *Handler) line(pin int) (*lineInfo, bool) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	info, ok := obj.lines[pin]
	return info, ok
}

func (obj *Handler) Configure(pin int, dir hal.Direction, pull hal.Pull) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if dir != hal.DirectionInput && dir != hal.DirectionOutput {
		return fmt.Errorf("failed to configure GPIO%d with direction %s: %w", pin, dir, hal.ErrInvalidPin)
	}
	obj.take(pin)

	p := rpio.Pin(pin)
	if dir == hal.DirectionOutput {
		// set the latch before switching so the line never glitches high
		p.Low()
		p.Output()
		p.PullOff()
	} else {
		p.Input()
		p.Pull(pullOf(pull))
	}
	obj.mu.Lock()
	obj.lines[pin] = &lineInfo{pin: p, direction: dir}
	obj.mu.Unlock()
	return nil
}

func (obj *Handler) SetValue(pin int, value int) error {
	if !hal.ValidLevel(value) {
		return fmt.Errorf("failed to set GPIO%d to %d: %w", pin, value, hal.ErrInvalidValue)
	}
	info, ok := obj.line(pin)
	if !ok || info.direction != hal.DirectionOutput {
		return fmt.Errorf("GPIO%d is not configured as output: %w", pin, hal.ErrInvalidPin)
	}
	info.pin.Write(rpio.State(value))
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
	return int(info.pin.Read()), nil
}

func (obj *Handler) Direction(pin int) (hal.Direction, error) {
	info, ok := obj.line(pin)
	if !ok {
		return hal.DirectionUnknown, fmt.Errorf("GPIO%d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return info.direction, nil
}

func (obj *Handler) Watch(pin int, pull hal.Pull, edge hal.Edge, handler hal.EdgeHandler) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	obj.take(pin)
	p := rpio.Pin(pin)
	p.Input()
	p.Pull(pullOf(pull))

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
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		prev := p.Read()
		for {
			select {
			case <-info.stop:
				return
			case <-ticker.C:
			}
			cur := p.Read()
			if cur == prev {
				continue
			}
			prev = cur
			evt := hal.EdgeEvent{Pin: pin, Edge: hal.EdgeFalling, Timestamp: time.Since(obj.start)}
			if cur == rpio.High {
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

func (obj *Handler) Release(pin int) error {
	info := obj.take(pin)
	if info == nil {
		return nil
	}
	info.pin.Input()
	info.pin.PullOff()
	return nil
}

// Close releases every claimed line and unmaps the registers.
func (obj *Handler) Close() error {
	obj.mu.Lock()
	pins := make([]int, 0, len(obj.lines))
	for pin := range obj.lines {
		pins = append(pins, pin)
	}
	obj.mu.Unlock()

	for _, pin := range pins {
		obj.Release(pin)
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to unmap GPIO registers: %w", err)
	}
	return nil
}

var _ hal.GPIOHandler = (*Handler)(nil)
