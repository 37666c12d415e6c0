package common

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"github.com/warthog618/gpiod"
)

const consumerName = "go-gpio-devices"

type lineInfo struct {
	line      *gpiod.Line
	direction hal.Direction
	watched   bool
}

// HWHandler drives GPIO lines of one chip through the Linux GPIO character
// device. It implements hal.GPIOHandler.
type HWHandler struct {
	chipName string            // GPIO chip name, e.g. gpiochip0
	chip     *gpiod.Chip       // opened chip
	lines    map[int]*lineInfo // claimed lines, by offset
	mu       sync.Mutex        // lines map and line reconfiguration protection
}

func NewHWHandler(gpioChip string) (*HWHandler, error) {
	c, err := gpiod.NewChip(gpioChip, gpiod.WithConsumer(consumerName))
	if err != nil {
		return nil, fmt.Errorf("failed to create GPIO chip: %w", err)
	}
	return &HWHandler{
		chipName: gpioChip,
		chip:     c,
		lines:    make(map[int]*lineInfo),
	}, nil
}

func biasOption(pull hal.Pull) (gpiod.LineBias, bool) {
	switch pull {
	case hal.PullUp:
		return gpiod.WithPullUp, true
	case hal.PullDown:
		return gpiod.WithPullDown, true
	}
	return gpiod.WithBiasDisabled, false
}

func edgeOption(edge hal.Edge) gpiod.LineEdge {
	switch edge {
	case hal.EdgeRising:
		return gpiod.WithRisingEdge
	case hal.EdgeFalling:
		return gpiod.WithFallingEdge
	}
	return gpiod.WithBothEdges
}

func (obj *HWHandler) Configure(pin int, dir hal.Direction, pull hal.Pull) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()

	var reqOpt gpiod.LineReqOption
	var cfgOpt gpiod.LineConfigOption
	switch dir {
	case hal.DirectionInput:
		reqOpt, cfgOpt = gpiod.AsInput, gpiod.AsInput
	case hal.DirectionOutput:
		out := gpiod.AsOutput(hal.Low)
		reqOpt, cfgOpt = out, out
	default:
		return fmt.Errorf("failed to configure GPIO line %d with direction %s: %w", pin, dir, hal.ErrInvalidPin)
	}

	info, ok := obj.lines[pin]
	if ok && info.watched {
		// edge detection can't be dropped by reconfiguration, request the line again
		if err := info.line.Close(); err != nil {
			return fmt.Errorf("failed to close watched GPIO line %d: %w", pin, err)
		}
		delete(obj.lines, pin)
		ok = false
	}

	if ok {
		cfg := []gpiod.LineConfigOption{cfgOpt}
		if bias, set := biasOption(pull); set {
			cfg = append(cfg, bias)
		}
		if err := info.line.Reconfigure(cfg...); err != nil {
			return fmt.Errorf("failed to reconfigure GPIO line %d as %s: %w", pin, dir, err)
		}
		info.direction = dir
		return nil
	}

	req := []gpiod.LineReqOption{reqOpt}
	if bias, set := biasOption(pull); set {
		req = append(req, bias)
	}
	l, err := obj.chip.RequestLine(pin, req...)
	if err != nil {
		return fmt.Errorf("failed to request GPIO line %d: %w: %w", pin, hal.ErrInvalidPin, err)
	}
	obj.lines[pin] = &lineInfo{line: l, direction: dir}
	return nil
}

func (obj *HWHandler) SetValue(pin int, value int) error {
	if !hal.ValidLevel(value) {
		return fmt.Errorf("failed to set GPIO line %d to %d: %w", pin, value, hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	info, ok := obj.lines[pin]
	obj.mu.Unlock()
	if !ok || info.direction != hal.DirectionOutput {
		return fmt.Errorf("GPIO line %d is not configured as output: %w", pin, hal.ErrInvalidPin)
	}
	if err := info.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set value on GPIO line %d: %w: %w", pin, hal.ErrHardwareWrite, err)
	}
	return nil
}

func (obj *HWHandler) SetValues(pins []int, values []int) error {
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

func (obj *HWHandler) Value(pin int) (int, error) {
	obj.mu.Lock()
	info, ok := obj.lines[pin]
	obj.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("GPIO line %d is not open: %w", pin, hal.ErrInvalidPin)
	}
	v, err := info.line.Value()
	if err != nil {
		return 0, fmt.Errorf("failed to get GPIO line %d value: %w", pin, err)
	}
	return v, nil
}

func (obj *HWHandler) Direction(pin int) (hal.Direction, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	info, ok := obj.lines[pin]
	if !ok {
		return hal.DirectionUnknown, fmt.Errorf("GPIO line %d is not open: %w", pin, hal.ErrInvalidPin)
	}
	return info.direction, nil
}

func (obj *HWHandler) Watch(pin int, pull hal.Pull, edge hal.Edge, handler hal.EdgeHandler) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()

	if info, ok := obj.lines[pin]; ok {
		if err := info.line.Close(); err != nil {
			return fmt.Errorf("failed to close GPIO line %d before watching: %w", pin, err)
		}
		delete(obj.lines, pin)
	}

	onEvent := func(evt gpiod.LineEvent) {
		e := hal.EdgeEvent{Pin: evt.Offset, Edge: hal.EdgeFalling, Timestamp: evt.Timestamp}
		if evt.Type == gpiod.LineEventRisingEdge {
			e.Edge = hal.EdgeRising
		}
		handler(e)
	}
	req := []gpiod.LineReqOption{gpiod.AsInput, gpiod.WithEventHandler(onEvent), edgeOption(edge)}
	if bias, set := biasOption(pull); set {
		req = append(req, bias)
	}
	l, err := obj.chip.RequestLine(pin, req...)
	if err != nil {
		return fmt.Errorf("failed to request GPIO line %d with edge detection: %w: %w", pin, hal.ErrInvalidPin, err)
	}
	obj.lines[pin] = &lineInfo{line: l, direction: hal.DirectionInput, watched: true}
	return nil
}

func (obj *HWHandler) release(pin int, info *lineInfo) error {
	if info.direction == hal.DirectionOutput {
		// leave the pin floating rather than driven
		if err := info.line.Reconfigure(gpiod.AsInput); err != nil {
			info.line.Close()
			return fmt.Errorf("failed to revert GPIO line %d to input: %w", pin, err)
		}
	}
	if err := info.line.Close(); err != nil {
		return fmt.Errorf("failed to close GPIO line %d: %w", pin, err)
	}
	return nil
}

func (obj *HWHandler) Release(pin int) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	info, ok := obj.lines[pin]
	if !ok {
		return nil
	}
	delete(obj.lines, pin)
	return obj.release(pin, info)
}

// Close releases all claimed lines and closes the chip. Every line is
// released even if some of them fail.
func (obj *HWHandler) Close() error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	var errs []error
	for pin, info := range obj.lines {
		if err := obj.release(pin, info); err != nil {
			errs = append(errs, err)
		}
		delete(obj.lines, pin)
	}
	if err := obj.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close GPIO chip %s: %w", obj.chipName, err))
	}
	return errors.Join(errs...)
}

var _ hal.GPIOHandler = (*HWHandler)(nil)
