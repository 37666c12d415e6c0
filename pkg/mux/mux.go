// Package mux drives a 74HC4051 8 channel analog multiplexer.
package mux

import (
	"fmt"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// NoInhibit marks the E (inhibit) input as hard wired to ground.
const NoInhibit = -1

const Channels = 8

type Pins struct {
	A       int // S0
	B       int // S1
	C       int // S2
	Inhibit int // E, active high; NoInhibit if not connected
}

type Mux struct {
	hw      hal.GPIOHandler
	pins    Pins
	mu      sync.Mutex
	channel int
	enabled bool
}

// New configures the select lines, selects channel 0 and enables the output.
func New(hw hal.GPIOHandler, pins Pins) (*Mux, error) {
	lines := []int{pins.C, pins.B, pins.A}
	if pins.Inhibit != NoInhibit {
		lines = append(lines, pins.Inhibit)
	}
	seen := make(map[int]bool)
	for _, pin := range lines {
		if pin < 0 || seen[pin] {
			return nil, fmt.Errorf("mux lines must be distinct and non negative, got %v: %w", lines, hal.ErrInvalidPin)
		}
		seen[pin] = true
		if err := hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
			return nil, fmt.Errorf("failed to configure mux line %d: %w", pin, err)
		}
	}
	m := &Mux{hw: hw, pins: pins, enabled: true}
	if err := m.SelectChannel(0); err != nil {
		return nil, err
	}
	return m, nil
}

// SelectChannel routes channel (0..7) to the common I/O pin.
func (obj *Mux) SelectChannel(channel int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("mux channel %d out of range 0..7: %w", channel, hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	err := obj.hw.SetValues(
		[]int{obj.pins.C, obj.pins.B, obj.pins.A},
		[]int{(channel >> 2) & 1, (channel >> 1) & 1, channel & 1},
	)
	if err != nil {
		return fmt.Errorf("failed to select mux channel %d: %w", channel, err)
	}
	obj.channel = channel
	return nil
}

// DisableOutput drives the inhibit line, disconnecting all channels while
// disabled is set.
func (obj *Mux) DisableOutput(disabled bool) error {
	if obj.pins.Inhibit == NoInhibit {
		return fmt.Errorf("mux inhibit line is not connected: %w", hal.ErrInvalidPin)
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()
	level := hal.Low
	if disabled {
		level = hal.High
	}
	if err := obj.hw.SetValue(obj.pins.Inhibit, level); err != nil {
		return fmt.Errorf("failed to set mux inhibit: %w", err)
	}
	obj.enabled = !disabled
	return nil
}

func (obj *Mux) CurrentChannel() int {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.channel
}

func (obj *Mux) Enabled() bool {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.enabled
}
