// Package relay switches relay module channels driven from GPIO lines.
package relay

import (
	"fmt"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// NormalState is the contact state of a relay channel while its coil is not
// energized.
type NormalState int

const (
	NormallyOpen NormalState = iota
	NormallyClosed
)

func (n NormalState) String() string {
	if n == NormallyClosed {
		return "NC"
	}
	return "NO"
}

// Relay is one channel. Open and Close refer to the load circuit, so a
// normally closed channel is opened by energizing its coil.
type Relay struct {
	hw     hal.GPIOHandler
	pin    int
	normal NormalState
	mu     sync.Mutex
	closed bool
}

// New configures pin as an output and puts the contacts in their rest state.
func New(hw hal.GPIOHandler, pin int, normal NormalState) (*Relay, error) {
	if err := hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
		return nil, fmt.Errorf("failed to configure relay line %d: %w", pin, err)
	}
	r := &Relay{hw: hw, pin: pin, normal: normal}
	if err := r.Set(normal == NormallyClosed); err != nil {
		return nil, err
	}
	return r, nil
}

// coil returns the line level that gives the requested contact state.
func (obj *Relay) coil(closed bool) int {
	energize := closed
	if obj.normal == NormallyClosed {
		energize = !closed
	}
	if energize {
		return hal.High
	}
	return hal.Low
}

// Set closes the load circuit when closed is true and opens it otherwise.
func (obj *Relay) Set(closed bool) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if err := obj.hw.SetValue(obj.pin, obj.coil(closed)); err != nil {
		return fmt.Errorf("failed to switch relay on line %d: %w", obj.pin, err)
	}
	obj.closed = closed
	return nil
}

func (obj *Relay) Open() error {
	return obj.Set(false)
}

func (obj *Relay) Close() error {
	return obj.Set(true)
}

// IsClosed reports the last commanded contact state.
func (obj *Relay) IsClosed() bool {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.closed
}

func (obj *Relay) Pin() int {
	return obj.pin
}

func (obj *Relay) Normal() NormalState {
	return obj.normal
}

// Bank is a set of relay channels addressed by index.
type Bank struct {
	relays []*Relay
}

func NewBank(hw hal.GPIOHandler, normal NormalState, pins ...int) (*Bank, error) {
	b := &Bank{}
	for _, pin := range pins {
		r, err := New(hw, pin, normal)
		if err != nil {
			return nil, err
		}
		b.relays = append(b.relays, r)
	}
	return b, nil
}

func (obj *Bank) Len() int {
	return len(obj.relays)
}

// Channel returns relay i of the bank.
func (obj *Bank) Channel(i int) (*Relay, error) {
	if i < 0 || i >= len(obj.relays) {
		return nil, fmt.Errorf("relay channel %d out of range 0..%d: %w", i, len(obj.relays)-1, hal.ErrInvalidValue)
	}
	return obj.relays[i], nil
}

// OpenAll returns every channel to the open state, attempting all of them.
func (obj *Bank) OpenAll() error {
	var firstErr error
	for _, r := range obj.relays {
		if err := r.Open(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
