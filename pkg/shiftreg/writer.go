// Package shiftreg loads values into 74HC595 class serial-in/parallel-out
// shift registers by bit-banging three GPIO output lines.
package shiftreg

import (
	"fmt"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// PinAssignment binds the register's serial data, shift clock and storage
// (latch) clock inputs to GPIO lines.
type PinAssignment struct {
	Data  int
	Clock int
	Latch int
}

// Validate checks that the three lines are valid offsets and pairwise distinct.
func (p PinAssignment) Validate() error {
	for _, pin := range []int{p.Data, p.Clock, p.Latch} {
		if pin < 0 {
			return fmt.Errorf("negative line offset %d: %w", pin, hal.ErrInvalidPin)
		}
	}
	if p.Data == p.Clock || p.Data == p.Latch || p.Clock == p.Latch {
		return fmt.Errorf("data %d, clock %d and latch %d must be distinct lines: %w", p.Data, p.Clock, p.Latch, hal.ErrInvalidPin)
	}
	return nil
}

func (p PinAssignment) pins() []int {
	return []int{p.Data, p.Clock, p.Latch}
}

// State is the phase of the transmission in progress.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLatched
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLatched:
		return "latched"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Writer pushes values into a shift register. Calls are serialized, so one
// Writer must own a given pin set.
type Writer struct {
	hw    hal.GPIOHandler
	pins  PinAssignment
	mu    sync.Mutex // a transmission must not be interleaved with another one
	state State
}

// NewWriter binds a writer to hw and pins. Lines are claimed by Setup.
func NewWriter(hw hal.GPIOHandler, pins PinAssignment) (*Writer, error) {
	if hw == nil {
		return nil, fmt.Errorf("GPIO handler is required")
	}
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shift register pins: %w", err)
	}
	return &Writer{hw: hw, pins: pins}, nil
}

// Setup configures the data, clock and latch lines as outputs driven low.
func (obj *Writer) Setup() error {
	for _, pin := range obj.pins.pins() {
		if err := obj.hw.Configure(pin, hal.DirectionOutput, hal.PullNone); err != nil {
			return fmt.Errorf("failed to configure shift register line %d: %w", pin, err)
		}
	}
	return nil
}

// Pins returns the lines the writer drives.
func (obj *Writer) Pins() PinAssignment {
	return obj.pins
}

// State returns the current transmission phase, StateIdle between writes.
func (obj *Writer) State() State {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.state
}

// Write loads an 8 bit value and latches it to the outputs, bit n of value
// ending up on output Qn. Values outside 0..255 are rejected.
func (obj *Writer) Write(value int) error {
	if value < 0 || value > 0xFF {
		return fmt.Errorf("value %d does not fit in 8 bits: %w", value, hal.ErrInvalidValue)
	}
	return obj.WriteChain(uint8(value))
}

// WriteChain loads one byte per daisy chained register under a single latch.
// values[0] is shifted first and ends up in the register farthest from the
// data line.
func (obj *Writer) WriteChain(values ...uint8) error {
	if len(values) == 0 {
		return fmt.Errorf("nothing to write: %w", hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	defer obj.mu.Unlock()

	for _, pin := range obj.pins.pins() {
		dir, err := obj.hw.Direction(pin)
		if err != nil {
			return fmt.Errorf("shift register line %d is not usable: %w", pin, err)
		}
		if dir != hal.DirectionOutput {
			return fmt.Errorf("shift register line %d is configured as %s: %w", pin, dir, hal.ErrInvalidPin)
		}
	}

	err := obj.transmit(values)
	obj.state = StateIdle
	return err
}

func (obj *Writer) set(pin int, value int) error {
	if err := obj.hw.SetValue(pin, value); err != nil {
		return fmt.Errorf("failed to drive line %d while %s: %w", pin, obj.state, err)
	}
	return nil
}

// pulse drives the clock low, sets line to value and raises the clock again.
func (obj *Writer) pulse(line int, value int) error {
	if err := obj.set(obj.pins.Clock, hal.Low); err != nil {
		return err
	}
	if err := obj.set(line, value); err != nil {
		return err
	}
	return obj.set(obj.pins.Clock, hal.High)
}

func (obj *Writer) transmit(values []uint8) error {
	// put latch down to start data sending
	obj.state = StateLoading
	if err := obj.pulse(obj.pins.Latch, hal.Low); err != nil {
		return err
	}

	for _, v := range values {
		for i := 7; i >= 0; i-- {
			if err := obj.pulse(obj.pins.Data, int(v>>i)&1); err != nil {
				return err
			}
		}
	}

	// put latch up to store data on register
	if err := obj.pulse(obj.pins.Latch, hal.High); err != nil {
		return err
	}
	obj.state = StateLatched
	return nil
}
