package sim

import (
	"errors"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

var (
	// ErrOverlap is returned when a new transmission window is opened while
	// another one is still in flight on the same pins.
	ErrOverlap = errors.New("overlapping shift register transmission")
	// ErrTornWrite is returned when the latch is raised before a full frame
	// has been shifted in.
	ErrTornWrite = errors.New("latch raised before all bits were shifted")
)

// ShiftRegister models one or more daisy chained 74HC595 devices. Bits are
// shifted on the rising clock edge and copied to the outputs on the rising
// latch edge.
type ShiftRegister struct {
	mu      sync.Mutex
	data    int
	clock   int
	latch   int
	depth   int
	levels  map[int]int
	shift   uint64
	storage uint64
	open    bool // latch held low, transmission in flight
	shifted int  // rising clock edges since the window opened
	history []uint64
	torn    int
}

func NewShiftRegister(data int, clock int, latch int) *ShiftRegister {
	return NewShiftRegisterChain(data, clock, latch, 1)
}

// NewShiftRegisterChain models depth registers, Q7' of each one feeding the
// serial input of the next. depth is clamped to 1..8.
func NewShiftRegisterChain(data int, clock int, latch int, depth int) *ShiftRegister {
	if depth < 1 {
		depth = 1
	}
	if depth > 8 {
		depth = 8
	}
	return &ShiftRegister{
		data:   data,
		clock:  clock,
		latch:  latch,
		depth:  depth,
		levels: map[int]int{data: hal.Low, clock: hal.Low, latch: hal.Low},
	}
}

func (obj *ShiftRegister) mask() uint64 {
	if obj.depth == 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(8*obj.depth) - 1
}

func (obj *ShiftRegister) OnWrite(pin int, value int) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()

	prev, ok := obj.levels[pin]
	if !ok {
		return nil
	}
	rising := prev == hal.Low && value == hal.High

	switch pin {
	case obj.latch:
		if value == hal.Low {
			if obj.open {
				return ErrOverlap
			}
			obj.open = true
			obj.shifted = 0
		} else if obj.open {
			if obj.shifted < 8*obj.depth {
				obj.torn++
				return ErrTornWrite
			}
			obj.open = false
		}
		if rising {
			obj.storage = obj.shift
			obj.history = append(obj.history, obj.storage)
		}
	case obj.clock:
		if rising {
			obj.shift = (obj.shift<<1 | uint64(obj.levels[obj.data])) & obj.mask()
			if obj.open {
				obj.shifted++
			}
		}
	}
	obj.levels[pin] = value
	return nil
}

// Abort drops the frame in flight when a write to one of the register's lines
// failed. The next latch low edge starts a new frame; outputs keep their
// latched value.
func (obj *ShiftRegister) Abort(pin int) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if _, ok := obj.levels[pin]; ok {
		obj.open = false
		obj.shifted = 0
	}
}

// Reset closes any open frame, as after a power cycle of the control lines.
// Latched outputs are kept.
func (obj *ShiftRegister) Reset() {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.open = false
	obj.shifted = 0
}

// Output returns the parallel outputs of the first register in the chain,
// Q7 as the most significant bit.
func (obj *ShiftRegister) Output() uint8 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return uint8(obj.storage)
}

// Outputs returns the outputs of every register, index 0 being the register
// wired to the data line.
func (obj *ShiftRegister) Outputs() []uint8 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	out := make([]uint8, obj.depth)
	for i := range out {
		out[i] = uint8(obj.storage >> (8 * i))
	}
	return out
}

// Bit returns the level of output Qn of the first register.
func (obj *ShiftRegister) Bit(n int) int {
	return int(obj.Output()>>n) & 1
}

// History returns the first register's output after every latch.
func (obj *ShiftRegister) History() []uint8 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	h := make([]uint8, len(obj.history))
	for i, v := range obj.history {
		h[i] = uint8(v)
	}
	return h
}

// Torn returns the number of rejected, partially shifted frames.
func (obj *ShiftRegister) Torn() int {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.torn
}
