package hal

import "time"

type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInput
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unknown"
	}
}

type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

// line levels
const (
	Low  = 0
	High = 1
)

// EdgeEvent is delivered to a watcher when a watched line changes level.
type EdgeEvent struct {
	Pin       int
	Edge      Edge          // EdgeRising or EdgeFalling
	Timestamp time.Duration // time since an arbitrary, per-backend epoch
}

type EdgeHandler func(EdgeEvent)

// GPIOHandler is the hardware collaborator every device in this module is
// driven through. Pins are line offsets on a single GPIO chip.
type GPIOHandler interface {
	// Configure claims the line, if not claimed yet, and sets its direction
	// and bias. Outputs start low.
	Configure(pin int, dir Direction, pull Pull) error
	// SetValue drives an output line. Lines that are not outputs fail with ErrInvalidPin.
	SetValue(pin int, value int) error
	// SetValues drives several output lines, in order.
	SetValues(pins []int, values []int) error
	Value(pin int) (int, error)
	Direction(pin int) (Direction, error)
	// Watch claims the line as an input and calls handler on every matching edge.
	Watch(pin int, pull Pull, edge Edge, handler EdgeHandler) error
	// Release returns a single line to a high impedance input and frees it.
	Release(pin int) error
	// Close releases every claimed line.
	Close() error
}

// ValidLevel reports whether value is a digital level.
func ValidLevel(value int) bool {
	return value == Low || value == High
}
