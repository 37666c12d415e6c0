package hal

import "errors"

var (
	// ErrInvalidPin is returned when a pin is unknown, unclaimed or not usable
	// for the requested direction.
	ErrInvalidPin = errors.New("invalid pin")
	// ErrInvalidValue is returned for values that do not fit the target
	// (levels other than 0/1, register values out of range, bad channels).
	ErrInvalidValue = errors.New("invalid value")
	// ErrHardwareWrite wraps failures reported by the platform when a line is
	// driven. It is always fatal for the operation in progress.
	ErrHardwareWrite = errors.New("hardware write failed")
)
