package periphio

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenI2C opens an I2C bus by name ("1", "/dev/i2c-1", "I2C1"). An empty name
// opens the first bus found.
func OpenI2C(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}
	return bus, nil
}
