// Package board selects a GPIO backend and maps Raspberry Pi pin names to
// line offsets.
package board

import (
	"fmt"
	"strings"

	"github.com/mbalug7/go-gpio-devices/pkg/common"
	"github.com/mbalug7/go-gpio-devices/pkg/gpiomem"
	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"github.com/mbalug7/go-gpio-devices/pkg/periphio"
	"github.com/mbalug7/go-gpio-devices/pkg/sim"
	"github.com/warthog618/gpiod/device/rpi"
)

const (
	BackendGPIOD   = "gpiod"
	BackendPeriph  = "periph"
	BackendGPIOMem = "gpiomem"
	BackendSim     = "sim"
)

const DefaultChip = "gpiochip0"

// Backends lists the accepted Open backends.
var Backends = []string{BackendGPIOD, BackendPeriph, BackendGPIOMem, BackendSim}

// Open returns a handler for backend. chip is only used by the gpiod backend.
func Open(backend string, chip string) (hal.GPIOHandler, error) {
	switch strings.ToLower(backend) {
	case BackendGPIOD, "":
		if chip == "" {
			chip = DefaultChip
		}
		return common.NewHWHandler(chip)
	case BackendPeriph:
		return periphio.NewHandler()
	case BackendGPIOMem:
		return gpiomem.NewHandler()
	case BackendSim:
		return sim.NewHandler(), nil
	}
	return nil, fmt.Errorf("unknown GPIO backend %q, expected one of %s", backend, strings.Join(Backends, ", "))
}

// ParsePin maps a pin name to a BCM line offset. Accepted forms are GPIOx,
// J8pX (physical header position) and a bare line number; names are case
// insensitive.
func ParsePin(name string) (int, error) {
	pin, err := rpi.Pin(name)
	if err != nil {
		return 0, fmt.Errorf("failed to parse pin %q: %w: %w", name, hal.ErrInvalidPin, err)
	}
	return pin, nil
}

// ParsePins parses a comma separated list of pin names.
func ParsePins(list string) ([]int, error) {
	var pins []int
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		pin, err := ParsePin(name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

// HeaderPins are the J8 header positions wired to general purpose lines,
// excluding the ID EEPROM pair (27, 28).
var HeaderPins = []string{
	"J8p3", "J8p5", "J8p7", "J8p8", "J8p10", "J8p11", "J8p12", "J8p13",
	"J8p15", "J8p16", "J8p18", "J8p19", "J8p21", "J8p22", "J8p23", "J8p24",
	"J8p26", "J8p29", "J8p31", "J8p32", "J8p33", "J8p35", "J8p36", "J8p37",
	"J8p38", "J8p40",
}

// HeaderLines returns the line offsets of HeaderPins.
func HeaderLines() ([]int, error) {
	return ParsePins(strings.Join(HeaderPins, ","))
}
