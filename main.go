package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mbalug7/go-gpio-devices/pkg/board"
	"github.com/mbalug7/go-gpio-devices/pkg/shiftreg"
	"github.com/mbalug7/go-gpio-devices/pkg/sim"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] VALUE\n", os.Args[0])
	fmt.Fprintf(flag.CommandLine.Output(), "  VALUE is 0..255 in Go literal syntax (178, 0xb2, 0b10110010)\n")
	flag.PrintDefaults()
}

func main() {
	backend := flag.String("backend", board.BackendGPIOD, "GPIO backend: gpiod, periph, gpiomem or sim")
	chip := flag.String("chip", board.DefaultChip, "GPIO chip name (gpiod backend)")
	dataPin := flag.String("data", "GPIO16", "serial data (DS) pin")
	clockPin := flag.String("clock", "GPIO21", "shift clock (SHCP) pin")
	latchPin := flag.String("latch", "GPIO20", "storage clock (STCP) pin")
	bits := flag.String("bits", "", "8 character 0/1 string, character n drives output Qn; replaces VALUE")
	verbose := flag.Bool("v", false, "log every line toggle (sim backend)")
	flag.Usage = usage
	flag.Parse()

	if err := run(*backend, *chip, *dataPin, *clockPin, *latchPin, *bits, *verbose, flag.Args()); err != nil {
		log.Printf("shift register write failed: %s", err)
		os.Exit(1)
	}
}

func parseInput(bits string, args []string) (int, error) {
	if bits != "" {
		if len(args) != 0 {
			return 0, fmt.Errorf("VALUE and -bits are mutually exclusive")
		}
		return shiftreg.ParseBits(bits)
	}
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one VALUE, got %d arguments", len(args))
	}
	return shiftreg.ParseValue(args[0])
}

func parsePins(data, clock, latch string) (shiftreg.PinAssignment, error) {
	var pins shiftreg.PinAssignment
	var err error
	if pins.Data, err = board.ParsePin(data); err != nil {
		return pins, err
	}
	if pins.Clock, err = board.ParsePin(clock); err != nil {
		return pins, err
	}
	if pins.Latch, err = board.ParsePin(latch); err != nil {
		return pins, err
	}
	return pins, pins.Validate()
}

// run keeps the hardware handler's deferred Close ahead of the process exit,
// so claimed lines are released on failure too.
func run(backend, chip, data, clock, latch, bits string, verbose bool, args []string) error {
	value, err := parseInput(bits, args)
	if err != nil {
		return err
	}
	pins, err := parsePins(data, clock, latch)
	if err != nil {
		return err
	}

	hw, err := board.Open(backend, chip)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := hw.Close(); cerr != nil {
			log.Printf("failed to release GPIO lines: %s", cerr)
		}
	}()

	var model *sim.ShiftRegister
	if s, ok := hw.(*sim.Handler); ok {
		s.SetVerbosity(verbose)
		model = sim.NewShiftRegister(pins.Data, pins.Clock, pins.Latch)
		s.Attach(model)
	}

	w, err := shiftreg.NewWriter(hw, pins)
	if err != nil {
		return err
	}
	if err := w.Setup(); err != nil {
		return err
	}
	if err := w.Write(value); err != nil {
		return err
	}

	if model != nil {
		log.Printf("sim outputs Q7..Q0: %08b", model.Output())
	}
	log.Printf("wrote %#02x (%08b) to shift register on data %d, clock %d, latch %d", value, value, pins.Data, pins.Clock, pins.Latch)
	return nil
}
