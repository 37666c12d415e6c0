package common

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// OpenSerial opens a UART in 8N1 mode. It is used as a line sink by tools that
// forward readings to an attached logger or radio module.
func OpenSerial(ttyName string, baud int) (*serial.Port, error) {
	if baud <= 0 {
		baud = 9600
	}
	config := &serial.Config{
		Name:        ttyName,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 2 * time.Second,
	}
	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s, err: %w", ttyName, err)
	}
	return port, nil
}
