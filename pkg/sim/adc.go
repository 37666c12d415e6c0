package sim

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
)

// ADCBus is an I2C bus with a single ADS1x15 converter on it. It implements
// periph's i2c.BusCloser.
type ADCBus struct {
	mu sync.Mutex
	// Addr is the converter's 7 bit address.
	Addr uint16
	// Shift is the left shift applied to results in the conversion register:
	// 0 for ADS1115, 4 for ADS1015.
	Shift uint
	// Channels holds the input of AIN0..AIN3 in device counts.
	Channels [4]int16
	// Busy is the number of config reads that still report a conversion in
	// progress after a conversion is started.
	Busy int

	config    uint16
	busyLeft  int
	conv      uint16
	registers map[byte]uint16
}

func NewADCBus(addr uint16) *ADCBus {
	return &ADCBus{Addr: addr, registers: make(map[byte]uint16)}
}

func (obj *ADCBus) String() string {
	return fmt.Sprintf("sim-i2c(ads1x15@%#x)", obj.Addr)
}

func (obj *ADCBus) SetSpeed(f physic.Frequency) error {
	return nil
}

func (obj *ADCBus) Close() error {
	return nil
}

// SetChannel sets the input of one channel.
func (obj *ADCBus) SetChannel(channel int, counts int16) {
	obj.mu.Lock()
	obj.Channels[channel] = counts
	obj.mu.Unlock()
}

// Register returns the last value written to a register.
func (obj *ADCBus) Register(reg byte) uint16 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if reg == 0x01 {
		return obj.config
	}
	return obj.registers[reg]
}

func (obj *ADCBus) convert(config uint16) uint16 {
	var v int16
	switch (config >> 12) & 0x07 {
	case 0x0:
		v = obj.Channels[0] - obj.Channels[1]
	case 0x3:
		v = obj.Channels[2] - obj.Channels[3]
	case 0x4, 0x5, 0x6, 0x7:
		v = obj.Channels[(config>>12)&0x03]
	default:
		v = 0
	}
	return uint16(v) << obj.Shift
}

func (obj *ADCBus) Tx(addr uint16, w, r []byte) error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if addr != obj.Addr {
		return fmt.Errorf("sim-i2c: no device at address %#x", addr)
	}
	if obj.registers == nil {
		obj.registers = make(map[byte]uint16)
	}
	if len(w) == 0 {
		return fmt.Errorf("sim-i2c: missing register pointer")
	}
	reg := w[0]
	if len(w) == 3 {
		value := uint16(w[1])<<8 | uint16(w[2])
		if reg == 0x01 {
			obj.config = value &^ 0x8000
			if value&0x8000 != 0 || value&0x0100 == 0 {
				obj.conv = obj.convert(value)
				obj.busyLeft = obj.Busy
			}
		} else {
			obj.registers[reg] = value
		}
	} else if len(w) != 1 {
		return fmt.Errorf("sim-i2c: unexpected write of %d bytes", len(w))
	}
	if len(r) == 0 {
		return nil
	}
	if len(r) != 2 {
		return fmt.Errorf("sim-i2c: unexpected read of %d bytes", len(r))
	}
	var value uint16
	switch reg {
	case 0x00:
		value = obj.conv
	case 0x01:
		value = obj.config
		if obj.busyLeft > 0 {
			obj.busyLeft--
		} else {
			value |= 0x8000
		}
	default:
		value = obj.registers[reg]
	}
	r[0] = byte(value >> 8)
	r[1] = byte(value)
	return nil
}
