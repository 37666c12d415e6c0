// Package ads1x15 drives the TI ADS1015 (12 bit) and ADS1115 (16 bit) I2C
// analog to digital converters.
package ads1x15

import (
	"fmt"
	"sync"
	"time"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the address with the ADDR pin tied to ground.
const DefaultAddress uint16 = 0x48

// Variant describes the differences between the family members.
type Variant struct {
	Name        string
	BitShift    uint     // results are left aligned in the 16 bit register
	DefaultRate DataRate // power on data rate
}

var (
	ADS1015 = Variant{Name: "ADS1015", BitShift: 4, DefaultRate: RATE_ADS1015_1600SPS}
	ADS1115 = Variant{Name: "ADS1115", BitShift: 0, DefaultRate: RATE_ADS1115_128SPS}
)

type Device struct {
	dev      *i2c.Dev
	variant  Variant
	gain     Gain
	dataRate DataRate
	timeout  time.Duration // conversion ready polling limit
	mu       sync.Mutex    // a conversion is a multi transaction sequence
}

// New binds a converter at addr on bus. Gain defaults to +/-6.144V and the
// data rate to the variant's default.
func New(bus i2c.Bus, addr uint16, variant Variant) *Device {
	return &Device{
		dev:      &i2c.Dev{Bus: bus, Addr: addr},
		variant:  variant,
		gain:     GAIN_TWOTHIRDS,
		dataRate: variant.DefaultRate,
		timeout:  500 * time.Millisecond,
	}
}

func (obj *Device) Variant() Variant {
	return obj.variant
}

func (obj *Device) SetGain(gain Gain) {
	obj.mu.Lock()
	obj.gain = gain
	obj.mu.Unlock()
}

func (obj *Device) Gain() Gain {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.gain
}

func (obj *Device) SetDataRate(rate DataRate) {
	obj.mu.Lock()
	obj.dataRate = rate
	obj.mu.Unlock()
}

func (obj *Device) DataRate() DataRate {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.dataRate
}

// SetTimeout bounds how long a single shot conversion is waited for.
func (obj *Device) SetTimeout(timeout time.Duration) {
	obj.mu.Lock()
	obj.timeout = timeout
	obj.mu.Unlock()
}

func (obj *Device) writeRegister(reg hal.Register) error {
	v := reg.GetValue()
	err := obj.dev.Tx([]byte{reg.GetAddress().ToByte(), byte(v >> 8), byte(v)}, nil)
	if err != nil {
		return fmt.Errorf("failed to write register %d: %w", reg.GetAddress(), err)
	}
	return nil
}

func (obj *Device) readRegister(addr hal.RegAddress) (uint16, error) {
	buf := make([]byte, 2)
	if err := obj.dev.Tx([]byte{addr.ToByte()}, buf); err != nil {
		return 0, fmt.Errorf("failed to read register %d: %w", addr, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (obj *Device) singleShotConfig(m mux) *Config {
	return &Config{
		startConversion: true,
		mux:             m,
		gain:            obj.gain,
		mode:            MODE_SINGLE,
		dataRate:        obj.dataRate,
		compMode:        CMODE_TRADITIONAL,
		compPolarity:    CPOL_ACTIVE_LOW,
		compLatch:       CLAT_NONLATCHING,
		compQueue:       CQUE_NONE,
	}
}

func (obj *Device) waitConversion() error {
	deadline := time.Now().Add(obj.timeout)
	cfg := &Config{}
	for {
		v, err := obj.readRegister(REG_CONFIG)
		if err != nil {
			return err
		}
		cfg.SetValue(v)
		// OS bit reads 1 when the device is not converting
		if cfg.startConversion {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("conversion not ready after %s", obj.timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func (obj *Device) convert(m mux) (int16, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if err := obj.writeRegister(obj.singleShotConfig(m)); err != nil {
		return 0, fmt.Errorf("failed to start %s conversion: %w", obj.variant.Name, err)
	}
	if err := obj.waitConversion(); err != nil {
		return 0, fmt.Errorf("failed to wait for %s conversion: %w", obj.variant.Name, err)
	}
	return obj.lastConversion()
}

// ReadSingle returns a single ended conversion of AIN0..AIN3.
func (obj *Device) ReadSingle(channel int) (int16, error) {
	if channel < 0 || channel >= len(singleEndedMux) {
		return 0, fmt.Errorf("channel %d out of range 0..3: %w", channel, hal.ErrInvalidValue)
	}
	return obj.convert(singleEndedMux[channel])
}

// ReadDifferential01 measures AIN0 - AIN1.
func (obj *Device) ReadDifferential01() (int16, error) {
	return obj.convert(MUX_DIFF_0_1)
}

// ReadDifferential23 measures AIN2 - AIN3.
func (obj *Device) ReadDifferential23() (int16, error) {
	return obj.convert(MUX_DIFF_2_3)
}

func (obj *Device) lastConversion() (int16, error) {
	v, err := obj.readRegister(REG_CONVERSION)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s conversion: %w", obj.variant.Name, err)
	}
	// arithmetic shift keeps the sign of 12 bit results
	return int16(v) >> obj.variant.BitShift, nil
}

// LastConversion reads the conversion register without starting a new
// conversion. In comparator mode this also clears a latched alert.
func (obj *Device) LastConversion() (int16, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.lastConversion()
}

// ComputeVolts converts raw counts to volts for the current gain.
func (obj *Device) ComputeVolts(counts int16) float64 {
	fs := obj.Gain().FullScale()
	return float64(counts) * fs / float64(int(32768)>>obj.variant.BitShift)
}

// StartComparator starts continuous conversions of channel with the ALERT/RDY
// pin asserting when the result exceeds threshold.
func (obj *Device) StartComparator(channel int, threshold int16) error {
	return NewComparatorBuilder(obj, channel).HighThreshold(threshold).Start()
}
