// Package soil reads capacitive soil moisture probes through an analog to
// digital converter and maps the raw counts to a percentage.
package soil

import (
	"fmt"
	"sync"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// Calibration points measured with the probe in dry air and in water, for a
// 16 bit converter at gain one.
const (
	DefaultDryValue   = 22000
	DefaultWaterValue = 7963
)

// Remap linearly maps value from [oldMin, oldMax] to [newMin, newMax]. When
// oldMin > oldMax the mapping is reversed, so oldMin still maps to newMin.
// Values outside the input range are extrapolated, not clamped.
func Remap(value, oldMin, oldMax, newMin, newMax float64) float64 {
	reverse := false
	if oldMin > oldMax {
		oldMin, oldMax = oldMax, oldMin
		reverse = true
	}
	percent := (value - oldMin) / (oldMax - oldMin)
	newRange := newMax - newMin
	if reverse {
		return (newMax + newMin) - (newMin + percent*newRange)
	}
	return newMin + percent*newRange
}

type Sensor struct {
	adc        hal.AnalogInput
	channel    int
	mu         sync.Mutex
	dryValue   int
	waterValue int
	lastValue  int
}

func NewSensor(adc hal.AnalogInput, channel int) (*Sensor, error) {
	if adc == nil {
		return nil, fmt.Errorf("analog input is required")
	}
	return &Sensor{
		adc:        adc,
		channel:    channel,
		dryValue:   DefaultDryValue,
		waterValue: DefaultWaterValue,
	}, nil
}

// Calibrate sets the raw readings for 0% (dry soil or air) and 100% (water).
func (obj *Sensor) Calibrate(dryValue int, waterValue int) error {
	if dryValue == waterValue {
		return fmt.Errorf("dry and water values must differ: %w", hal.ErrInvalidValue)
	}
	obj.mu.Lock()
	obj.dryValue = dryValue
	obj.waterValue = waterValue
	obj.mu.Unlock()
	return nil
}

func (obj *Sensor) read() error {
	v, err := obj.adc.ReadSingle(obj.channel)
	if err != nil {
		return fmt.Errorf("failed to read soil sensor on channel %d: %w", obj.channel, err)
	}
	obj.lastValue = int(v)
	return nil
}

// Raw returns the sensor value, taking a new reading when forceUpdate is set.
func (obj *Sensor) Raw(forceUpdate bool) (int, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if forceUpdate {
		if err := obj.read(); err != nil {
			return 0, err
		}
	}
	return obj.lastValue, nil
}

// Moisture returns the moisture level in percent, taking a new reading when
// forceUpdate is set.
func (obj *Sensor) Moisture(forceUpdate bool) (float64, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if forceUpdate {
		if err := obj.read(); err != nil {
			return 0, err
		}
	}
	return Remap(float64(obj.lastValue), float64(obj.dryValue), float64(obj.waterValue), 0, 100), nil
}

// Reading is one sample as reported by the polling tool.
type Reading struct {
	Raw     int
	Percent float64
}

// Read takes a new sample and returns both raw and mapped values.
func (obj *Sensor) Read() (Reading, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if err := obj.read(); err != nil {
		return Reading{}, err
	}
	return Reading{
		Raw:     obj.lastValue,
		Percent: Remap(float64(obj.lastValue), float64(obj.dryValue), float64(obj.waterValue), 0, 100),
	}, nil
}

func (r Reading) String() string {
	return fmt.Sprintf("moisture=%.1f %%, sensor value=%d", r.Percent, r.Raw)
}
