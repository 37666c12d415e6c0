package ads1x15

import (
	"fmt"

	"github.com/mbalug7/go-gpio-devices/pkg/hal"
)

// ComparatorBuilder builds a continuous conversion comparator setup. The
// defaults match the traditional, latching, active low comparator asserting
// after one conversion.
type ComparatorBuilder struct {
	dev     *Device
	channel int
	config  Config
	high    Threshold
	low     Threshold
	lowSet  bool
}

// NewComparatorBuilder constructs ComparatorBuilder for a single ended channel.
func NewComparatorBuilder(dev *Device, channel int) *ComparatorBuilder {
	cb := &ComparatorBuilder{
		dev:     dev,
		channel: channel,
		config: Config{
			gain:         dev.Gain(),
			mode:         MODE_CONTINUOUS,
			dataRate:     dev.DataRate(),
			compMode:     CMODE_TRADITIONAL,
			compPolarity: CPOL_ACTIVE_LOW,
			compLatch:    CLAT_LATCHING,
			compQueue:    CQUE_1CONV,
		},
		high: Threshold{address: REG_HI_THRESH, shift: dev.variant.BitShift},
		low:  Threshold{address: REG_LO_THRESH, shift: dev.variant.BitShift},
	}
	if channel >= 0 && channel < len(singleEndedMux) {
		cb.config.mux = singleEndedMux[channel]
	}
	return cb
}

// HighThreshold sets the upper comparator threshold in device counts
func (obj *ComparatorBuilder) HighThreshold(value int16) *ComparatorBuilder {
	obj.high.value = value
	return obj
}

// LowThreshold sets the lower comparator threshold, used in window mode and
// as the hysteresis point in traditional mode
func (obj *ComparatorBuilder) LowThreshold(value int16) *ComparatorBuilder {
	obj.low.value = value
	obj.lowSet = true
	return obj
}

// Window switches to window comparator mode
func (obj *ComparatorBuilder) Window(window bool) *ComparatorBuilder {
	obj.config.compMode = CMODE_TRADITIONAL
	if window {
		obj.config.compMode = CMODE_WINDOW
	}
	return obj
}

// Latching keeps ALERT/RDY asserted until the conversion register is read
func (obj *ComparatorBuilder) Latching(latching bool) *ComparatorBuilder {
	obj.config.compLatch = CLAT_NONLATCHING
	if latching {
		obj.config.compLatch = CLAT_LATCHING
	}
	return obj
}

func (obj *ComparatorBuilder) ActiveHigh(activeHigh bool) *ComparatorBuilder {
	obj.config.compPolarity = CPOL_ACTIVE_LOW
	if activeHigh {
		obj.config.compPolarity = CPOL_ACTIVE_HIGH
	}
	return obj
}

// Queue sets how many successive conversions must exceed a threshold before
// ALERT/RDY asserts: 1, 2 or 4.
func (obj *ComparatorBuilder) Queue(conversions int) *ComparatorBuilder {
	switch conversions {
	case 2:
		obj.config.compQueue = CQUE_2CONV
	case 4:
		obj.config.compQueue = CQUE_4CONV
	default:
		obj.config.compQueue = CQUE_1CONV
	}
	return obj
}

// Start writes thresholds and then the config register, which starts
// continuous conversions.
func (obj *ComparatorBuilder) Start() error {
	if obj.channel < 0 || obj.channel >= len(singleEndedMux) {
		return fmt.Errorf("channel %d out of range 0..3: %w", obj.channel, hal.ErrInvalidValue)
	}
	obj.dev.mu.Lock()
	defer obj.dev.mu.Unlock()

	if err := obj.dev.writeRegister(&obj.high); err != nil {
		return fmt.Errorf("failed to set comparator high threshold: %w", err)
	}
	if obj.lowSet {
		if err := obj.dev.writeRegister(&obj.low); err != nil {
			return fmt.Errorf("failed to set comparator low threshold: %w", err)
		}
	}
	if err := obj.dev.writeRegister(&obj.config); err != nil {
		return fmt.Errorf("failed to start comparator: %w", err)
	}
	return nil
}
