package ads1x15

import "github.com/mbalug7/go-gpio-devices/pkg/hal"

const (
	REG_CONVERSION hal.RegAddress = iota
	REG_CONFIG
	REG_LO_THRESH
	REG_HI_THRESH
)

// CONFIG register layout

type mux uint16

const (
	MUX_DIFF_0_1 mux = 0x0000
	MUX_DIFF_0_3 mux = 0x1000
	MUX_DIFF_1_3 mux = 0x2000
	MUX_DIFF_2_3 mux = 0x3000
	MUX_SINGLE_0 mux = 0x4000
	MUX_SINGLE_1 mux = 0x5000
	MUX_SINGLE_2 mux = 0x6000
	MUX_SINGLE_3 mux = 0x7000
)

var singleEndedMux = [4]mux{MUX_SINGLE_0, MUX_SINGLE_1, MUX_SINGLE_2, MUX_SINGLE_3}

// Gain selects the programmable gain amplifier full scale range.
type Gain uint16

const (
	GAIN_TWOTHIRDS Gain = 0x0000 // +/-6.144V
	GAIN_ONE       Gain = 0x0200 // +/-4.096V
	GAIN_TWO       Gain = 0x0400 // +/-2.048V
	GAIN_FOUR      Gain = 0x0600 // +/-1.024V
	GAIN_EIGHT     Gain = 0x0800 // +/-0.512V
	GAIN_SIXTEEN   Gain = 0x0A00 // +/-0.256V
)

// FullScale returns the input range in volts.
func (g Gain) FullScale() float64 {
	switch g {
	case GAIN_TWOTHIRDS:
		return 6.144
	case GAIN_ONE:
		return 4.096
	case GAIN_TWO:
		return 2.048
	case GAIN_FOUR:
		return 1.024
	case GAIN_EIGHT:
		return 0.512
	case GAIN_SIXTEEN:
		return 0.256
	}
	return 0
}

type opMode uint16

const (
	MODE_CONTINUOUS opMode = 0x0000
	MODE_SINGLE     opMode = 0x0100
)

// DataRate is the conversion rate field. Its meaning differs between ADS1015
// and ADS1115.
type DataRate uint16

const (
	RATE_ADS1015_128SPS  DataRate = 0x0000
	RATE_ADS1015_250SPS  DataRate = 0x0020
	RATE_ADS1015_490SPS  DataRate = 0x0040
	RATE_ADS1015_920SPS  DataRate = 0x0060
	RATE_ADS1015_1600SPS DataRate = 0x0080
	RATE_ADS1015_2400SPS DataRate = 0x00A0
	RATE_ADS1015_3300SPS DataRate = 0x00C0

	RATE_ADS1115_8SPS   DataRate = 0x0000
	RATE_ADS1115_16SPS  DataRate = 0x0020
	RATE_ADS1115_32SPS  DataRate = 0x0040
	RATE_ADS1115_64SPS  DataRate = 0x0060
	RATE_ADS1115_128SPS DataRate = 0x0080
	RATE_ADS1115_250SPS DataRate = 0x00A0
	RATE_ADS1115_475SPS DataRate = 0x00C0
	RATE_ADS1115_860SPS DataRate = 0x00E0
)

type comparatorMode uint16

const (
	CMODE_TRADITIONAL comparatorMode = 0x0000
	CMODE_WINDOW      comparatorMode = 0x0010
)

type comparatorPolarity uint16

const (
	CPOL_ACTIVE_LOW  comparatorPolarity = 0x0000
	CPOL_ACTIVE_HIGH comparatorPolarity = 0x0008
)

type comparatorLatch uint16

const (
	CLAT_NONLATCHING comparatorLatch = 0x0000
	CLAT_LATCHING    comparatorLatch = 0x0004
)

type comparatorQueue uint16

const (
	CQUE_1CONV comparatorQueue = 0x0000
	CQUE_2CONV comparatorQueue = 0x0001
	CQUE_4CONV comparatorQueue = 0x0002
	CQUE_NONE  comparatorQueue = 0x0003
)

const osSingle = 0x8000

// Config is the CONFIG register.
type Config struct {
	startConversion bool
	mux             mux
	gain            Gain
	mode            opMode
	dataRate        DataRate
	compMode        comparatorMode
	compPolarity    comparatorPolarity
	compLatch       comparatorLatch
	compQueue       comparatorQueue
}

func (obj *Config) GetAddress() hal.RegAddress {
	return REG_CONFIG
}

func (obj *Config) GetValue() uint16 {
	v := uint16(obj.mux) | uint16(obj.gain) | uint16(obj.mode) | uint16(obj.dataRate) |
		uint16(obj.compMode) | uint16(obj.compPolarity) | uint16(obj.compLatch) | uint16(obj.compQueue)
	if obj.startConversion {
		v |= osSingle
	}
	return v
}

func (obj *Config) SetValue(value uint16) {
	obj.startConversion = value&osSingle != 0 // reads back as "not converting"
	obj.mux = mux(value & 0x7000)
	obj.gain = Gain(value & 0x0E00)
	obj.mode = opMode(value & 0x0100)
	obj.dataRate = DataRate(value & 0x00E0)
	obj.compMode = comparatorMode(value & 0x0010)
	obj.compPolarity = comparatorPolarity(value & 0x0008)
	obj.compLatch = comparatorLatch(value & 0x0004)
	obj.compQueue = comparatorQueue(value & 0x0003)
}

// Threshold is one of the comparator threshold registers. Values are stored
// left aligned, so ADS1015 thresholds are shifted by four bits.
type Threshold struct {
	address hal.RegAddress
	value   int16
	shift   uint
}

func (obj *Threshold) GetAddress() hal.RegAddress {
	return obj.address
}

func (obj *Threshold) GetValue() uint16 {
	return uint16(obj.value) << obj.shift
}

func (obj *Threshold) SetValue(value uint16) {
	obj.value = int16(value) >> obj.shift
}
