package environment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfiguration is returned when a gain or integration time outside of the
// supported set is requested.
var ErrConfiguration = errors.New("veml7700: invalid configuration")

const VEML7700Address = 0x10

// VEML7700 command codes
const (
	veml7700RegALSConf     byte = 0x00
	veml7700RegALSWH       byte = 0x01
	veml7700RegALSWL       byte = 0x02
	veml7700RegPowerSaving byte = 0x03
	veml7700RegALS         byte = 0x04
	veml7700RegWhite       byte = 0x05
	veml7700RegALSInt      byte = 0x06
)

// ALS_CONF bit layout
const (
	confShutdown     uint16 = 1 << 0 // 1 = powered down
	confIntEnable    uint16 = 1 << 1
	confIntTimeShift        = 6
	confIntTimeMask  uint16 = 0b1111 << confIntTimeShift
	confGainShift           = 11
	confGainMask     uint16 = 0b11 << confGainShift
	confIntThHigh    uint16 = 1 << 14
	confIntThLow     uint16 = 1 << 15

	powerSavingEnable uint16 = 1 << 0
)

// Gain is the photodiode sensitivity setting.
type Gain uint8

const (
	GainOneEighth Gain = iota
	GainOneQuarter
	GainOne
	GainTwo
)

func (g Gain) valid() bool {
	return g <= GainTwo
}

func (g Gain) code() uint16 {
	switch g {
	case GainOneEighth:
		return 0b10
	case GainOneQuarter:
		return 0b11
	case GainTwo:
		return 0b01
	default:
		return 0b00
	}
}

// Factor is the inverse of the relative sensitivity, used in the lux formula.
func (g Gain) Factor() float64 {
	switch g {
	case GainOneEighth:
		return 16.0
	case GainOneQuarter:
		return 8.0
	case GainTwo:
		return 1.0
	default:
		return 2.0
	}
}

func (g Gain) String() string {
	switch g {
	case GainOneEighth:
		return "1/8"
	case GainOneQuarter:
		return "1/4"
	case GainOne:
		return "1"
	case GainTwo:
		return "2"
	default:
		return fmt.Sprintf("Gain(%d)", uint8(g))
	}
}

func gainFromCode(code uint16) Gain {
	switch code {
	case 0b10:
		return GainOneEighth
	case 0b11:
		return GainOneQuarter
	case 0b01:
		return GainTwo
	default:
		return GainOne
	}
}

// ParseGain accepts the notation used by String ("1/8", "1/4", "1", "2").
func ParseGain(s string) (Gain, error) {
	switch strings.TrimSpace(s) {
	case "1/8":
		return GainOneEighth, nil
	case "1/4":
		return GainOneQuarter, nil
	case "1":
		return GainOne, nil
	case "2":
		return GainTwo, nil
	}
	return 0, fmt.Errorf("%w: unknown gain %q", ErrConfiguration, s)
}

// IntegrationTime is the duration the sensor accumulates light for a single count.
type IntegrationTime uint8

const (
	IntegrationTime25ms IntegrationTime = iota
	IntegrationTime50ms
	IntegrationTime100ms
	IntegrationTime200ms
	IntegrationTime400ms
	IntegrationTime800ms
)

var integrationTimes = [...]struct {
	code   uint16
	factor float64
	dur    time.Duration
}{
	IntegrationTime25ms:  {0b1100, 0.1152, 25 * time.Millisecond},
	IntegrationTime50ms:  {0b1000, 0.0576, 50 * time.Millisecond},
	IntegrationTime100ms: {0b0000, 0.0288, 100 * time.Millisecond},
	IntegrationTime200ms: {0b0001, 0.0144, 200 * time.Millisecond},
	IntegrationTime400ms: {0b0010, 0.0072, 400 * time.Millisecond},
	IntegrationTime800ms: {0b0011, 0.0036, 800 * time.Millisecond},
}

func (it IntegrationTime) valid() bool {
	return int(it) < len(integrationTimes)
}

func (it IntegrationTime) code() uint16 {
	if !it.valid() {
		return integrationTimes[IntegrationTime100ms].code
	}
	return integrationTimes[it].code
}

// Factor is the resolution in lux per count contributed by the integration time.
func (it IntegrationTime) Factor() float64 {
	if !it.valid() {
		return integrationTimes[IntegrationTime100ms].factor
	}
	return integrationTimes[it].factor
}

func (it IntegrationTime) Duration() time.Duration {
	if !it.valid() {
		return 0
	}
	return integrationTimes[it].dur
}

func (it IntegrationTime) String() string {
	if !it.valid() {
		return fmt.Sprintf("IntegrationTime(%d)", uint8(it))
	}
	return integrationTimes[it].dur.String()
}

func integrationTimeFromCode(code uint16) (IntegrationTime, bool) {
	for it, v := range integrationTimes {
		if v.code == code {
			return IntegrationTime(it), true
		}
	}
	return 0, false
}

// ParseIntegrationTime accepts durations such as "100ms".
func ParseIntegrationTime(s string) (IntegrationTime, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	for it, v := range integrationTimes {
		if v.dur == d {
			return IntegrationTime(it), nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported integration time %s", ErrConfiguration, d)
}

// Config is the 16-bit ALS_CONF register value.
type Config uint16

func NewConfig(gain Gain, it IntegrationTime, shutdown bool) Config {
	conf := gain.code()<<confGainShift | it.code()<<confIntTimeShift
	if shutdown {
		conf |= confShutdown
	}
	return Config(conf)
}

func (c Config) Shutdown() bool {
	return uint16(c)&confShutdown != 0
}

func (c Config) InterruptEnabled() bool {
	return uint16(c)&confIntEnable != 0
}

func (c Config) WithShutdown(shutdown bool) Config {
	if shutdown {
		return c | Config(confShutdown)
	}
	return c &^ Config(confShutdown)
}

func (c Config) Gain() Gain {
	return gainFromCode((uint16(c) & confGainMask) >> confGainShift)
}

// IntegrationTime decodes the integration time field. Codes the device
// documents as reserved are reported as a configuration error.
func (c Config) IntegrationTime() (IntegrationTime, error) {
	code := (uint16(c) & confIntTimeMask) >> confIntTimeShift
	it, ok := integrationTimeFromCode(code)
	if !ok {
		return 0, fmt.Errorf("%w: reserved integration time code %#04b", ErrConfiguration, code)
	}
	return it, nil
}

func (c Config) String() string {
	return fmt.Sprintf("%#04x", uint16(c))
}
