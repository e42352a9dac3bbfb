package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mklimuk/lux"
	"github.com/mklimuk/lux/snsctx"
)

// BusError wraps a transport failure reported while talking to the sensor.
type BusError struct {
	Op       string
	Register byte
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("veml7700: %s register %#04x: %v", e.Op, e.Register, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// CountOrder selects how the two bytes of a data register are combined into a count.
type CountOrder uint8

const (
	// CountLittleEndian combines the bytes as LSB first, which is the order the
	// device sends them in.
	CountLittleEndian CountOrder = iota
	// CountBitwiseOR ORs both bytes without shifting the second one, so counts
	// above 255 lose their high byte weight. Kept for parity with readings
	// recorded by older firmware.
	CountBitwiseOR
)

func (o CountOrder) combine(buf []byte) uint16 {
	if o == CountBitwiseOR {
		return uint16(buf[0]) | uint16(buf[1])
	}
	return binary.LittleEndian.Uint16(buf)
}

func (o CountOrder) String() string {
	if o == CountBitwiseOR {
		return "or"
	}
	return "le"
}

// ParseCountOrder accepts "le" (default) and "or".
func ParseCountOrder(s string) (CountOrder, error) {
	switch strings.TrimSpace(s) {
	case "", "le":
		return CountLittleEndian, nil
	case "or":
		return CountBitwiseOR, nil
	}
	return 0, fmt.Errorf("%w: unknown count order %q", ErrConfiguration, s)
}

// PowerState reflects the shutdown bit of the last written configuration.
type PowerState int

const (
	StatePoweredDown PowerState = iota
	StateActive
)

func (s PowerState) String() string {
	if s == StateActive {
		return "active"
	}
	return "powered down"
}

type VEML7700Config struct {
	Gain            Gain
	IntegrationTime IntegrationTime
	CountOrder      CountOrder
}

type VEML7700Option func(*VEML7700Config)

func WithGain(gain Gain) VEML7700Option {
	return func(c *VEML7700Config) {
		c.Gain = gain
	}
}

func WithIntegrationTime(it IntegrationTime) VEML7700Option {
	return func(c *VEML7700Config) {
		c.IntegrationTime = it
	}
}

func WithCountOrder(order CountOrder) VEML7700Option {
	return func(c *VEML7700Config) {
		c.CountOrder = order
	}
}

// VEML7700 represents Vishay VEML7700 high accuracy ambient light sensor.
// See: https://www.vishay.com/docs/84286/veml7700.pdf
//
// The sensor is written powered down on construction; call Enable and wait for
// one integration period before the first GetLux.
//
//	s, err := NewVEML7700(ctx, bus)
//	err = s.Enable(ctx)
//	lux, err := s.GetLux(ctx)
//
// Gain and integration time are fixed for the lifetime of the value.
type VEML7700 struct {
	transport lux.RegisterBus
	gain      Gain
	intTime   IntegrationTime
	order     CountOrder
	conf      Config
	buf       []byte
}

// NewVEML7700 writes the initial configuration (shutdown, gain 1/8, 100ms unless
// overridden) and returns the device only if that write succeeded.
func NewVEML7700(ctx context.Context, trans lux.RegisterBus, opts ...VEML7700Option) (*VEML7700, error) {
	config := &VEML7700Config{
		Gain:            GainOneEighth,
		IntegrationTime: IntegrationTime100ms,
		CountOrder:      CountLittleEndian,
	}
	for _, opt := range opts {
		opt(config)
	}
	if !config.Gain.valid() {
		return nil, fmt.Errorf("%w: gain %s", ErrConfiguration, config.Gain)
	}
	if !config.IntegrationTime.valid() {
		return nil, fmt.Errorf("%w: integration time %s", ErrConfiguration, config.IntegrationTime)
	}
	sensor := &VEML7700{
		transport: trans,
		gain:      config.Gain,
		intTime:   config.IntegrationTime,
		order:     config.CountOrder,
		buf:       make([]byte, 2),
	}
	err := sensor.setConfig(ctx, NewConfig(config.Gain, config.IntegrationTime, true))
	if err != nil {
		return nil, err
	}
	return sensor, nil
}

// Enable clears the shutdown bit. Calling it on an active sensor repeats the write.
func (s *VEML7700) Enable(ctx context.Context) error {
	return s.setConfig(ctx, s.conf.WithShutdown(false))
}

// Disable sets the shutdown bit.
func (s *VEML7700) Disable(ctx context.Context) error {
	return s.setConfig(ctx, s.conf.WithShutdown(true))
}

// Resolution returns lux per count for the configured gain and integration time.
func (s *VEML7700) Resolution() float64 {
	return Resolution(s.gain, s.intTime)
}

func Resolution(gain Gain, it IntegrationTime) float64 {
	return 0.0036 * gain.Factor() * it.Factor()
}

// ReadVEML7700Config reads ALS_CONF back from the device without changing it.
func ReadVEML7700Config(ctx context.Context, trans lux.RegisterBus) (Config, error) {
	buf := make([]byte, 2)
	err := trans.WriteReadAddr(ctx, VEML7700Address, []byte{veml7700RegALSConf}, buf)
	if err != nil {
		return 0, &BusError{Op: "read", Register: veml7700RegALSConf, Err: err}
	}
	return Config(binary.LittleEndian.Uint16(buf)), nil
}

// GetLux reads the ambient light channel and converts it to lux. Saturated
// readings (0xFFFF) are converted like any other count.
func (s *VEML7700) GetLux(ctx context.Context) (float64, error) {
	resolution := s.Resolution()
	raw, err := s.ReadRaw(ctx)
	if err != nil {
		return 0, err
	}
	return resolution * float64(raw) * 1000.0, nil
}

// ReadRaw returns the unconverted ambient light count.
func (s *VEML7700) ReadRaw(ctx context.Context) (uint16, error) {
	return s.read(ctx, veml7700RegALS)
}

func (s *VEML7700) Config() Config {
	return s.conf
}

func (s *VEML7700) Gain() Gain {
	return s.gain
}

func (s *VEML7700) IntegrationTime() IntegrationTime {
	return s.intTime
}

func (s *VEML7700) State() PowerState {
	if s.conf.Shutdown() {
		return StatePoweredDown
	}
	return StateActive
}

func (s *VEML7700) setConfig(ctx context.Context, conf Config) error {
	err := s.write(ctx, veml7700RegALSConf, uint16(conf))
	if err != nil {
		return err
	}
	s.conf = conf
	snsctx.Logger(ctx).Debug("veml7700 configuration written", "conf", conf, "state", s.State())
	return nil
}

func (s *VEML7700) write(ctx context.Context, register byte, value uint16) error {
	err := s.transport.WriteToAddr(ctx, VEML7700Address, []byte{register, byte(value), byte(value >> 8)})
	if err != nil {
		return &BusError{Op: "write", Register: register, Err: err}
	}
	return nil
}

func (s *VEML7700) read(ctx context.Context, register byte) (uint16, error) {
	err := s.transport.WriteReadAddr(ctx, VEML7700Address, []byte{register}, s.buf)
	if err != nil {
		return 0, &BusError{Op: "read", Register: register, Err: err}
	}
	return s.order.combine(s.buf), nil
}
