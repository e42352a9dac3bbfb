package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/lux"
	"github.com/mklimuk/lux/adapter"
	"github.com/mklimuk/lux/cmd/lux/console"
	"github.com/mklimuk/lux/environment"
	"github.com/mklimuk/lux/i2c"
	"github.com/mklimuk/lux/pkg/config"
)

func busFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, generic, nanopi",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "host i2c bus (generic) or bus number (nanopi)",
		},
		&cli.IntFlag{
			Name:  "speed",
			Usage: "i2c clock in Hz",
		},
		&cli.StringFlag{
			Name:  "gain",
			Usage: "sensor gain: 1/8, 1/4, 1, 2",
		},
		&cli.StringFlag{
			Name:  "integration-time",
			Usage: "sensor integration time: 25ms, 50ms, 100ms, 200ms, 400ms, 800ms",
		},
		&cli.StringFlag{
			Name:  "count-order",
			Usage: "raw count byte combination: le or or",
		},
	}
}

// settings loads the configuration file and applies explicitly set flags on top of it.
func settings(c *cli.Context) (config.Config, error) {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return conf, err
	}
	if c.IsSet("adapter") {
		conf.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		conf.Device = c.String("device")
	}
	if c.IsSet("speed") {
		conf.Speed = c.Int("speed")
	}
	if c.IsSet("gain") {
		conf.Gain = c.String("gain")
	}
	if c.IsSet("integration-time") {
		conf.IntegrationTime = c.String("integration-time")
	}
	if c.IsSet("count-order") {
		conf.CountOrder = c.String("count-order")
	}
	if c.IsSet("interval") {
		conf.Interval = c.Duration("interval")
	}
	if c.IsSet("led-pin") {
		conf.LEDPin = c.Int("led-pin")
	}
	return conf, conf.Validate()
}

func sensorOptions(conf config.Config) ([]environment.VEML7700Option, error) {
	gain, err := environment.ParseGain(conf.Gain)
	if err != nil {
		return nil, err
	}
	it, err := environment.ParseIntegrationTime(conf.IntegrationTime)
	if err != nil {
		return nil, err
	}
	order, err := environment.ParseCountOrder(conf.CountOrder)
	if err != nil {
		return nil, err
	}
	return []environment.VEML7700Option{
		environment.WithGain(gain),
		environment.WithIntegrationTime(it),
		environment.WithCountOrder(order),
	}, nil
}

type session struct {
	bus   lux.I2CBus
	mcp   *adapter.MCP2221
	close func()
}

func openSession(conf config.Config) (*session, error) {
	switch conf.Adapter {
	case "mcp2221":
		a := adapter.NewMCP2221(adapter.WithBusSpeed(conf.Speed))
		if err := a.Init(); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return &session{bus: a, mcp: a, close: func() {}}, nil
	case "generic":
		bus, err := i2c.NewGenericBus(conf.Device)
		if err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err := bus.SetSpeed(physic.Frequency(conf.Speed) * physic.Hertz); err != nil {
			_ = bus.Close()
			return nil, err
		}
		return &session{bus: bus, close: func() {
			if err := bus.Close(); err != nil {
				console.Errorf("error closing bus: %s", console.Red(err))
			}
		}}, nil
	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		busNr, err := strconv.Atoi(conf.Device)
		if err != nil {
			busNr = -1
		}
		bus := i2c.NewGobotBus(npi, busNr)
		return &session{bus: bus, close: func() {
			if err := bus.Close(); err != nil {
				console.Errorf("error closing bus: %s", console.Red(err))
			}
			if err := npi.I2cBusAdaptor.Finalize(); err != nil {
				console.Errorf("error finalizing adaptor: %s", console.Red(err))
			}
		}}, nil
	}
	return nil, fmt.Errorf("unknown adapter %q", conf.Adapter)
}

// openSensor opens the bus and constructs the sensor; the returned session must be closed.
func openSensor(ctx context.Context, conf config.Config) (*environment.VEML7700, *session, error) {
	opts, err := sensorOptions(conf)
	if err != nil {
		return nil, nil, err
	}
	sess, err := openSession(conf)
	if err != nil {
		return nil, nil, err
	}
	s, err := environment.NewVEML7700(ctx, sess.bus, opts...)
	if err != nil {
		sess.close()
		return nil, nil, fmt.Errorf("sensor initialization error: %w", err)
	}
	return s, sess, nil
}
