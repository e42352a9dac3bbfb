package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/lux/cmd/lux/console"
	"github.com/mklimuk/lux/environment"
	"github.com/mklimuk/lux/snsctx"
)

// power-on settle time before the first integration starts
const wakeDelay = 4 * time.Millisecond

func commandContext(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}

func picto(lux float64) string {
	switch {
	case lux < 10:
		return console.PictoMoon
	case lux > 1000:
		return console.PictoSun
	default:
		return console.PictoBulb
	}
}

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "power the sensor on and print a single lux reading",
	Flags:   busFlags(),
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		conf, err := settings(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		s, sess, err := openSensor(ctx, conf)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer sess.close()
		if err := s.Enable(ctx); err != nil {
			return console.Exit(1, "error enabling sensor: %s", console.Red(err))
		}
		if err := sleep(ctx, wakeDelay+s.IntegrationTime().Duration()); err != nil {
			return console.Exit(1, "interrupted: %s", err)
		}
		lux, err := s.GetLux(ctx)
		if err != nil {
			return console.Exit(1, "error getting light sensor read: %s", console.Red(err))
		}
		console.PInfof(picto(lux), "%s lux", console.White(lux))
		return nil
	},
}

var enableCmd = cli.Command{
	Name:  "enable",
	Usage: "power the sensor on",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		return setPower(c, true)
	},
}

var disableCmd = cli.Command{
	Name:  "disable",
	Usage: "power the sensor off",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		return setPower(c, false)
	},
}

func setPower(c *cli.Context, on bool) error {
	ctx := commandContext(c)
	conf, err := settings(c)
	if err != nil {
		return console.Exit(1, "configuration error: %s", console.Red(err))
	}
	s, sess, err := openSensor(ctx, conf)
	if err != nil {
		return console.Exit(1, "%s", console.Red(err))
	}
	defer sess.close()
	if on {
		err = s.Enable(ctx)
	} else {
		err = s.Disable(ctx)
	}
	if err != nil {
		return console.Exit(1, "error switching sensor power: %s", console.Red(err))
	}
	console.Infof("sensor %s (config %s)", console.Green(s.State()), s.Config())
	return nil
}

type sensorStatus struct {
	Config           string  `yaml:"config"`
	State            string  `yaml:"state"`
	Gain             string  `yaml:"gain"`
	IntegrationTime  string  `yaml:"integration_time"`
	InterruptEnabled bool    `yaml:"interrupt_enabled"`
	Resolution       float64 `yaml:"resolution_lux_per_count"`
}

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "read the configuration register back and print it decoded",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		conf, err := settings(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		sess, err := openSession(conf)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer sess.close()
		word, err := environment.ReadVEML7700Config(ctx, sess.bus)
		if err != nil {
			return console.Exit(1, "error reading configuration: %s", console.Red(err))
		}
		it, err := word.IntegrationTime()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		state := environment.StateActive
		if word.Shutdown() {
			state = environment.StatePoweredDown
		}
		status := sensorStatus{
			Config:           word.String(),
			State:            state.String(),
			Gain:             word.Gain().String(),
			IntegrationTime:  it.String(),
			InterruptEnabled: word.InterruptEnabled(),
			Resolution:       environment.Resolution(word.Gain(), it),
		}
		enc := yaml.NewEncoder(console.Writer())
		defer enc.Close()
		if err := enc.Encode(status); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "power the sensor on and print a reading every interval until interrupted",
	Flags: append(busFlags(),
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "time between readings",
		},
		&cli.IntFlag{
			Name:  "led-pin",
			Usage: "MCP2221 GP pin driving the status LED, -1 disables it",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "use a simulated sensor instead of the bus",
		},
	),
	Action: func(c *cli.Context) error {
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()
		conf, err := settings(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		report := func(lux float64) {
			console.PInfof(picto(lux), "%s lux: %s", time.Now().Format(time.TimeOnly), console.White(lux))
		}
		if c.Bool("dry-run") {
			return watch(ctx, environment.NewStaticLightSensor(0), noLED{}, conf.Interval, report)
		}

		s, sess, err := openSensor(ctx, conf)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer sess.close()
		var led indicator = noLED{}
		if conf.LEDPin >= 0 {
			if sess.mcp == nil {
				console.Warnf("status led is only supported on the mcp2221 adapter")
			} else {
				l, err := newGPIOLED(ctx, sess.mcp, conf.LEDPin)
				if err != nil {
					return console.Exit(1, "error configuring status led: %s", console.Red(err))
				}
				led = l
			}
		}
		if err := s.Enable(ctx); err != nil {
			return console.Exit(1, "error enabling sensor: %s", console.Red(err))
		}
		if err := sleep(ctx, wakeDelay+s.IntegrationTime().Duration()); err != nil {
			return nil
		}
		console.PInfof(console.PictoPin, "gain %s, integration time %s, %.4f lux/count",
			s.Gain(), s.IntegrationTime(), s.Resolution()*1000)
		err = watch(ctx, s, led, conf.Interval, report)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return nil
	},
}
