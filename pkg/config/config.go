// Package config holds the CLI settings file and the build metadata injected
// by the dev tool.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// set with -ldflags at build time
var (
	Version = "latest"
	Commit  = ""
	Date    = ""
)

const DefaultPath = "lux.yaml"

type Config struct {
	Adapter string `yaml:"adapter"`
	// Device is the host bus name (e.g. /dev/i2c-1) for the generic adapter
	// or the bus number for nanopi.
	Device          string        `yaml:"device"`
	Speed           int           `yaml:"speed"`
	Gain            string        `yaml:"gain"`
	IntegrationTime string        `yaml:"integration_time"`
	CountOrder      string        `yaml:"count_order"`
	Interval        time.Duration `yaml:"interval"`
	LEDPin          int           `yaml:"led_pin"`
}

func Default() Config {
	return Config{
		Adapter:         "mcp2221",
		Device:          "/dev/i2c-1",
		Speed:           100_000,
		Gain:            "1/8",
		IntegrationTime: "100ms",
		CountOrder:      "le",
		Interval:        1200 * time.Millisecond,
		LEDPin:          -1,
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default location.
func Load(path string) (Config, error) {
	conf := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return conf, nil
		}
		return conf, fmt.Errorf("could not read config %s: %w", path, err)
	}
	err = yaml.Unmarshal(data, &conf)
	if err != nil {
		return conf, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return conf, conf.Validate()
}

// Validate checks the values that would otherwise fail deep inside a command.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("invalid interval %s", c.Interval)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("invalid bus speed %d", c.Speed)
	}
	return nil
}

func VersionString() string {
	return fmt.Sprintf("%s-%s-%s", Version, Date, Commit)
}
