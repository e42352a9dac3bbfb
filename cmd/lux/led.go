package main

import (
	"context"

	"github.com/mklimuk/lux/adapter"
)

// indicator is the status LED toggled around every reading.
type indicator interface {
	Set(ctx context.Context, on bool) error
}

type noLED struct{}

func (noLED) Set(ctx context.Context, on bool) error {
	return nil
}

// gpioLED drives an LED wired to one of the MCP2221 GP pins.
type gpioLED struct {
	mcp *adapter.MCP2221
	pin int
}

func newGPIOLED(ctx context.Context, mcp *adapter.MCP2221, pin int) (*gpioLED, error) {
	err := mcp.ConfigureGPIOOutput(ctx, pin)
	if err != nil {
		return nil, err
	}
	return &gpioLED{mcp: mcp, pin: pin}, nil
}

func (l *gpioLED) Set(ctx context.Context, on bool) error {
	return l.mcp.SetGPIOOutput(ctx, l.pin, on)
}
