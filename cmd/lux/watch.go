package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/lux/environment"
	"github.com/mklimuk/lux/snsctx"
)

// watch reads the sensor every interval until ctx is cancelled. The LED is lit
// for the duration of each reading. A failed reading ends the loop.
func watch(ctx context.Context, sensor environment.LightSensor, led indicator, interval time.Duration, report func(float64)) error {
	logger := snsctx.Logger(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := led.Set(ctx, true); err != nil {
			logger.Warn("could not switch status led on", "error", err)
		}
		lux, err := sensor.GetLux(ctx)
		if lerr := led.Set(ctx, false); lerr != nil {
			logger.Warn("could not switch status led off", "error", lerr)
		}
		if err != nil {
			return fmt.Errorf("reading failed: %w", err)
		}
		report(lux)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// sleep waits for d unless ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
