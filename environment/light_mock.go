package environment

import (
	"context"
)

// LightSensor is implemented by every illuminance source, real or mocked.
type LightSensor interface {
	GetLux(ctx context.Context) (float64, error)
}

var _ LightSensor = &VEML7700{}
var _ LightSensor = &MockLightSensor{}

// LightBehaviorFunc defines the function signature for light sensor behavior.
// It returns the lux value or an error.
type LightBehaviorFunc func(ctx context.Context) (float64, error)

// MockLightSensor produces readings from a behavior function without any hardware.
// The CLI uses it for dry runs and tests use it to drive the watch loop.
type MockLightSensor struct {
	behavior LightBehaviorFunc
}

// NewMockLightSensor creates a new mock light sensor with the given behavior function.
//
//	// Error simulation
//	sensor := NewMockLightSensor(func(ctx context.Context) (float64, error) {
//		return 0, fmt.Errorf("sensor malfunction")
//	})
func NewMockLightSensor(behavior LightBehaviorFunc) *MockLightSensor {
	return &MockLightSensor{
		behavior: behavior,
	}
}

func (m *MockLightSensor) GetLux(ctx context.Context) (float64, error) {
	return m.behavior(ctx)
}

// NewStaticLightSensor always reports the same value.
func NewStaticLightSensor(lux float64) *MockLightSensor {
	return NewMockLightSensor(func(ctx context.Context) (float64, error) {
		return lux, nil
	})
}
