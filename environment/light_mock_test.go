package environment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLightSensor_StaticValue(t *testing.T) {
	sensor := NewStaticLightSensor(207.36)
	lux, err := sensor.GetLux(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 207.36, lux)
}

func TestMockLightSensor_DynamicBehavior(t *testing.T) {
	callCount := 0
	sensor := NewMockLightSensor(func(ctx context.Context) (float64, error) {
		callCount++
		return float64(callCount) * 100, nil
	})

	ctx := context.Background()
	lux1, err := sensor.GetLux(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, lux1)

	lux2, err := sensor.GetLux(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200.0, lux2)
}

func TestMockLightSensor_ErrorHandling(t *testing.T) {
	sensor := NewMockLightSensor(func(ctx context.Context) (float64, error) {
		return 0, fmt.Errorf("sensor malfunction")
	})
	_, err := sensor.GetLux(context.Background())
	assert.EqualError(t, err, "sensor malfunction")
}

func TestMockLightSensor_ContextUsage(t *testing.T) {
	var receivedCtx context.Context
	sensor := NewMockLightSensor(func(ctx context.Context) (float64, error) {
		receivedCtx = ctx
		return 1000, nil
	})

	type contextKey string
	key := contextKey("test")
	ctx := context.WithValue(context.Background(), key, "test-value")

	_, err := sensor.GetLux(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-value", receivedCtx.Value(key))
}
