package environment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allGains = []Gain{GainOneEighth, GainOneQuarter, GainOne, GainTwo}

var allIntegrationTimes = []IntegrationTime{
	IntegrationTime25ms, IntegrationTime50ms, IntegrationTime100ms,
	IntegrationTime200ms, IntegrationTime400ms, IntegrationTime800ms,
}

func TestConfig_GainRoundTrip(t *testing.T) {
	for _, g := range allGains {
		t.Run(g.String(), func(t *testing.T) {
			conf := NewConfig(g, IntegrationTime100ms, false)
			assert.Equal(t, g.code()<<11, uint16(conf)&confGainMask)
			assert.Equal(t, g, conf.Gain())
		})
	}
}

func TestConfig_IntegrationTimeRoundTrip(t *testing.T) {
	for _, it := range allIntegrationTimes {
		t.Run(it.String(), func(t *testing.T) {
			conf := NewConfig(GainOne, it, true)
			decoded, err := conf.IntegrationTime()
			require.NoError(t, err)
			assert.Equal(t, it, decoded)
			// nothing leaks outside the field
			assert.Zero(t, uint16(conf)&^(confIntTimeMask|confShutdown))
		})
	}
}

func TestConfig_ReservedIntegrationTime(t *testing.T) {
	_, err := Config(0b0100 << confIntTimeShift).IntegrationTime()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfig_WithShutdownPreservesFields(t *testing.T) {
	conf := NewConfig(GainTwo, IntegrationTime25ms, false) | Config(confIntEnable|confIntThHigh|confIntThLow)
	off := conf.WithShutdown(true)
	assert.True(t, off.Shutdown())
	assert.Equal(t, uint16(conf)|confShutdown, uint16(off))
	assert.Equal(t, conf, off.WithShutdown(false))
	assert.True(t, off.InterruptEnabled())
}

func TestFactors(t *testing.T) {
	assert.Equal(t, []float64{16, 8, 2, 1}, []float64{
		GainOneEighth.Factor(), GainOneQuarter.Factor(), GainOne.Factor(), GainTwo.Factor(),
	})
	expected := []float64{0.1152, 0.0576, 0.0288, 0.0144, 0.0072, 0.0036}
	for i, it := range allIntegrationTimes {
		assert.Equal(t, expected[i], it.Factor(), it.String())
	}
}

func TestParseGain(t *testing.T) {
	for _, g := range allGains {
		parsed, err := ParseGain(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}
	_, err := ParseGain("4")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseIntegrationTime(t *testing.T) {
	for _, it := range allIntegrationTimes {
		parsed, err := ParseIntegrationTime(it.String())
		require.NoError(t, err)
		assert.Equal(t, it, parsed)
	}
	it, err := ParseIntegrationTime("0.2s")
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, it.Duration())

	_, err = ParseIntegrationTime("300ms")
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = ParseIntegrationTime("soon")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseCountOrder(t *testing.T) {
	o, err := ParseCountOrder("")
	require.NoError(t, err)
	assert.Equal(t, CountLittleEndian, o)
	o, err = ParseCountOrder("or")
	require.NoError(t, err)
	assert.Equal(t, CountBitwiseOR, o)
	o, err = ParseCountOrder(" le ")
	require.NoError(t, err)
	assert.Equal(t, CountLittleEndian, o)
	_, err = ParseCountOrder("be")
	assert.ErrorIs(t, err, ErrConfiguration)
}
