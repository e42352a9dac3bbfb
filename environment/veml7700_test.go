package environment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/lux/i2c"
)

// MockRegisterBus is a mock implementation of lux.RegisterBus using testify/mock
type MockRegisterBus struct {
	mock.Mock
}

func (m *MockRegisterBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockRegisterBus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	args := m.Called(ctx, address, w, r)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(r) {
		copy(r, data)
	}
	return args.Error(1)
}

// default configuration: shutdown, gain 1/8 (0b10 << 11), 100ms (0b0000 << 6)
var defaultConfBytes = []byte{0x00, 0x01, 0x10}

func newTestSensor(t *testing.T, opts ...VEML7700Option) (*VEML7700, *MockRegisterBus) {
	t.Helper()
	bus := &MockRegisterBus{}
	bus.On("WriteToAddr", mock.Anything, byte(VEML7700Address), mock.Anything).Return(nil).Once()
	s, err := NewVEML7700(context.Background(), bus, opts...)
	require.NoError(t, err)
	return s, bus
}

func TestVEML7700_Construct(t *testing.T) {
	bus := &MockRegisterBus{}
	bus.On("WriteToAddr", mock.Anything, byte(0x10), defaultConfBytes).Return(nil).Once()
	s, err := NewVEML7700(context.Background(), bus)
	require.NoError(t, err)
	bus.AssertExpectations(t)

	conf := s.Config()
	assert.Equal(t, Config(0x1001), conf)
	assert.True(t, conf.Shutdown())
	assert.False(t, conf.InterruptEnabled())
	assert.Equal(t, GainOneEighth, conf.Gain())
	it, err := conf.IntegrationTime()
	require.NoError(t, err)
	assert.Equal(t, IntegrationTime100ms, it)
	assert.Equal(t, StatePoweredDown, s.State())
}

func TestVEML7700_ConstructWriteFails(t *testing.T) {
	busErr := errors.New("no ack")
	bus := &MockRegisterBus{}
	bus.On("WriteToAddr", mock.Anything, byte(0x10), defaultConfBytes).Return(busErr).Once()
	s, err := NewVEML7700(context.Background(), bus)
	assert.Nil(t, s)
	var be *BusError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "write", be.Op)
	assert.Equal(t, byte(0x00), be.Register)
	assert.ErrorIs(t, err, busErr)
}

func TestVEML7700_ConstructInvalidOptions(t *testing.T) {
	bus := &MockRegisterBus{}
	_, err := NewVEML7700(context.Background(), bus, WithGain(Gain(9)))
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewVEML7700(context.Background(), bus, WithIntegrationTime(IntegrationTime(6)))
	assert.ErrorIs(t, err, ErrConfiguration)
	// rejected before touching the bus
	bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestVEML7700_EnableDisable(t *testing.T) {
	s, bus := newTestSensor(t)
	ctx := context.Background()
	bus.On("WriteToAddr", ctx, byte(0x10), []byte{0x00, 0x00, 0x10}).Return(nil).Twice()
	bus.On("WriteToAddr", ctx, byte(0x10), []byte{0x00, 0x01, 0x10}).Return(nil).Once()

	require.NoError(t, s.Enable(ctx))
	first := s.Config()
	assert.False(t, first.Shutdown())
	assert.Equal(t, StateActive, s.State())

	require.NoError(t, s.Disable(ctx))
	assert.True(t, s.Config().Shutdown())
	assert.Equal(t, StatePoweredDown, s.State())

	require.NoError(t, s.Enable(ctx))
	assert.Equal(t, first, s.Config())
	bus.AssertExpectations(t)
}

func TestVEML7700_EnableIdempotent(t *testing.T) {
	s, bus := newTestSensor(t)
	ctx := context.Background()
	bus.On("WriteToAddr", ctx, byte(0x10), []byte{0x00, 0x00, 0x10}).Return(nil).Twice()
	require.NoError(t, s.Enable(ctx))
	require.NoError(t, s.Enable(ctx))
	assert.Equal(t, Config(0x1000), s.Config())
	bus.AssertExpectations(t)
}

func TestVEML7700_EnableFailureKeepsState(t *testing.T) {
	s, bus := newTestSensor(t)
	ctx := context.Background()
	bus.On("WriteToAddr", ctx, byte(0x10), []byte{0x00, 0x00, 0x10}).Return(errors.New("arbitration lost")).Once()
	err := s.Enable(ctx)
	var be *BusError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, Config(0x1001), s.Config())
	assert.Equal(t, StatePoweredDown, s.State())
}

func TestVEML7700_GetLux(t *testing.T) {
	tests := []struct {
		name     string
		gain     Gain
		it       IntegrationTime
		data     []byte
		expected float64
	}{
		{"gain 1, 100ms, 1000 counts", GainOne, IntegrationTime100ms, []byte{0xE8, 0x03}, 207.36},
		{"gain 1/8, 25ms, dark", GainOneEighth, IntegrationTime25ms, []byte{0x00, 0x00}, 0.0},
		{"gain 2, 800ms, 1 count", GainTwo, IntegrationTime800ms, []byte{0x01, 0x00}, 0.0036 * 1.0 * 0.0036 * 1000},
		{"gain 1/4, 50ms, saturated", GainOneQuarter, IntegrationTime50ms, []byte{0xFF, 0xFF}, 0.0036 * 8.0 * 0.0576 * 65535 * 1000},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s, bus := newTestSensor(t, WithGain(test.gain), WithIntegrationTime(test.it))
			bus.On("WriteReadAddr", mock.Anything, byte(0x10), []byte{0x04}, mock.Anything).Return(test.data, nil).Once()
			lux, err := s.GetLux(context.Background())
			require.NoError(t, err)
			assert.InDelta(t, test.expected, lux, 1e-9)
			bus.AssertExpectations(t)
		})
	}
}

func TestVEML7700_CountOrder(t *testing.T) {
	tests := []struct {
		order    CountOrder
		data     []byte
		expected uint16
	}{
		{CountLittleEndian, []byte{0xE8, 0x03}, 1000},
		{CountLittleEndian, []byte{0xFF, 0xFF}, 0xFFFF},
		{CountBitwiseOR, []byte{0xE8, 0x03}, 0xEB},
		{CountBitwiseOR, []byte{0x10, 0x01}, 0x11},
	}
	for _, test := range tests {
		t.Run(test.order.String(), func(t *testing.T) {
			s, bus := newTestSensor(t, WithCountOrder(test.order))
			bus.On("WriteReadAddr", mock.Anything, byte(0x10), []byte{0x04}, mock.Anything).Return(test.data, nil).Once()
			raw, err := s.ReadRaw(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.expected, raw)
		})
	}
}

func TestVEML7700_ReadFailureKeepsState(t *testing.T) {
	s, bus := newTestSensor(t, WithGain(GainTwo), WithIntegrationTime(IntegrationTime400ms))
	before := s.Config()
	busErr := errors.New("timeout")
	bus.On("WriteReadAddr", mock.Anything, byte(0x10), []byte{0x04}, mock.Anything).Return(nil, busErr).Once()
	_, err := s.GetLux(context.Background())
	var be *BusError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "read", be.Op)
	assert.Equal(t, byte(0x04), be.Register)
	assert.EqualError(t, err, "veml7700: read register 0x04: timeout")
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, before, s.Config())
	assert.Equal(t, GainTwo, s.Gain())
	assert.Equal(t, IntegrationTime400ms, s.IntegrationTime())
}

func TestVEML7700_OverGenericBus(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x10, W: []byte{0x00, 0x01, 0x00}},
			{Addr: 0x10, W: []byte{0x00, 0x00, 0x00}},
			{Addr: 0x10, W: []byte{0x04}, R: []byte{0xE8, 0x03}},
		},
		DontPanic: true,
	}
	ctx := context.Background()
	s, err := NewVEML7700(ctx, i2c.NewBus(pb), WithGain(GainOne))
	require.NoError(t, err)
	require.NoError(t, s.Enable(ctx))
	lux, err := s.GetLux(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 207.36, lux, 1e-9)
	assert.NoError(t, pb.Close())
}

func TestReadVEML7700Config(t *testing.T) {
	bus := &MockRegisterBus{}
	bus.On("WriteReadAddr", mock.Anything, byte(0x10), []byte{0x00}, mock.Anything).Return([]byte{0x40, 0x08}, nil).Once()
	conf, err := ReadVEML7700Config(context.Background(), bus)
	require.NoError(t, err)
	assert.Equal(t, GainTwo, conf.Gain())
	it, err := conf.IntegrationTime()
	require.NoError(t, err)
	assert.Equal(t, IntegrationTime200ms, it)
	assert.False(t, conf.Shutdown())

	bus = &MockRegisterBus{}
	bus.On("WriteReadAddr", mock.Anything, byte(0x10), []byte{0x00}, mock.Anything).Return(nil, errors.New("nack")).Once()
	_, err = ReadVEML7700Config(context.Background(), bus)
	var be *BusError
	assert.ErrorAs(t, err, &be)
}
