package lux

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AddressableTransactor writes w and then reads len(r) bytes from the same
// device without releasing the bus in between (repeated start).
type AddressableTransactor interface {
	WriteReadAddr(ctx context.Context, address byte, w, r []byte) error
}

// RegisterBus is the minimal capability a register-oriented device driver needs:
// a plain write and a combined write-then-read.
type RegisterBus interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	WriteReadAddr(ctx context.Context, address byte, w, r []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
	AddressableTransactor
}
