package chirp

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

// AddressableTransceiver writes w and reads len(r) bytes back from the same
// device with a repeated start, without releasing the bus in between.
type AddressableTransceiver interface {
	WriteReadAddr(ctx context.Context, address byte, w, r []byte) error
}

// I2CBus is the transport every driver in this module is built on.
type I2CBus interface {
	AddressableReader
	AddressableWriter
	AddressableTransceiver
}
