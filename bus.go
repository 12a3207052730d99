package npa700

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

// I2CBus is implemented by every transport in the i2c and adapter packages.
// ReadFromAddr must accept an empty buffer, which the sensor treats as a
// measurement request.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}
