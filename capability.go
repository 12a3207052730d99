package npa700

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// Capabilities adapts an error-returning bus to the driver's code-returning
// read and write functions. A nil bus yields nil functions, which the sensor
// reports as ErrNull.
func Capabilities(bus I2CBus) (WriteFunc, ReadFunc) {
	if bus == nil {
		return nil, nil
	}
	write := func(ctx context.Context, address byte, data []byte) Code {
		err := bus.WriteToAddr(ctx, address, data)
		if err != nil {
			slog.Debug("npa700 bus write failed", "address", address, "len", len(data), "error", err)
		}
		return CodeOf(err)
	}
	read := func(ctx context.Context, address byte, data []byte) Code {
		err := bus.ReadFromAddr(ctx, address, data)
		if err != nil {
			slog.Debug("npa700 bus read failed", "address", address, "len", len(data), "error", err)
		}
		return CodeOf(err)
	}
	return write, read
}

type timeout interface {
	Timeout() bool
}

// CodeOf maps a transport error to a result code. Codes are passed through,
// deadline errors become ErrTimeout and everything else ErrNACK.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var code Code
	if errors.As(err, &code) {
		return code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return ErrTimeout
	}
	return ErrNACK
}
