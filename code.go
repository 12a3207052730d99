package npa700

import (
	"fmt"
	"strings"
)

// Code is the result of a driver operation. It is a set of independent flags:
// several conditions may be reported by a single call, so callers test for
// IsFatal instead of comparing against Success.
//
// Fatal flags occupy the high byte and mean the output value must not be
// trusted. Warning flags occupy the low byte; the value is valid but the
// condition should be surfaced.
type Code uint16

const Success Code = 0

// Warnings.
const (
	// WarnSaturated reports an output count outside 1638..14745.
	WarnSaturated Code = 1 << iota
	// WarnStale reports data that has already been fetched once.
	WarnStale
)

// Errors.
const (
	// ErrNACK is returned by transports when the sensor did not acknowledge.
	ErrNACK Code = 1 << (iota + 8)
	// ErrTimeout is returned by transports that gave up waiting for the bus.
	ErrTimeout
	// ErrNull reports a nil sensor, capability or output location.
	ErrNull
	// ErrNotImplemented is returned by reserved entry points.
	ErrNotImplemented
	// ErrParam reports an invalid argument passed to a transport.
	ErrParam
	// ErrMode reports a sensor in command (configuration) mode.
	ErrMode
	// ErrInternal reports a sensor diagnostic fault or an unknown variant.
	ErrInternal
)

const (
	warningMask Code = 0x00FF
	fatalMask   Code = 0xFF00
)

var flagNames = []struct {
	flag Code
	name string
}{
	{ErrNACK, "nack"},
	{ErrTimeout, "timeout"},
	{ErrNull, "null"},
	{ErrNotImplemented, "not implemented"},
	{ErrParam, "invalid parameter"},
	{ErrMode, "command mode"},
	{ErrInternal, "internal error"},
	{WarnSaturated, "saturated"},
	{WarnStale, "stale data"},
}

// IsFatal reports whether any error flag is set.
func (c Code) IsFatal() bool {
	return c&fatalMask != 0
}

// IsWarning reports whether any warning flag is set.
func (c Code) IsWarning() bool {
	return c&warningMask != 0
}

// Has reports whether all flags of f are set in c.
func (c Code) Has(f Code) bool {
	return f != 0 && c&f == f
}

// Flags splits c into its individual flags, errors first.
func (c Code) Flags() []Code {
	var flags []Code
	for _, f := range flagNames {
		if c&f.flag != 0 {
			flags = append(flags, f.flag)
		}
	}
	// bits without a name are reported as they are
	if rest := c &^ knownFlags(); rest != 0 {
		flags = append(flags, rest)
	}
	return flags
}

// Warnings returns c with the error flags cleared.
func (c Code) Warnings() Code {
	return c & warningMask
}

func (c Code) String() string {
	if c == Success {
		return "success"
	}
	var b strings.Builder
	for _, f := range c.Flags() {
		if b.Len() > 0 {
			b.WriteString("|")
		}
		b.WriteString(f.name())
	}
	return b.String()
}

func (c Code) name() string {
	for _, f := range flagNames {
		if f.flag == c {
			return f.name
		}
	}
	return fmt.Sprintf("unknown(%#04x)", uint16(c))
}

// Error makes a Code usable as an error value. Prefer Err, which returns nil
// for codes that only carry warnings.
func (c Code) Error() string {
	return "npa700: " + c.String()
}

// Is lets errors.Is match a returned code against a single flag:
//
//	errors.Is(code, npa700.ErrMode)
func (c Code) Is(target error) bool {
	t, ok := target.(Code)
	if !ok {
		return false
	}
	if t == Success {
		return c == Success
	}
	return c.Has(t)
}

// Err returns c as an error when it carries a fatal flag, nil otherwise.
func (c Code) Err() error {
	if !c.IsFatal() {
		return nil
	}
	return c
}

func knownFlags() Code {
	var all Code
	for _, f := range flagNames {
		all |= f.flag
	}
	return all
}
