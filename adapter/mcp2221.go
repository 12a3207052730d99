package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/npa700"
	"github.com/mklimuk/npa700/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// maxTransfer is the payload of a single command or data report.
const maxTransfer = reportSize - 4

// MCP2221 command codes
const (
	cmdStatusSetParameters = 0x10
	cmdI2CWriteData        = 0x90
	cmdI2CReadData         = 0x91
	cmdI2CGetData          = 0x40
)

const (
	statusCancelTransfer = 0x10
	statusSetSpeed       = 0x20
	clockHz              = 12_000_000
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")
var ErrTransferTooLong = fmt.Errorf("transfer exceeds %d bytes", maxTransfer)

var _ npa700.I2CBus = &MCP2221{}

// MCP2221 drives a Microchip MCP2221 USB to I2C bridge over HID reports.
// Every transfer opens the device, so the bridge can be unplugged between
// calls.
type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	index        int
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opt func(*MCP2221)

// WithDeviceIndex selects one bridge when several are plugged in; the index
// follows hid.Enumerate order.
func WithDeviceIndex(index int) MCP2221Opt {
	return func(d *MCP2221) {
		d.index = index
	}
}

func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		index:        -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init checks that exactly one bridge (or the selected one) is attached.
func (d *MCP2221) Init() error {
	_, err := d.device()
	return err
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransfer {
		return fmt.Errorf("write to %x: %d bytes: %w", address, len(buffer), ErrTransferTooLong)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "address", address)
		return npa700.ErrBusBusy
	}
	return nil
}

// ReadFromAddr reads len(buffer) bytes. An empty buffer only addresses the
// device for reading, which wakes NPA-700 parts with sleep mode.
func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) > maxTransfer {
		return fmt.Errorf("read from %x: %d bytes: %w", address, len(buffer), ErrTransferTooLong)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "address", address)
		return npa700.ErrBusBusy
	}
	if len(buffer) == 0 {
		return nil
	}
	d.request[0] = cmdI2CGetData
	resetBuffer(d.response)
	err = d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// SetSpeed sets the I2C clock. NPA-700 parts accept 100 kHz to 400 kHz.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	if hz < 50_000 || hz > 400_000 {
		return fmt.Errorf("unsupported I2C speed %d Hz", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[3] = statusSetSpeed
	d.request[4] = byte(clockHz/hz - 3)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	// 0x20 acknowledges the new divider, 0x21 means a transfer was in progress
	if d.response[3] != statusSetSpeed {
		return ErrCommandFailed
	}
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels a pending transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParameters
	d.request[2] = statusCancelTransfer
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) device() (hid.DeviceInfo, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return hid.DeviceInfo{}, ErrDeviceNotFound
	}
	if d.index < 0 {
		if len(devs) > 1 {
			return hid.DeviceInfo{}, fmt.Errorf("ambiguous device identification: %d bridges attached", len(devs))
		}
		return devs[0], nil
	}
	if d.index >= len(devs) {
		return hid.DeviceInfo{}, fmt.Errorf("no device with id %d", d.index)
	}
	return devs[d.index], nil
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	info, err := d.device()
	if err != nil {
		return err
	}
	dev, err := info.Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Debug("could not close adapter", "error", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "dump", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "dump", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
