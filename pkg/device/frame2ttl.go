package device

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.bug.st/serial"
)

const frame2ttlBaudRate = 115200

// Frame2TTL is an open connection to the frame-to-TTL screen sensor.
type Frame2TTL struct {
	port serial.Port
	open bool
}

// OpenFrame2TTL opens the frame2TTL sensor on the given serial port.
func OpenFrame2TTL(portName string) (*Frame2TTL, error) {
	mode := &serial.Mode{BaudRate: frame2ttlBaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open frame2TTL on %s", portName)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrap(err, "failed to set frame2TTL read timeout")
	}

	return &Frame2TTL{port: port, open: true}, nil
}

// IsOpen reports whether the serial connection is currently open.
func (f *Frame2TTL) IsOpen() bool {
	return f.open
}

// Close releases the serial port.
func (f *Frame2TTL) Close() error {
	f.open = false
	return f.port.Close()
}
