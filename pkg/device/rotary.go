package device

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.bug.st/serial"
)

const (
	// The rotary encoder module runs its USB serial link at this rate.
	rotaryEncoderBaudRate = 1312500

	rotaryOpSetZeroPos = 'Z'
	rotaryOpEnable     = 'E'
	rotaryOpDisable    = 'D'
)

// RotaryEncoder is an open connection to the rotary encoder module.
type RotaryEncoder struct {
	port serial.Port
}

// OpenRotaryEncoder opens the rotary encoder module on the given serial port.
func OpenRotaryEncoder(portName string) (*RotaryEncoder, error) {
	mode := &serial.Mode{BaudRate: rotaryEncoderBaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open rotary encoder on %s", portName)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrap(err, "failed to set rotary encoder read timeout")
	}

	return &RotaryEncoder{port: port}, nil
}

// SetZeroPosition re-zeroes the encoder position register.
func (r *RotaryEncoder) SetZeroPosition() error {
	_, err := r.port.Write([]byte{rotaryOpSetZeroPos})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to set zero position")
	}

	return nil
}

// Enable starts position event streaming.
func (r *RotaryEncoder) Enable() error {
	_, err := r.port.Write([]byte{rotaryOpEnable})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to enable position streaming")
	}

	return nil
}

// Disable stops position event streaming.
func (r *RotaryEncoder) Disable() error {
	_, err := r.port.Write([]byte{rotaryOpDisable})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to disable position streaming")
	}

	return nil
}

// Close releases the serial port.
func (r *RotaryEncoder) Close() error {
	return r.port.Close()
}
