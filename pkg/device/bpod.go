package device

import (
	"encoding/binary"
	"io"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.bug.st/serial"
)

const (
	bpodBaudRate = 115200

	// State machine opcodes, per the Bpod serial interface.
	bpodOpHandshake     = '6'
	bpodHandshakeReply  = '5'
	bpodOpModuleInfo    = 'M'
	bpodOpSoftCode      = ':'
	bpodOpDisconnect    = 'Z'
	bpodModulePortCount = 5
)

// Bpod is an open connection to a Bpod finite state machine.
type Bpod struct {
	port serial.Port
}

// Module describes one module the Bpod reports on its module ports.
type Module struct {
	Port            int
	Connected       bool
	FirmwareVersion uint32
	Name            string
}

// OpenBpod opens the Bpod state machine on the given serial port.
func OpenBpod(portName string) (*Bpod, error) {
	mode := &serial.Mode{BaudRate: bpodBaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open Bpod on %s", portName)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrap(err, "failed to set Bpod read timeout")
	}

	return &Bpod{port: port}, nil
}

// WriteSoftCode sends a soft code byte to the state machine.
func (b *Bpod) WriteSoftCode(code byte) error {
	_, err := b.port.Write([]byte{bpodOpSoftCode, code})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to write soft code")
	}

	return nil
}

// Handshake performs the connect handshake and verifies the reply byte.
func (b *Bpod) Handshake() error {
	if _, err := b.port.Write([]byte{bpodOpHandshake}); err != nil {
		return pkgerrors.Wrap(err, "failed to send handshake")
	}

	reply := make([]byte, 1)
	if _, err := io.ReadFull(b.port, reply); err != nil {
		return pkgerrors.Wrap(err, "no handshake reply from Bpod")
	}
	if reply[0] != bpodHandshakeReply {
		return pkgerrors.Errorf("unexpected handshake reply 0x%02x", reply[0])
	}

	return nil
}

// Modules queries the state machine for the modules attached to its module
// ports. One record comes back per port: a connected flag and, when
// connected, the module firmware version and name.
func (b *Bpod) Modules() ([]Module, error) {
	if _, err := b.port.Write([]byte{bpodOpModuleInfo}); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to request module info")
	}

	var modules []Module
	for i := 0; i < bpodModulePortCount; i++ {
		mod, more, err := readModuleRecord(b.port, i+1)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read module record %d", i+1)
		}
		if mod != nil {
			modules = append(modules, *mod)
		}
		if !more {
			break
		}
	}

	return modules, nil
}

// readModuleRecord parses a single module record off the wire. Returns nil
// (and more=true) for an empty port.
func readModuleRecord(r io.Reader, portNum int) (*Module, bool, error) {
	flag := make([]byte, 1)
	if _, err := io.ReadFull(r, flag); err != nil {
		// Short read past the last record: firmware older than the
		// module-bus revision only reports populated ports.
		return nil, false, nil
	}

	if flag[0] == 0 {
		return nil, true, nil
	}

	var fw uint32
	if err := binary.Read(r, binary.LittleEndian, &fw); err != nil {
		return nil, false, err
	}

	nameLen := make([]byte, 1)
	if _, err := io.ReadFull(r, nameLen); err != nil {
		return nil, false, err
	}

	name := make([]byte, nameLen[0])
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, false, err
	}

	return &Module{
		Port:            portNum,
		Connected:       true,
		FirmwareVersion: fw,
		Name:            string(name),
	}, true, nil
}

// Close disconnects from the state machine and releases the port.
func (b *Bpod) Close() error {
	// Best effort: tell the state machine we are leaving.
	_, _ = b.port.Write([]byte{bpodOpDisconnect})

	return b.port.Close()
}
