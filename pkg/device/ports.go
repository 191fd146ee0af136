// Package device holds thin serial wrappers for the rig peripherals. Each
// wrapper speaks just enough of the vendor protocol for a connectivity
// handshake; full device control lives in the vendor tooling, not here.
package device

import (
	pkgerrors "github.com/pkg/errors"
	"go.bug.st/serial"
)

// ListPorts enumerates the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to enumerate serial ports")
	}

	return ports, nil
}
