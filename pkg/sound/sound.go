// Package sound enumerates the sound output devices the OS knows about.
// Device enumeration is vendor/OS territory, so this stays a thin shell over
// the platform's own tooling.
package sound

import (
	"os/exec"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// QueryDevices returns the names of the sound devices present on this
// machine, one per line of the underlying tool's output.
func QueryDevices() ([]string, error) {
	var out []byte
	var err error

	switch runtime.GOOS {
	case "windows":
		out, err = exec.Command(
			"powershell", "-NoProfile", "-Command",
			"Get-CimInstance Win32_SoundDevice | Select-Object -ExpandProperty Name",
		).Output()
	case "darwin":
		out, err = exec.Command("system_profiler", "SPAudioDataType").Output()
	default:
		out, err = exec.Command("aplay", "-l").Output()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query sound devices")
	}

	var devices []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			devices = append(devices, line)
		}
	}

	return devices, nil
}

// FindDevice returns the devices whose name contains substr.
func FindDevice(devices []string, substr string) []string {
	var found []string
	for _, d := range devices {
		if strings.Contains(d, substr) {
			found = append(found, d)
		}
	}

	return found
}
