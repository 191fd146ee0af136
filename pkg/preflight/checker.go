// Package preflight is the pre-session checklist for a behavioral rig. Each
// probe tests one hardware or connectivity precondition and reports a Result;
// probes are independent, make a single attempt, and open and release their
// own device handles.
package preflight

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/openrig/rigup/pkg/alyx"
	"github.com/openrig/rigup/pkg/device"
	"github.com/openrig/rigup/pkg/params"
	"github.com/openrig/rigup/pkg/sound"
)

// Probe names, as shown in reports and accepted by `rigup check <probe>`.
const (
	ProbeComPorts         = "comports"
	ProbeCalibrationDates = "calibration-dates"
	ProbeAlyx             = "alyx"
	ProbeLocalServer      = "local-server"
	ProbeRigDataFolder    = "rig-data-folder"
	ProbeAlyxServerRig    = "alyx-server-rig"
	ProbeRotaryEncoder    = "rotary-encoder"
	ProbeBpod             = "bpod"
	ProbeBpodModules      = "bpod-modules"
	ProbeFrame2TTL        = "frame2ttl"
	ProbeXonarSoundCard   = "xonar-sound-card"
	ProbeHarpSoundCard    = "harp-sound-card"
	ProbeDiskSpace        = "disk-space"
)

// Availability bits reported by the AlyxServerRig probe.
const (
	BitAlyx        uint8 = 0b100 // Alyx metadata server reachable
	BitLocalServer uint8 = 0b010 // lab-server data folder listable
	BitRigData     uint8 = 0b001 // rig-local data folder listable
)

// Bits all three AlyxServerRig subsystems report when healthy.
const AllBits = BitAlyx | BitLocalServer | BitRigData

// The Xonar card name as the OS reports it on the behavior rigs.
const xonarDeviceName = "XONAR SOUND CARD(64)"

const defaultMinFreeBytes = 20 << 30 // 20 GiB

// Device handle interfaces, so tests can run the checklist without hardware.
type rotaryEncoder interface {
	SetZeroPosition() error
	Close() error
}

type bpodConn interface {
	Handshake() error
	WriteSoftCode(code byte) error
	Modules() ([]device.Module, error)
	Close() error
}

type frame2TTL interface {
	IsOpen() bool
	Close() error
}

type alyxClient interface {
	Connect() error
}

// Checker runs the preflight probes against one rig, described by its
// parameter file. The zero value is not usable; use New.
type Checker struct {
	// MinFreeBytes is the free-space floor for the disk-space probe.
	MinFreeBytes uint64

	pars *params.File
	log  logrus.FieldLogger

	// Constructor seams, replaced in tests.
	openRotary func(port string) (rotaryEncoder, error)
	openBpod   func(port string) (bpodConn, error)
	openF2TTL  func(port string) (frame2TTL, error)
	newAlyx    func(p *params.File) (alyxClient, error)
	querySound func() ([]string, error)
	diskUsage  func(path string) (*disk.UsageStat, error)
	readDir    func(path string) ([]os.DirEntry, error)
	now        func() time.Time
}

// New builds a Checker over the given parameter store. The logger is
// injected; the checklist never touches the process-wide logger.
func New(pars *params.File, log logrus.FieldLogger) *Checker {
	return &Checker{
		MinFreeBytes: defaultMinFreeBytes,
		pars:         pars,
		log:          log,
		openRotary: func(port string) (rotaryEncoder, error) {
			return device.OpenRotaryEncoder(port)
		},
		openBpod: func(port string) (bpodConn, error) {
			return device.OpenBpod(port)
		},
		openF2TTL: func(port string) (frame2TTL, error) {
			return device.OpenFrame2TTL(port)
		},
		newAlyx: func(p *params.File) (alyxClient, error) {
			return alyx.NewFromParams(p)
		},
		querySound: sound.QueryDevices,
		diskUsage:  disk.Usage,
		readDir:    os.ReadDir,
		now:        time.Now,
	}
}

// ComPorts checks that every serial port assignment in the parameter file is
// filled in.
func (c *Checker) ComPorts() Result {
	ports := c.pars.ComPorts()
	if len(ports) == 0 {
		c.log.Warn("no COM port assignments in the parameter file")
		return fail(ProbeComPorts, "no COM port assignments found", nil)
	}

	var missing []string
	for k, v := range ports {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		c.log.Warnf("not all comports are present: %v", missing)
		return fail(ProbeComPorts, "unassigned ports: "+strings.Join(missing, ", "), nil)
	}

	return pass(ProbeComPorts, fmt.Sprintf("%d ports assigned", len(ports)))
}

// Alyx checks that the rig can authenticate against the Alyx metadata server.
func (c *Checker) Alyx() Result {
	cli, err := c.newAlyx(c.pars)
	if err == nil {
		err = cli.Connect()
	}
	if err != nil {
		c.log.WithError(err).Warn("can't connect to Alyx")
		return fail(ProbeAlyx, "can't connect to Alyx", err)
	}

	return pass(ProbeAlyx, "authenticated")
}

// LocalServer checks that the lab-server data folder is present.
func (c *Checker) LocalServer() Result {
	folder := c.pars.DataFolderRemote()
	if _, err := os.Stat(folder); err != nil {
		c.log.WithError(err).Warn("can't connect to local server")
		return fail(ProbeLocalServer, "can't reach "+folder, err)
	}

	return pass(ProbeLocalServer, folder)
}

// RigDataFolder checks that the rig-local data folder is present.
func (c *Checker) RigDataFolder() Result {
	folder := c.pars.DataFolderLocal()
	if _, err := os.Stat(folder); err != nil {
		c.log.WithError(err).Warn("can't find rig data folder")
		return fail(ProbeRigDataFolder, "can't reach "+folder, err)
	}

	return pass(ProbeRigDataFolder, folder)
}

// AlyxServerRigBits probes the three data-path subsystems and packs their
// availability into a 3-bit status: bit 2 Alyx reachable, bit 1 lab-server
// folder listable, bit 0 rig-local folder listable.
func (c *Checker) AlyxServerRigBits() uint8 {
	var bits uint8

	cli, err := c.newAlyx(c.pars)
	if err == nil {
		err = cli.Connect()
	}
	if err != nil {
		c.log.WithError(err).Warn("can't connect to Alyx")
	} else {
		bits |= BitAlyx
	}

	if _, err := c.readDir(c.pars.DataFolderRemote()); err != nil {
		c.log.WithError(err).Warn("can't connect to local server")
	} else {
		bits |= BitLocalServer
	}

	if _, err := c.readDir(c.pars.DataFolderLocal()); err != nil {
		c.log.WithError(err).Warn("can't find rig data folder")
	} else {
		bits |= BitRigData
	}

	return bits
}

// AlyxServerRig wraps AlyxServerRigBits as a probe: it passes only when all
// three subsystems are up (0b111).
func (c *Checker) AlyxServerRig() Result {
	bits := c.AlyxServerRigBits()
	detail := fmt.Sprintf("alyx/server/rig = %03b", bits)
	if bits != AllBits {
		return fail(ProbeAlyxServerRig, detail, nil)
	}

	return pass(ProbeAlyxServerRig, detail)
}

// RotaryEncoder checks the rotary encoder module responds on its port.
func (c *Checker) RotaryEncoder() Result {
	port := c.pars.Get(params.KeyComRotaryEnc)
	enc, err := c.openRotary(port)
	if err != nil {
		c.log.WithError(err).Warn("can't connect to rotary encoder")
		return fail(ProbeRotaryEncoder, "can't connect on "+port, err)
	}
	defer enc.Close()

	// Not strictly needed for a connectivity check, but it exercises the
	// command path, not just the port open.
	if err := enc.SetZeroPosition(); err != nil {
		c.log.WithError(err).Warn("rotary encoder rejected set-zero-position")
		return fail(ProbeRotaryEncoder, "set-zero-position failed", err)
	}

	return pass(ProbeRotaryEncoder, port)
}

// Bpod checks the Bpod state machine accepts soft codes on its port.
func (c *Checker) Bpod() Result {
	port := c.pars.Get(params.KeyComBpod)
	bpod, err := c.openBpod(port)
	if err != nil {
		c.log.WithError(err).Warn("can't connect to Bpod")
		return fail(ProbeBpod, "can't connect on "+port, err)
	}
	defer bpod.Close()

	if err := bpod.WriteSoftCode(0); err == nil {
		err = bpod.WriteSoftCode(1)
	}
	if err != nil {
		c.log.WithError(err).Warn("Bpod rejected soft codes")
		return fail(ProbeBpod, "soft code write failed", err)
	}

	return pass(ProbeBpod, port)
}

// BpodModules checks the expected modules are attached to the Bpod. Ephys
// rigs additionally need the sound card on the module bus.
func (c *Checker) BpodModules() Result {
	expected := []string{"RotaryEncoder1", "AmbientModule1"}
	if c.pars.IsEphysRig() {
		expected = append(expected, "SoundCard1")
	}

	port := c.pars.Get(params.KeyComBpod)
	bpod, err := c.openBpod(port)
	if err != nil {
		c.log.WithError(err).Warn("can't check modules from Bpod")
		return fail(ProbeBpodModules, "can't connect on "+port, err)
	}
	defer bpod.Close()

	if err := bpod.Handshake(); err != nil {
		c.log.WithError(err).Warn("can't check modules from Bpod")
		return fail(ProbeBpodModules, "handshake failed", err)
	}

	mods, err := bpod.Modules()
	if err != nil {
		c.log.WithError(err).Warn("can't check modules from Bpod")
		return fail(ProbeBpodModules, "module query failed", err)
	}

	present := map[string]bool{}
	for _, m := range mods {
		present[m.Name] = true
	}

	var missing []string
	for _, name := range expected {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		c.log.Warnf("missing modules: %v", missing)
		return fail(ProbeBpodModules, "missing: "+strings.Join(missing, ", "), nil)
	}

	return pass(ProbeBpodModules, strings.Join(expected, ", "))
}

// Frame2TTL checks the frame-to-TTL sensor opens on its port.
func (c *Checker) Frame2TTL() Result {
	port := c.pars.Get(params.KeyComFrame2TTL)
	f, err := c.openF2TTL(port)
	if err != nil {
		c.log.WithError(err).Warn("can't connect to Frame2TTL")
		return fail(ProbeFrame2TTL, "can't connect on "+port, err)
	}
	defer f.Close()

	if !f.IsOpen() {
		c.log.Warn("Frame2TTL port did not stay open")
		return fail(ProbeFrame2TTL, "port not open", nil)
	}

	return pass(ProbeFrame2TTL, port)
}

// XonarSoundCard checks the Xonar card is present. Ephys rigs play sound
// through the Bpod module bus instead, so the probe passes trivially there.
func (c *Checker) XonarSoundCard() Result {
	if c.pars.IsEphysRig() {
		return pass(ProbeXonarSoundCard, "ephys rig, Xonar not needed")
	}

	devices, err := c.querySound()
	if err != nil {
		c.log.WithError(err).Warn("can't query system sound devices")
		return fail(ProbeXonarSoundCard, "can't query sound devices", err)
	}

	found := sound.FindDevice(devices, xonarDeviceName)
	if len(found) != 1 {
		c.log.Warnf("expected exactly one Xonar sound card, found %d", len(found))
		return fail(ProbeXonarSoundCard, fmt.Sprintf("found %d matching devices", len(found)), nil)
	}

	return pass(ProbeXonarSoundCard, found[0])
}

// HarpSoundCard is not implemented: what the check should verify on the Harp
// card has never been pinned down, so the probe reports skip rather than
// guessing at a handshake.
func (c *Checker) HarpSoundCard() Result {
	return skip(ProbeHarpSoundCard, "not implemented")
}

// DiskSpace checks the rig-local data folder has room for a session.
func (c *Checker) DiskSpace() Result {
	folder := c.pars.DataFolderLocal()
	usage, err := c.diskUsage(folder)
	if err != nil {
		c.log.WithError(err).Warn("can't stat disk usage of rig data folder")
		return fail(ProbeDiskSpace, "can't stat "+folder, err)
	}

	detail := fmt.Sprintf("%.1f GiB free (%.0f%% used)",
		float64(usage.Free)/(1<<30), usage.UsedPercent)
	if usage.Free < c.MinFreeBytes {
		c.log.Warnf("low disk space on %s: %s", folder, detail)
		return fail(ProbeDiskSpace, detail, nil)
	}

	return pass(ProbeDiskSpace, detail)
}

// NamedProbe is one entry of the probe registry.
type NamedProbe struct {
	Name string
	Run  func() Result
}

// Probes returns the probe registry in checklist order.
func (c *Checker) Probes() []NamedProbe {
	return []NamedProbe{
		{ProbeComPorts, c.ComPorts},
		{ProbeCalibrationDates, c.CalibrationDates},
		{ProbeAlyxServerRig, c.AlyxServerRig},
		{ProbeRotaryEncoder, c.RotaryEncoder},
		{ProbeBpod, c.Bpod},
		{ProbeBpodModules, c.BpodModules},
		{ProbeFrame2TTL, c.Frame2TTL},
		{ProbeXonarSoundCard, c.XonarSoundCard},
		{ProbeHarpSoundCard, c.HarpSoundCard},
		{ProbeDiskSpace, c.DiskSpace},
	}
}

// CheckRig runs the whole checklist in order and returns every result.
func (c *Checker) CheckRig() []Result {
	var results []Result
	for _, p := range c.Probes() {
		results = append(results, p.Run())
	}

	return results
}

// Probe runs a single probe by name.
func (c *Checker) Probe(name string) (Result, bool) {
	extra := map[string]func() Result{
		ProbeAlyx:          c.Alyx,
		ProbeLocalServer:   c.LocalServer,
		ProbeRigDataFolder: c.RigDataFolder,
	}
	if run, ok := extra[name]; ok {
		return run(), true
	}

	for _, p := range c.Probes() {
		if p.Name == name {
			return p.Run(), true
		}
	}

	return Result{}, false
}
