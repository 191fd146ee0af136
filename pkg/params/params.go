package params

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Well-known keys of the rig parameter file. The file is produced by the
// rig setup tooling; the preflight checklist only ever reads it.
const (
	KeyName             = "NAME"
	KeyComBpod          = "COM_BPOD"
	KeyComRotaryEnc     = "COM_ROTARY_ENCODER"
	KeyComFrame2TTL     = "COM_F2TTL"
	KeyDataFolderLocal  = "DATA_FOLDER_LOCAL"
	KeyDataFolderRemote = "DATA_FOLDER_REMOTE"

	KeyF2TTLCalibrationDate = "F2TTL_CALIBRATION_DATE"
	KeyScreenFreqTestDate   = "SCREEN_FREQ_TEST_DATE"
	KeyScreenLuxDate        = "SCREEN_LUX_DATE"
	KeyWaterCalibrationDate = "WATER_CALIBRATION_DATE"
	KeyBpodTTLTestDate      = "BPOD_TTL_TEST_DATE"

	KeyAlyxURL   = "ALYX_URL"
	KeyAlyxLogin = "ALYX_LOGIN"
	KeyAlyxPwd   = "ALYX_PWD"
)

// DateLayout is the calendar format calibration dates are stored in.
const DateLayout = "2006-01-02"

// DefaultPath returns the default location of the rig parameter file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("iblrig_params", ".iblrig_params.json")
	}
	return filepath.Join(home, "iblrig_params", ".iblrig_params.json")
}

// File is a flat key->value rig parameter store backed by a JSON file.
type File struct {
	m        map[string]string
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads the parameter file at path.
func NewFile(path string) (*File, error) {
	f := &File{
		filepath: path,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

// NewFileFromMap builds an in-memory store, mainly for tests and for the
// installer writing an initial parameter file.
func NewFileFromMap(m map[string]string, path string) *File {
	if m == nil {
		m = map[string]string{}
	}

	return &File{
		m:        m,
		mu:       &sync.RWMutex{},
		filepath: path,
	}
}

// Get returns the value for key, empty if unset.
func (f *File) Get(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.m[key]
}

// Set stores a value. The checklist never calls this; the installer does when
// seeding a fresh parameter file.
func (f *File) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.m[key] = value
}

// Match returns the sub-map of all keys containing substr. An empty substr
// returns a copy of the whole store.
func (f *File) Match(substr string) map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string)
	for k, v := range f.m {
		if strings.Contains(k, substr) {
			out[k] = v
		}
	}

	return out
}

// Keys returns all keys in sorted order.
func (f *File) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// ComPorts returns the serial port assignment sub-map (all COM_* keys).
func (f *File) ComPorts() map[string]string {
	return f.Match("COM")
}

// CalibrationDates returns the calibration date sub-map (all *DATE keys).
func (f *File) CalibrationDates() map[string]string {
	return f.Match("DATE")
}

// DataFolderLocal returns the rig-local data folder path.
func (f *File) DataFolderLocal() string {
	return f.Get(KeyDataFolderLocal)
}

// DataFolderRemote returns the lab-server data folder path.
func (f *File) DataFolderRemote() string {
	return f.Get(KeyDataFolderRemote)
}

// IsEphysRig reports whether the rig name marks this as an ephys rig.
func (f *File) IsEphysRig() bool {
	return strings.Contains(f.Get(KeyName), "ephys")
}

// ParseDate parses the value of key as a calendar date.
func (f *File) ParseDate(key string) (time.Time, error) {
	v := f.Get(key)
	if v == "" {
		return time.Time{}, pkgerrors.Errorf("parameter %s is not set", key)
	}

	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, pkgerrors.Wrapf(err, "failed to parse %s as a date", key)
	}

	return t, nil
}

// Load reads the parameter file from disk. A missing or empty file yields an
// empty store rather than an error, so probes report missing parameters
// instead of the whole checklist erroring out.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			f.m = map[string]string{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.m = map[string]string{}
		return nil
	}

	m := map[string]string{}
	err = json.Unmarshal(b, &m)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal params from file %s", f.filepath)
	}
	f.m = m

	return nil
}

// Save writes the store back to disk.
func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.m == nil {
		return pkgerrors.New("params map is nil")
	}

	if dir := filepath.Dir(f.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return pkgerrors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.m)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode params to file %s", f.filepath)
	}

	return nil
}

// LogrusFields summarizes the store for debug logging, eliding secrets.
func (f *File) LogrusFields() logrus.Fields {
	f.mu.RLock()
	defer f.mu.RUnlock()

	fields := logrus.Fields{}
	for k, v := range f.m {
		if k == KeyAlyxPwd {
			v = "<redacted>"
		}
		fields[k] = v
	}

	return fields
}
