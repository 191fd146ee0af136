package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".iblrig_params.json")

	f := NewFileFromMap(map[string]string{
		KeyName:    "_iblrig_somelab_behavior_0",
		KeyComBpod: "COM3",
	}, path)
	require.NoError(t, f.Save())

	loaded, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "COM3", loaded.Get(KeyComBpod))
	assert.Equal(t, []string{KeyComBpod, KeyName}, loaded.Keys())
}

func TestLoadMissingFile(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, f.Get(KeyComBpod))
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Empty(t, f.Keys())
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := NewFile(path)
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	f := NewFileFromMap(map[string]string{
		KeyComBpod:              "COM3",
		KeyComRotaryEnc:         "COM4",
		KeyF2TTLCalibrationDate: "2021-06-01",
		KeyDataFolderLocal:      "/data",
	}, "")

	assert.Len(t, f.Match("COM"), 2)
	assert.Len(t, f.Match("DATE"), 1)
	assert.Len(t, f.Match(""), 4)
	assert.Empty(t, f.Match("XYZZY"))

	assert.Equal(t, f.Match("COM"), f.ComPorts())
	assert.Equal(t, f.Match("DATE"), f.CalibrationDates())
}

func TestIsEphysRig(t *testing.T) {
	f := NewFileFromMap(map[string]string{KeyName: "_iblrig_somelab_ephys_0"}, "")
	assert.True(t, f.IsEphysRig())

	f = NewFileFromMap(map[string]string{KeyName: "_iblrig_somelab_behavior_0"}, "")
	assert.False(t, f.IsEphysRig())
}

func TestParseDate(t *testing.T) {
	f := NewFileFromMap(map[string]string{
		KeyWaterCalibrationDate: "2021-06-01",
		KeyScreenLuxDate:        "junk",
	}, "")

	d, err := f.ParseDate(KeyWaterCalibrationDate)
	require.NoError(t, err)
	assert.Equal(t, 2021, d.Year())

	_, err = f.ParseDate(KeyScreenLuxDate)
	require.Error(t, err)

	_, err = f.ParseDate(KeyBpodTTLTestDate)
	require.Error(t, err, "unset date keys must error, not parse")
}

func TestLogrusFieldsRedactsPassword(t *testing.T) {
	f := NewFileFromMap(map[string]string{
		KeyAlyxLogin: "rig",
		KeyAlyxPwd:   "hunter2",
	}, "")

	fields := f.LogrusFields()
	assert.Equal(t, "rig", fields[KeyAlyxLogin])
	assert.Equal(t, "<redacted>", fields[KeyAlyxPwd])
}
