package device

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moduleRecord(connected bool, fw uint32, name string) []byte {
	var buf bytes.Buffer
	if !connected {
		buf.WriteByte(0)
		return buf.Bytes()
	}
	buf.WriteByte(1)
	_ = binary.Write(&buf, binary.LittleEndian, fw)
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	return buf.Bytes()
}

func TestReadModuleRecord(t *testing.T) {
	r := bytes.NewReader(moduleRecord(true, 22, "RotaryEncoder1"))

	mod, more, err := readModuleRecord(r, 1)
	require.NoError(t, err)
	assert.True(t, more)
	require.NotNil(t, mod)
	assert.Equal(t, "RotaryEncoder1", mod.Name)
	assert.Equal(t, uint32(22), mod.FirmwareVersion)
	assert.Equal(t, 1, mod.Port)
	assert.True(t, mod.Connected)
}

func TestReadModuleRecordEmptyPort(t *testing.T) {
	r := bytes.NewReader(moduleRecord(false, 0, ""))

	mod, more, err := readModuleRecord(r, 2)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Nil(t, mod)
}

func TestReadModuleRecordShortRead(t *testing.T) {
	// Nothing on the wire: firmware stops reporting after the last
	// populated port.
	mod, more, err := readModuleRecord(bytes.NewReader(nil), 3)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Nil(t, mod)
}

func TestReadModuleRecordTruncatedName(t *testing.T) {
	full := moduleRecord(true, 22, "SoundCard1")
	r := bytes.NewReader(full[:len(full)-3])

	_, _, err := readModuleRecord(r, 1)
	require.Error(t, err)
}
