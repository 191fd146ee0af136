package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskYesNo(t *testing.T) {
	var out strings.Builder

	yes, err := AskYesNo(strings.NewReader("y\n"), &out, "Install?")
	require.NoError(t, err)
	assert.True(t, yes)

	yes, err = AskYesNo(strings.NewReader("n\n"), &out, "Install?")
	require.NoError(t, err)
	assert.False(t, yes)
}

func TestAskYesNoReprompts(t *testing.T) {
	var out strings.Builder

	// Garbage first, then a valid answer.
	yes, err := AskYesNo(strings.NewReader("x\nmaybe\ny\n"), &out, "Install?")
	require.NoError(t, err)
	assert.True(t, yes)
	assert.Equal(t, 2, strings.Count(out.String(), "Please answer"))
}

func TestAskYesNoTrimsWhitespace(t *testing.T) {
	var out strings.Builder

	yes, err := AskYesNo(strings.NewReader("  y \n"), &out, "Install?")
	require.NoError(t, err)
	assert.True(t, yes)
}

func TestAskYesNoGivesUp(t *testing.T) {
	var out strings.Builder

	input := strings.Repeat("x\n", MaxAttempts+3)
	_, err := AskYesNo(strings.NewReader(input), &out, "Install?")
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestAskYesNoInputClosed(t *testing.T) {
	var out strings.Builder

	_, err := AskYesNo(strings.NewReader(""), &out, "Install?")
	require.Error(t, err)
}

func TestParseYesNo(t *testing.T) {
	yes, err := ParseYesNo("y")
	require.NoError(t, err)
	assert.True(t, yes)

	yes, err = ParseYesNo("n")
	require.NoError(t, err)
	assert.False(t, yes)

	_, err = ParseYesNo("x")
	require.Error(t, err)
}
