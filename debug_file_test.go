package mfrc522

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test in a fresh directory and clears session log state
// afterwards.
func chdirTemp(t *testing.T) {
	t.Helper()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() {
		_ = CloseSessionLog()
		_ = os.Chdir(origDir)
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	chdirTemp(t)

	path, err := InitSessionLog()
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")

	matched, err := regexp.MatchString(`^mfrc522_\d{8}_\d{6}\.log$`, path)
	require.NoError(t, err)
	assert.True(t, matched, "Filename should match mfrc522_YYYYMMDD_HHMMSS.log pattern, got: %s", path)
}

func TestSessionLog_HeaderMessagesFooter(t *testing.T) {
	chdirTemp(t)

	path, err := InitSessionLog()
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())

	Debugf("block %d read", 4)
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	text := string(content)
	assert.True(t, strings.HasPrefix(text, "=== MFRC522 Debug Session Log ==="))
	assert.Contains(t, text, "Go Version:")
	assert.Contains(t, text, "DEBUG: block 4 read")
	assert.Contains(t, text, "=== Session ended ===")
}

func TestCloseSessionLog_NoFile(t *testing.T) {
	chdirTemp(t)

	assert.NoError(t, CloseSessionLog())
}

func TestWriteSessionHeader_ContentFormat(t *testing.T) {
	var buf strings.Builder

	writeSessionHeader(&buf)

	content := buf.String()
	assert.Contains(t, content, "Started:")
	assert.Contains(t, content, "PID:")
	assert.Contains(t, content, "OS:")
	assert.Contains(t, content, "Command Line:")
}
