package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 10, 3, 7, 5, 9, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("logs", "flicker.20261003_070509.log"),
		LogFilePath("logs", ServiceName, start))
	assert.Equal(t,
		filepath.Join("/tmp", "ar", "viewer.20261003_070509.log"),
		LogFilePath(filepath.Join("/tmp", "ar"), "viewer", start))
	assert.Equal(t,
		filepath.Join("logs", "flicker.20261003_070509.log"),
		LogFilePath("./logs/", ServiceName, start), "path is cleaned")
}

func TestOpenLogFile_CreatesDirAndAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	start := time.Date(2026, 10, 3, 7, 5, 9, 0, time.UTC)

	for _, line := range []string{"first\n", "second\n"} {
		f, path, err := OpenLogFile(dir, start)
		require.NoError(t, err)
		assert.Equal(t, LogFilePath(dir, ServiceName, start), path)
		_, err = f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	data, err := os.ReadFile(LogFilePath(dir, ServiceName, start))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}
