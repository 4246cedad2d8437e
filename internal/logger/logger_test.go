package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initToFile points the global logger at a temp file and returns a reader
// for what was logged. The global logger is restored on cleanup.
func initToFile(t *testing.T, level, format string) func() string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, Init(Config{Level: level, Format: format, Output: path}))
	t.Cleanup(func() {
		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: "stderr"}))
	})
	return func() string {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return string(data)
	}
}

func TestLevelFiltering(t *testing.T) {
	read := initToFile(t, "WARN", "text")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := read()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLevelIsCaseInsensitive(t *testing.T) {
	read := initToFile(t, "debug", "text")

	Debug("visible")
	assert.Contains(t, read(), "visible")
}

func TestJSONFormat(t *testing.T) {
	read := initToFile(t, "INFO", "json")

	Info("upload complete", "file", "a.txt", "chunks", 3)

	line := strings.TrimSpace(read())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "upload complete", entry["msg"])
	assert.Equal(t, "a.txt", entry["file"])
	assert.Equal(t, float64(3), entry["chunks"])
	assert.Contains(t, entry, "time")
}

func TestWithCarriesAttributes(t *testing.T) {
	read := initToFile(t, "INFO", "json")

	l := With("bot_id", "bot-a")
	l.Info("chunk sent", "index", 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(read())), &entry))
	assert.Equal(t, "bot-a", entry["bot_id"])
	assert.Equal(t, float64(0), entry["index"])
}

func TestInitRejectsBadConfig(t *testing.T) {
	require.Error(t, Init(Config{Level: "VERBOSE"}))
	require.Error(t, Init(Config{Format: "xml"}))
	require.Error(t, Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")}))
}

func TestInitDefaults(t *testing.T) {
	// Empty config means INFO/text/stderr.
	require.NoError(t, Init(Config{}))
}
