package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_FileReceivesRecords(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Format: "json", File: &buf, Quiet: true})
	t.Cleanup(func() { Setup(Options{}) })

	Info("import finished", "changed", 3)
	Debug("hidden at info level")
	Error("fetch failed", errors.New("boom"), "url", "https://example.com/...(redacted)")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "import finished", first["msg"])
	assert.EqualValues(t, 3, first["changed"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "boom", second["err"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "error", File: &buf, Quiet: true})
	t.Cleanup(func() { Setup(Options{}) })

	Info("dropped")
	assert.Zero(t, buf.Len())

	SetLevel(LevelDebug)
	Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARN":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in).String(), in)
	}
}
