package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestComponentKeepsOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "warn", Output: &buf})

	swapLog := log.Component("swap")
	swapLog.Info("hidden")
	swapLog.Warn("Fee estimation unavailable", "chain", "BTC")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "swap")
	assert.Contains(t, out, "Fee estimation unavailable")
	assert.Contains(t, out, "chain=BTC")
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xswap.log")

	f, err := OpenFile(path)
	require.NoError(t, err)
	log := New(&Config{Level: "info", Output: f})
	log.Component("swap").Info("Swap state advanced", "state", "funded")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "state=funded")
}
