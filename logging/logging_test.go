package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec("warn,manager=debug,daemon=trace")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, spec.BaseLevel)
	assert.Equal(t, LevelDebug, spec.LevelFor("manager"))
	assert.Equal(t, LevelTrace, spec.LevelFor("daemon"))
	assert.Equal(t, LevelWarn, spec.LevelFor("store"))
}

func TestParseSpecEmpty(t *testing.T) {
	spec, err := ParseSpec("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, spec.BaseLevel)
}

func TestParseSpecBaseLevelMustBeFirst(t *testing.T) {
	_, err := ParseSpec("manager=debug,warn")
	require.Error(t, err)
}

func TestParseSpecRejectsEmptyComponent(t *testing.T) {
	_, err := ParseSpec("info,=debug")
	require.Error(t, err)
}

func TestFilteringHandlerPerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{
		CLISpec: "warn,manager=debug",
		Output:  &buf,
	})
	require.NoError(t, err)

	mgr := logger.With("component", "manager")
	other := logger.With("component", "store")

	mgr.Debug("manager debug visible")
	other.Debug("store debug hidden")
	other.Warn("store warn visible")

	out := buf.String()
	assert.Contains(t, out, "manager debug visible")
	assert.NotContains(t, out, "store debug hidden")
	assert.Contains(t, out, "store warn visible")
}

func TestFilteringHandlerBaseLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{CLISpec: "error", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Error("shown")

	lines := strings.TrimSpace(buf.String())
	assert.NotContains(t, lines, "hidden")
	assert.Contains(t, lines, "shown")
}

func TestSpecPrecedence(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{
		CLISpec:    "error",
		EnvSpec:    "debug",
		ConfigSpec: "trace",
		Output:     &buf,
	})
	require.NoError(t, err)

	logger.Warn("suppressed by CLI spec")
	assert.Empty(t, buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Info("hello", slog.String("k", "v"))
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "expected JSON output, got %q", buf.String())
}
