package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable holding the log spec. It takes
// precedence over the config file but not over CLI flags.
const EnvVar = "BPFD_LOG"

// Format is the log output format.
type Format string

const (
	// FormatText is human-readable text output.
	FormatText Format = "text"
	// FormatJSON is JSON output.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}

// Options configures the logger factory.
type Options struct {
	// CLISpec is the spec from a command-line flag (highest
	// precedence).
	CLISpec string
	// EnvSpec is the spec from BPFD_LOG.
	EnvSpec string
	// ConfigSpec is the spec from the config file (lowest
	// precedence).
	ConfigSpec string
	// Format selects text or JSON output.
	Format Format
	// Output defaults to os.Stdout.
	Output io.Writer
}

// New creates a logger with component-level filtering. Spec precedence
// follows the Unix convention: CLI flag, then environment, then config
// file.
func New(opts Options) (*slog.Logger, error) {
	specStr := ""
	switch {
	case opts.CLISpec != "":
		specStr = opts.CLISpec
	case opts.EnvSpec != "":
		specStr = opts.EnvSpec
	case opts.ConfigSpec != "":
		specStr = opts.ConfigSpec
	}

	spec, err := ParseSpec(specStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log spec: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	// The inner handler is opened all the way up; the filtering
	// handler is the only gate.
	handlerOpts := &slog.HandlerOptions{Level: LevelTrace.ToSlog()}

	var inner slog.Handler
	switch opts.Format {
	case FormatJSON:
		inner = slog.NewJSONHandler(output, handlerOpts)
	default:
		inner = slog.NewTextHandler(output, handlerOpts)
	}

	return slog.New(NewFilteringHandler(inner, &spec)), nil
}

// FromEnv creates a logger configured solely from BPFD_LOG.
func FromEnv() (*slog.Logger, error) {
	return New(Options{EnvSpec: os.Getenv(EnvVar)})
}
