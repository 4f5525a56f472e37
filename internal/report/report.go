// Package report persists execution summaries.
//
// The encoding follows the file extension: ".yaml" and ".yml" write YAML,
// everything else writes indented JSON. Writes are atomic, so a reader never
// sees a half-written report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"devinflow/internal/runner"
)

// Format is a report encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyPath is returned when no report path is given.
var ErrEmptyPath = errors.New("report path is required")

// FormatForPath picks the encoding from a file name.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes a summary in the given format.
func Marshal(summary *runner.ExecutionSummary, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(summary)
	case FormatJSON:
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// Write stores summary at path, creating parent directories.
func Write(path string, summary *runner.ExecutionSummary) error {
	if path == "" {
		return ErrEmptyPath
	}

	data, err := Marshal(summary, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Load reads a summary written by [Write].
func Load(path string) (*runner.ExecutionSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var summary runner.ExecutionSummary
	switch FormatForPath(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &summary)
	default:
		err = json.Unmarshal(data, &summary)
	}
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &summary, nil
}
