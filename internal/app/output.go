// Package app - output.go renders command results as text, JSON or YAML,
// to stdout or to a file.
package app

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aperture-cli/aperture/internal/fsutil"
)

// OutputFormat represents a supported output format.
type OutputFormat string

const (
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatText OutputFormat = "text"

	// formatQuiet suppresses output; only the exit code is reported.
	formatQuiet = "quiet"
)

// ParseOutputFormat parses a --format value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OutputFormatText, nil
	case "json":
		return OutputFormatJSON, nil
	case "yaml", "yml":
		return OutputFormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

// FormatOutput serializes v as indented JSON or as YAML. YAML goes through
// the JSON form first so json tags decide key names and omitted fields.
func FormatOutput(v any, format OutputFormat) ([]byte, error) {
	switch format {
	case OutputFormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case OutputFormatYAML:
		normalized, err := NormalizeJSON(v)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(normalized)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Renderable is implemented by results with a human-friendly form.
type Renderable interface {
	Render() string
}

// fileFormat picks the format for -o/--output: an explicit structured
// --format wins, then the file extension, then JSON.
func fileFormat(path, format string) OutputFormat {
	if f, err := ParseOutputFormat(format); err == nil && f != OutputFormatText {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return OutputFormatYAML
	case ".txt":
		return OutputFormatText
	default:
		return OutputFormatJSON
	}
}

// encode produces the bytes for v in format.
func encode(v any, format OutputFormat, textFn func() string) ([]byte, error) {
	if format != OutputFormatText {
		return FormatOutput(v, format)
	}
	switch {
	case textFn != nil:
		return []byte(strings.TrimRight(textFn(), "\n")), nil
	case isRenderable(v):
		return []byte(v.(Renderable).Render()), nil
	default:
		return FormatOutput(v, OutputFormatJSON)
	}
}

func isRenderable(v any) bool {
	_, ok := v.(Renderable)
	return ok
}

// emit is the shared implementation behind the Output* helpers.
func emit(v any, format, outputPath string, code int, textFn func() string) error {
	if format == formatQuiet {
		return ExitResult{Code: code}
	}

	if outputPath != "" {
		b, err := encode(v, fileFormat(outputPath, format), textFn)
		if err != nil {
			return err
		}
		if err := fsutil.AtomicWriteFile(fsutil.OS(), outputPath, b, fsutil.FilePerm); err != nil {
			return ExitResult{Code: ExitFailure, Message: err.Error(), ToStderr: true}
		}
		return ExitResult{Code: code, Message: "Wrote " + outputPath}
	}

	f, err := ParseOutputFormat(format)
	if err != nil {
		return UsageExit(err.Error())
	}
	b, err := encode(v, f, textFn)
	if err != nil {
		return err
	}
	return ExitResult{Code: code, Message: string(b), Structured: f != OutputFormatText}
}

// OutputResult prints v in the --format given, or writes it to outputPath.
func OutputResult(v any, format string, outputPath string) error {
	return emit(v, format, outputPath, 0, nil)
}

// OutputResultWithCode is like OutputResult but exits with code. Batch runs
// use it to report partial failure while still printing every result.
func OutputResultWithCode(v any, format string, outputPath string, code int) error {
	return emit(v, format, outputPath, code, nil)
}

// OutputResultText is like OutputResult with an explicit text rendering.
func OutputResultText(v any, format string, outputPath string, textFn func() string) error {
	return emit(v, format, outputPath, 0, textFn)
}
