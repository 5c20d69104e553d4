// Package logging builds the structured loggers used across aperture.
package logging

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultMaxBody is the default number of body bytes included in debug logs.
const DefaultMaxBody = 1000

// New returns a logger writing to w at the named level ("debug", "info",
// "warn", "error"). An unknown level falls back to warn.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = log.WarnLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "aperture",
		Level:  lvl,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// TruncateBody shortens b to at most max bytes for logging.
func TruncateBody(b []byte, max int) string {
	if max < 0 || len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "... (" + strconv.Itoa(len(b)-max) + " more bytes)"
}
