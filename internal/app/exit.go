package app

import (
	"encoding/json"
	"errors"

	"github.com/aperture-cli/aperture/internal/apperr"
)

// ExitResult lets CLI handlers control exit code + whether output goes to stderr.
// ExitResult is also used for successful output (Code: 0); the name
// reflects that it controls process exit, not that something went wrong.
type ExitResult struct {
	Code     int
	Message  string
	ToStderr bool
	// Structured marks JSON or YAML output, which may be highlighted.
	Structured bool
}

func (e ExitResult) Error() string   { return e.Message }
func (e ExitResult) ExitCode() int   { return e.Code }
func (e ExitResult) UseStderr() bool { return e.ToStderr }

// UsageExit creates an ExitResult for usage errors (code 2, stderr).
func UsageExit(message string) error {
	return ExitResult{Code: ExitUsage, Message: message, ToStderr: true}
}

// OKText creates a success ExitResult (code 0) with the given message to stdout.
func OKText(message string) error {
	return ExitResult{Code: 0, Message: message}
}

// Exit codes by error kind.
const (
	ExitFailure = 1
	ExitUsage   = 2
	ExitAuth    = 3
	ExitHTTP    = 4
)

// ErrorExit converts err into an ExitResult. Errors that already are
// ExitResults pass through. With format "json" the machine-readable form
// of an *apperr.Error is printed.
func ErrorExit(err error, format string) error {
	if err == nil {
		return nil
	}
	var exit ExitResult
	if errors.As(err, &exit) {
		return exit
	}

	code := ExitFailure
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.KindTranslation, apperr.KindConfig:
			code = ExitUsage
		case apperr.KindAuthResolution:
			code = ExitAuth
		case apperr.KindHTTPStatus:
			code = ExitHTTP
		}
		if format == "json" {
			if b, mErr := json.MarshalIndent(ae, "", "  "); mErr == nil {
				return ExitResult{Code: code, Message: string(b), ToStderr: true}
			}
		}
	}
	return ExitResult{Code: code, Message: Styles.Error.Render("Error: ") + err.Error(), ToStderr: true}
}
