package executor

import (
	"net/http"
	"time"

	"github.com/aperture-cli/aperture/internal/config"
	"github.com/aperture-cli/aperture/internal/respcache"
	"github.com/aperture-cli/aperture/internal/retry"
)

// Context bundles the execution options of one call. The zero value
// performs a single live, uncached request without an idempotency key.
type Context struct {
	DryRun bool
	// IdempotencyKey is sent on every attempt when set.
	IdempotencyKey *string
	// AutoIdempotency generates a key when IdempotencyKey is nil.
	AutoIdempotency bool
	ResponseCache   *respcache.Config
	Retry           *retry.Policy
	// BaseURL overrides every other base URL source.
	BaseURL *string
	// Global supplies per-API base URL overrides and server variables.
	Global *config.Config
	// Environment selects one of the API's configured environment URLs.
	Environment string
	// ServerVars are "name=value" assignments for server URL variables.
	ServerVars []string
	// Timeout bounds the whole call including backoff waits; zero means none.
	Timeout time.Duration
}

// Result is a successful execution, a cache hit, or a dry-run preview.
type Result struct {
	Status         int         `json:"status,omitempty"`
	Headers        http.Header `json:"headers,omitempty"`
	Body           []byte      `json:"-"`
	Attempts       int         `json:"attempts"`
	FromCache      bool        `json:"from_cache"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Preview        *Preview    `json:"preview,omitempty"`
}

// Preview describes a request that was built but not sent. Credentials
// are masked.
type Preview struct {
	OperationID    string            `json:"operation_id"`
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	Body           *string           `json:"body,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Security       string            `json:"security,omitempty"`
	MaxAttempts    int               `json:"max_attempts"`
}
