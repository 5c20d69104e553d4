// Package retry decides whether a failed attempt is retried and how long to
// wait first. A Controller runs the attempts of one logical call strictly
// in sequence and keeps its state inspectable for tests.
package retry

import (
	"time"

	"github.com/aperture-cli/aperture/internal/apperr"
)

// Policy configures retries for a call.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int `validate:"gte=1,lte=10"`

	// InitialDelay is the delay before the first retry.
	// Default: 500ms
	InitialDelay time.Duration `validate:"gte=0"`

	// MaxDelay caps any single delay, including Retry-After.
	// Default: 30s
	MaxDelay time.Duration `validate:"gtefield=InitialDelay"`

	// Multiplier is the exponential growth factor.
	// Default: 2.0
	Multiplier float64 `validate:"gte=1"`

	// Jitter randomizes each delay by up to 25% either way.
	// Default: true
	Jitter bool
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NoRetry returns a policy that makes exactly one attempt.
func NoRetry() Policy {
	p := DefaultPolicy()
	p.MaxAttempts = 1
	return p
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	return apperr.ValidateStruct(p)
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	return p
}
