package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Outcome classifies one attempt.
type Outcome int

const (
	// Success is a 2xx response.
	Success Outcome = iota
	// Retryable is a transport failure or a 5xx response.
	Retryable
	// RateLimited is a 429 response.
	RateLimited
	// Terminal is any other failure; it is never retried.
	Terminal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case RateLimited:
		return "rate_limited"
	case Terminal:
		return "terminal"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Classify maps a response status or transport error to an Outcome.
// Cancellation or expiry of the call's own context is terminal.
func Classify(status int, err error) Outcome {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Terminal
		}
		return Retryable
	}
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status >= 500:
		return Retryable
	default:
		return Terminal
	}
}

// ParseRetryAfter parses a Retry-After header value given as delay seconds
// or an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
