package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aperture-cli/aperture/internal/apperr"
)

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func noJitter() Policy {
	p := DefaultPolicy()
	p.Jitter = false
	return p
}

func scripted(outcomes ...Attempt) func(context.Context, int) Attempt {
	return func(_ context.Context, attempt int) Attempt {
		return outcomes[attempt-1]
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   Outcome
	}{
		{200, nil, Success},
		{204, nil, Success},
		{301, nil, Terminal},
		{400, nil, Terminal},
		{404, nil, Terminal},
		{429, nil, RateLimited},
		{500, nil, Retryable},
		{503, nil, Retryable},
		{0, errors.New("connection refused"), Retryable},
		{0, context.DeadlineExceeded, Terminal},
		{0, context.Canceled, Terminal},
	}
	for _, tt := range tests {
		if got := Classify(tt.status, tt.err); got != tt.want {
			t.Errorf("Classify(%d, %v) = %v, want %v", tt.status, tt.err, got, tt.want)
		}
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	c := NewController(noJitter(), http.MethodPost, "k1", sleeper)

	fail := errors.New("503")
	err := c.Run(context.Background(), scripted(
		Attempt{Outcome: Retryable, Err: fail},
		Attempt{Outcome: Retryable, Err: fail},
		Attempt{Outcome: Success},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.Attempts() != 3 {
		t.Errorf("Attempts = %d, want 3", c.Attempts())
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	got := c.Delays()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Delays = %v, want %v", got, want)
	}
	if len(sleeper.delays) != 2 {
		t.Errorf("sleeper called %d times", len(sleeper.delays))
	}
	if c.IdempotencyKey() != "k1" {
		t.Errorf("IdempotencyKey = %q", c.IdempotencyKey())
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	c := NewController(noJitter(), http.MethodGet, "", &recordingSleeper{})
	fail := errors.New("boom")
	calls := 0
	err := c.Run(context.Background(), func(context.Context, int) Attempt {
		calls++
		return Attempt{Outcome: Retryable, Err: fail}
	})
	if !errors.Is(err, fail) {
		t.Errorf("Run = %v, want last error", err)
	}
	if calls != 3 || c.Attempts() != 3 {
		t.Errorf("calls = %d, attempts = %d", calls, c.Attempts())
	}
	if !errors.Is(c.LastErr(), fail) || c.LastOutcome() != Retryable {
		t.Errorf("last = %v / %v", c.LastErr(), c.LastOutcome())
	}
}

func TestTerminalStopsImmediately(t *testing.T) {
	c := NewController(noJitter(), http.MethodGet, "", &recordingSleeper{})
	fail := errors.New("404")
	err := c.Run(context.Background(), scripted(Attempt{Outcome: Terminal, Err: fail}))
	if !errors.Is(err, fail) || c.Attempts() != 1 || len(c.Delays()) != 0 {
		t.Errorf("Run = %v, attempts = %d, delays = %v", err, c.Attempts(), c.Delays())
	}
}

func TestNonIdempotentWithoutKeyGetsOneAttempt(t *testing.T) {
	c := NewController(noJitter(), http.MethodPost, "", &recordingSleeper{})
	if c.MaxAttempts() != 1 {
		t.Fatalf("MaxAttempts = %d, want 1", c.MaxAttempts())
	}
	err := c.Run(context.Background(), scripted(Attempt{Outcome: Retryable, Err: errors.New("503")}))
	if err == nil || c.Attempts() != 1 {
		t.Errorf("Run = %v, attempts = %d", err, c.Attempts())
	}

	withKey := NewController(noJitter(), http.MethodPatch, "key", &recordingSleeper{})
	if withKey.MaxAttempts() != 3 {
		t.Errorf("with key MaxAttempts = %d, want 3", withKey.MaxAttempts())
	}
}

func TestRateLimitedHonorsRetryAfter(t *testing.T) {
	p := noJitter()
	p.MaxDelay = 5 * time.Second
	c := NewController(p, http.MethodGet, "", &recordingSleeper{})
	err := c.Run(context.Background(), scripted(
		Attempt{Outcome: RateLimited, RetryAfter: 2 * time.Second, Err: errors.New("429")},
		Attempt{Outcome: RateLimited, RetryAfter: time.Minute, Err: errors.New("429")},
		Attempt{Outcome: Success},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := c.Delays()
	if len(got) != 2 || got[0] != 2*time.Second || got[1] != 5*time.Second {
		t.Errorf("Delays = %v, want [2s 5s]", got)
	}
}

func TestJitterStaysInBounds(t *testing.T) {
	p := DefaultPolicy()
	p.MaxAttempts = 5
	c := NewController(p, http.MethodGet, "", &recordingSleeper{})
	_ = c.Run(context.Background(), func(context.Context, int) Attempt {
		return Attempt{Outcome: Retryable, Err: errors.New("x")}
	})
	base := p.InitialDelay
	for i, d := range c.Delays() {
		lo := time.Duration(float64(base) * (1 - jitterFactor))
		hi := time.Duration(float64(base) * (1 + jitterFactor))
		if hi > p.MaxDelay {
			hi = p.MaxDelay
		}
		if d < lo-time.Millisecond || d > hi+time.Millisecond {
			t.Errorf("delay %d = %v, want within [%v, %v]", i, d, lo, hi)
		}
		base = time.Duration(float64(base) * p.Multiplier)
	}
}

func TestCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := SleepFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	c := NewController(noJitter(), http.MethodGet, "", sleeper)
	err := c.Run(ctx, func(context.Context, int) Attempt {
		return Attempt{Outcome: Retryable, Err: errors.New("503")}
	})
	if !errors.Is(err, context.Canceled) || c.Attempts() != 1 {
		t.Errorf("Run = %v, attempts = %d", err, c.Attempts())
	}
}

func TestTimerSleeperRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := TimerSleeper.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep = %v", err)
	}
	if err := TimerSleeper.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep = %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseRetryAfter("3", now); got != 3*time.Second {
		t.Errorf("seconds = %v", got)
	}
	date := now.Add(10 * time.Second).Format(http.TimeFormat)
	if got := ParseRetryAfter(date, now); got != 10*time.Second {
		t.Errorf("date = %v", got)
	}
	for _, v := range []string{"", "soon", "-1", now.Add(-time.Hour).Format(http.TimeFormat)} {
		if got := ParseRetryAfter(v, now); got != 0 {
			t.Errorf("ParseRetryAfter(%q) = %v, want 0", v, got)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
	bad := DefaultPolicy()
	bad.MaxAttempts = 0
	if err := bad.Validate(); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("MaxAttempts=0: %v", err)
	}
	bad = DefaultPolicy()
	bad.MaxDelay = time.Millisecond
	if err := bad.Validate(); !apperr.Is(err, apperr.KindConfig) {
		t.Errorf("MaxDelay < InitialDelay: %v", err)
	}
}
