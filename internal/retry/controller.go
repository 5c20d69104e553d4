package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aperture-cli/aperture/internal/model"
)

// jitterFactor is the randomization applied to each delay when Policy.Jitter is set.
const jitterFactor = 0.25

// Sleeper waits between attempts. Sleep returns early with ctx's error
// when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(ctx context.Context, d time.Duration) error

func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleepFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// Attempt is the result of one try as reported to the Controller.
type Attempt struct {
	Outcome Outcome
	// RetryAfter is the server-requested delay for RateLimited outcomes.
	RetryAfter time.Duration
	Err        error
}

// Controller sequences the attempts of one logical call.
type Controller struct {
	policy         Policy
	sleeper        Sleeper
	idempotencyKey string
	maxAttempts    int
	backoff        *backoff.ExponentialBackOff

	attempts int
	lastErr  error
	last     Outcome
	delays   []time.Duration

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, outcome Outcome, delay time.Duration)
}

// NewController returns a controller for a call with the given method and
// idempotency key. A non-idempotent method without a key gets a single
// attempt so a mutation is never sent twice.
func NewController(policy Policy, method, idempotencyKey string, sleeper Sleeper) *Controller {
	policy = policy.withDefaults()
	if sleeper == nil {
		sleeper = TimerSleeper
	}

	maxAttempts := policy.MaxAttempts
	if !model.IsIdempotentMethod(method) && idempotencyKey == "" {
		maxAttempts = 1
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     policy.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          policy.Multiplier,
		MaxInterval:         policy.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if policy.Jitter {
		b.RandomizationFactor = jitterFactor
	}
	b.Reset()

	return &Controller{
		policy:         policy,
		sleeper:        sleeper,
		idempotencyKey: idempotencyKey,
		maxAttempts:    maxAttempts,
		backoff:        b,
	}
}

// Run calls try until it succeeds, fails terminally or the attempt budget
// is spent. It returns nil on success and otherwise the error of the last
// attempt, or ctx's error if the call was cancelled while waiting.
func (c *Controller) Run(ctx context.Context, try func(ctx context.Context, attempt int) Attempt) error {
	for {
		if err := ctx.Err(); err != nil {
			c.lastErr = err
			c.last = Terminal
			return err
		}

		c.attempts++
		res := try(ctx, c.attempts)
		c.last = res.Outcome
		c.lastErr = res.Err

		switch res.Outcome {
		case Success:
			return nil
		case Terminal:
			return res.Err
		case Retryable, RateLimited:
		}

		if c.attempts >= c.maxAttempts {
			return res.Err
		}

		delay := c.nextDelay(res)
		c.delays = append(c.delays, delay)
		if c.OnRetry != nil {
			c.OnRetry(c.attempts, res.Outcome, delay)
		}
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			c.lastErr = err
			c.last = Terminal
			return err
		}
	}
}

func (c *Controller) nextDelay(res Attempt) time.Duration {
	delay := c.backoff.NextBackOff()
	if res.Outcome == RateLimited && res.RetryAfter > 0 {
		delay = res.RetryAfter
	}
	if delay > c.policy.MaxDelay {
		delay = c.policy.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Attempts is the number of attempts made so far.
func (c *Controller) Attempts() int { return c.attempts }

// MaxAttempts is the attempt budget for this call.
func (c *Controller) MaxAttempts() int { return c.maxAttempts }

// LastErr is the error of the most recent attempt.
func (c *Controller) LastErr() error { return c.lastErr }

// LastOutcome is the classification of the most recent attempt.
func (c *Controller) LastOutcome() Outcome { return c.last }

// Delays are the waits taken between attempts, in order.
func (c *Controller) Delays() []time.Duration {
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

// IdempotencyKey is the key sent with every attempt, or empty.
func (c *Controller) IdempotencyKey() string { return c.idempotencyKey }
