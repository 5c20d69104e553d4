// Package executor turns a translated OperationCall into an authenticated
// HTTP exchange. It builds the request, resolves credentials, honours dry
// runs, consults the response cache and dispatches through the retry
// controller.
package executor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/logging"
	"github.com/aperture-cli/aperture/internal/model"
	"github.com/aperture-cli/aperture/internal/respcache"
	"github.com/aperture-cli/aperture/internal/retry"
	"github.com/aperture-cli/aperture/internal/security"
	"github.com/aperture-cli/aperture/internal/translate"
)

// HTTPDoer sends a request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Executor runs operation calls. It is safe for concurrent use; the only
// shared state is the response cache.
type Executor struct {
	http     HTTPDoer
	lookup   security.CredentialLookup
	cache    respcache.Cache
	sleeper  retry.Sleeper
	logger   *log.Logger
	now      respcache.Clock
	maxBody  int
	cacheMax int
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the transport.
func WithHTTPClient(d HTTPDoer) Option { return func(e *Executor) { e.http = d } }

// WithCredentialLookup sets where secrets are read from.
func WithCredentialLookup(l security.CredentialLookup) Option {
	return func(e *Executor) { e.lookup = l }
}

// WithCache sets the response cache.
func WithCache(c respcache.Cache) Option { return func(e *Executor) { e.cache = c } }

// WithCacheMaxEntries bounds the default in-memory cache. It has no effect
// together with WithCache.
func WithCacheMaxEntries(n int) Option { return func(e *Executor) { e.cacheMax = n } }

// WithSleeper sets how the executor waits between attempts.
func WithSleeper(s retry.Sleeper) Option { return func(e *Executor) { e.sleeper = s } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithClock sets the time source.
func WithClock(c respcache.Clock) Option { return func(e *Executor) { e.now = c } }

// WithMaxBody bounds the body bytes written to debug logs.
func WithMaxBody(n int) Option { return func(e *Executor) { e.maxBody = n } }

// New returns an executor. Defaults: a plain http.Client, environment
// credentials, an in-memory response cache, real timers, a discarding
// logger.
func New(opts ...Option) *Executor {
	e := &Executor{
		http:    &http.Client{},
		lookup:  security.EnvLookup,
		sleeper: retry.TimerSleeper,
		logger:  logging.Discard(),
		now:     time.Now,
		maxBody: logging.DefaultMaxBody,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = respcache.NewMemoryCache(e.cacheMax, e.now)
	}
	return e
}

// run tracks the state of one Execute call.
type run struct {
	e     *Executor
	op    string
	state State
}

func (r *run) to(s State, keyvals ...any) {
	r.e.logger.Debug("transition", append([]any{"operation", r.op, "from", r.state, "to", s}, keyvals...)...)
	r.state = s
}

// Execute runs call against spec. A nil ectx behaves like the zero Context.
// Errors are *apperr.Error values.
func (e *Executor) Execute(ctx context.Context, spec *model.CachedSpec, call *model.OperationCall, ectx *Context) (*Result, error) {
	if ectx == nil {
		ectx = &Context{}
	}
	if call == nil {
		return nil, apperr.Translation("operation", "no operation call")
	}
	cmd, ok := spec.CommandByOperationID(call.OperationID)
	if !ok {
		return nil, apperr.Translation("operation", "unknown operation %q", call.OperationID)
	}
	r := &run{e: e, op: cmd.OperationID, state: Idle}

	idemKey := idempotencyKey(ectx)

	baseURL, err := resolveBaseURL(spec, ectx)
	if err != nil {
		return nil, err
	}
	req, err := buildRequest(ctx, baseURL, cmd, call, idemKey)
	if err != nil {
		return nil, err
	}
	r.to(RequestBuilt, "method", req.Method, "url", req.URL.String())

	cred, err := security.ResolveCommand(cmd, spec.SecuritySchemes, e.lookup)
	if err != nil {
		r.to(Failed, "error", err)
		return nil, err
	}
	policy := retry.NoRetry()
	if ectx.Retry != nil {
		policy = *ectx.Retry
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	ctrl := retry.NewController(policy, cmd.Method, idemKey, e.sleeper)
	r.to(AuthResolved, "scheme", schemeName(cred))

	if ectx.DryRun {
		preview := previewOf(cmd, req, call, cred, idemKey, ctrl.MaxAttempts())
		r.to(DryRunPreview)
		r.to(Rendered)
		return &Result{Preview: preview, IdempotencyKey: idemKey}, nil
	}
	cred.Apply(req)

	var (
		cacheCfg respcache.Config
		cacheKey string
	)
	if ectx.ResponseCache != nil && ectx.ResponseCache.Eligible(cmd, idemKey) {
		cacheCfg = *ectx.ResponseCache
		cacheKey, err = respcache.Key(respcache.KeyInput{API: spec.Name, BaseURL: baseURL, Call: call, IdempotencyKey: idemKey})
		if err != nil {
			e.logger.Warn("response cache key failed", "operation", cmd.OperationID, "err", err)
			cacheKey = ""
		}
	}
	if cacheKey != "" {
		if entry, ok := e.cache.Get(ctx, cacheKey); ok {
			e.logger.Debug("response cache hit", "operation", cmd.OperationID, "status", entry.Status)
			r.to(Rendered, "from_cache", true)
			return &Result{
				Status:         entry.Status,
				Headers:        entry.Headers.Clone(),
				Body:           entry.Body,
				FromCache:      true,
				IdempotencyKey: idemKey,
			}, nil
		}
	}

	if ectx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ectx.Timeout)
		defer cancel()
	}

	if call.Body != nil {
		e.logger.Debug("request body", "operation", cmd.OperationID, "body", logging.TruncateBody([]byte(*call.Body), e.maxBody))
	}

	var resp *Result
	ctrl.OnRetry = func(attempt int, outcome retry.Outcome, delay time.Duration) {
		r.to(Retrying, "attempt", attempt, "outcome", outcome, "delay", delay)
	}
	runErr := ctrl.Run(ctx, func(ctx context.Context, attempt int) retry.Attempt {
		r.to(Dispatched, "attempt", attempt)
		res, a := e.dispatch(ctx, req)
		if a.Outcome == retry.Success {
			resp = res
		}
		return a
	})
	if runErr != nil {
		err := finalError(ctx, runErr, ctrl.Attempts(), ectx.Timeout)
		r.to(Failed, "attempts", ctrl.Attempts(), "error", err)
		return nil, err
	}
	resp.Attempts = ctrl.Attempts()
	resp.IdempotencyKey = idemKey
	r.to(Succeeded, "status", resp.Status, "attempts", resp.Attempts)

	if cacheKey != "" && respcache.Storable(resp.Status) {
		entry := &respcache.Entry{Status: resp.Status, Headers: resp.Headers.Clone(), Body: resp.Body}
		if err := e.cache.Set(ctx, cacheKey, entry, cacheCfg.EffectiveTTL()); err != nil {
			e.logger.Warn("response cache write failed", "operation", cmd.OperationID, "err", err)
		} else {
			r.to(CacheWritten)
		}
	}
	r.to(Rendered)
	return resp, nil
}

// dispatch sends one attempt and classifies it.
func (e *Executor) dispatch(ctx context.Context, req *http.Request) (*Result, retry.Attempt) {
	attemptReq, err := attemptRequest(ctx, req)
	if err != nil {
		return nil, retry.Attempt{Outcome: retry.Terminal, Err: apperr.Wrap(apperr.KindIO, err, "rewind request body")}
	}
	httpResp, err := e.http.Do(attemptReq)
	if err != nil {
		return nil, retry.Attempt{
			Outcome: retry.Classify(0, err),
			Err:     apperr.Wrap(apperr.KindNetwork, err, "%s %s", req.Method, req.URL.Redacted()),
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, retry.Attempt{
			Outcome: retry.Classify(0, err),
			Err:     apperr.Wrap(apperr.KindNetwork, err, "read response"),
		}
	}
	e.logger.Debug("response", "status", httpResp.StatusCode, "body", logging.TruncateBody(body, e.maxBody))

	outcome := retry.Classify(httpResp.StatusCode, nil)
	if outcome == retry.Success {
		return &Result{Status: httpResp.StatusCode, Headers: httpResp.Header, Body: body}, retry.Attempt{Outcome: outcome}
	}
	a := retry.Attempt{
		Outcome: outcome,
		Err: &apperr.Error{
			Kind:    apperr.KindHTTPStatus,
			Message: "request failed with status " + httpResp.Status,
			Status:  httpResp.StatusCode,
			Body:    string(body),
		},
	}
	if outcome == retry.RateLimited {
		a.RetryAfter = retry.ParseRetryAfter(httpResp.Header.Get("Retry-After"), e.now())
	}
	return nil, a
}

// finalError stamps the attempt count on the last error and maps an
// expired call deadline to KindTimeout.
func finalError(ctx context.Context, err error, attempts int, timeout time.Duration) error {
	if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &apperr.Error{
			Kind:     apperr.KindTimeout,
			Message:  "call did not complete within " + timeout.String(),
			Attempts: attempts,
			Err:      err,
		}
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		out := *ae
		out.Attempts = attempts
		return &out
	}
	return &apperr.Error{Kind: apperr.KindNetwork, Message: "request aborted", Attempts: attempts, Err: err}
}

func idempotencyKey(ectx *Context) string {
	if ectx.IdempotencyKey != nil {
		return *ectx.IdempotencyKey
	}
	if ectx.AutoIdempotency {
		return uuid.NewString()
	}
	return ""
}

func resolveBaseURL(spec *model.CachedSpec, ectx *Context) (string, error) {
	in := translate.BaseURLInput{
		Environment:  ectx.Environment,
		VariableArgs: ectx.ServerVars,
	}
	if ectx.BaseURL != nil {
		in.Override = *ectx.BaseURL
	}
	if ectx.Global != nil {
		api := ectx.Global.API(spec.Name)
		in.EnvironmentURLs = api.EnvironmentURLs
		in.ConfigOverride = api.BaseURLOverride
		in.ConfigVariables = api.ServerVariables
	}
	return translate.ResolveBaseURL(spec, in)
}

func previewOf(cmd *model.CachedCommand, req *http.Request, call *model.OperationCall, cred *security.Credential, idemKey string, maxAttempts int) *Preview {
	shown := req.Clone(context.Background())
	if cred != nil {
		masked := *cred
		masked.Value = cred.Masked()
		masked.Apply(shown)
	}
	return &Preview{
		OperationID:    cmd.OperationID,
		Method:         shown.Method,
		URL:            shown.URL.String(),
		Headers:        flattenHeaders(shown.Header),
		Body:           call.Body,
		IdempotencyKey: idemKey,
		Security:       schemeName(cred),
		MaxAttempts:    maxAttempts,
	}
}

func schemeName(cred *security.Credential) string {
	if cred == nil {
		return ""
	}
	return cred.Scheme
}
