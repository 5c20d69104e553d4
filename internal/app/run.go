// Package app - run.go executes one operation of a registered API.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aperture-cli/aperture/internal/config"
	"github.com/aperture-cli/aperture/internal/executor"
	"github.com/aperture-cli/aperture/internal/model"
	"github.com/aperture-cli/aperture/internal/respcache"
	"github.com/aperture-cli/aperture/internal/retry"
	"github.com/aperture-cli/aperture/internal/translate"
)

// RunInput is everything the `api` command collects for one invocation.
type RunInput struct {
	API       string
	Operation string
	// Params are "name=value" assignments.
	Params  []string
	Body    *string
	Headers []string

	DryRun          bool
	IdempotencyKey  string
	AutoIdempotency bool
	// Cache overrides response_cache.enabled when set.
	Cache    *bool
	CacheTTL time.Duration
	NoRetry  bool
	RetryMax int

	BaseURL     string
	Environment string
	ServerVars  []string
	Timeout     time.Duration

	// Transform is a JSONata expression applied to the decoded body.
	Transform    string
	ValidateBody bool
}

// RunOutput is the rendered result of an invocation.
type RunOutput struct {
	API            string            `json:"api"`
	Operation      string            `json:"operation"`
	Status         int               `json:"status,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           any               `json:"body,omitempty"`
	Attempts       int               `json:"attempts,omitempty"`
	FromCache      bool              `json:"from_cache,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	DryRun         *executor.Preview `json:"dry_run,omitempty"`
}

// NewExecutor returns an executor wired to the file-backed response cache
// under the config root. opts are applied last.
func (m *Manager) NewExecutor(cfg *config.Config, opts ...executor.Option) *executor.Executor {
	maxEntries := 0
	if cfg != nil {
		maxEntries = cfg.ResponseCache.MaxEntries
	}
	base := []executor.Option{
		executor.WithCache(m.ResponseCache(maxEntries)),
		executor.WithLogger(m.logger),
	}
	if cfg != nil {
		base = append(base, executor.WithMaxBody(cfg.Log.MaxBody))
	}
	return executor.New(append(base, opts...)...)
}

// ResponseCache returns the file-backed response cache under the config
// root, bounded to maxEntries.
func (m *Manager) ResponseCache(maxEntries int) *respcache.FileCache {
	return respcache.NewFileCache(m.fs, m.ResponseCacheDir(), maxEntries, nil)
}

// Run loads in.API, translates the invocation and executes it.
func (m *Manager) Run(ctx context.Context, exec *executor.Executor, in RunInput) (*RunOutput, error) {
	spec, err := m.LoadSpec(in.API)
	if err != nil {
		return nil, err
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		return nil, err
	}
	return runWith(ctx, exec, spec, cfg, in)
}

func runWith(ctx context.Context, exec *executor.Executor, spec *model.CachedSpec, cfg *config.Config, in RunInput) (*RunOutput, error) {
	params, err := translate.ParseAssignments("param", in.Params)
	if err != nil {
		return nil, err
	}
	call, err := translate.Translate(spec, translate.RawArgs{
		Operation: in.Operation,
		Params:    params,
		Body:      in.Body,
		Headers:   in.Headers,
	}, translate.Options{ValidateBody: in.ValidateBody})
	if err != nil {
		return nil, err
	}

	res, err := exec.Execute(ctx, spec, call, in.executionContext(cfg))
	if err != nil {
		return nil, err
	}

	out := &RunOutput{
		API:            spec.Name,
		Operation:      call.OperationID,
		Status:         res.Status,
		Attempts:       res.Attempts,
		FromCache:      res.FromCache,
		IdempotencyKey: res.IdempotencyKey,
		DryRun:         res.Preview,
	}
	if res.Preview != nil {
		return out, nil
	}
	if len(res.Headers) > 0 {
		out.Headers = make(map[string]string, len(res.Headers))
		for k, v := range res.Headers {
			out.Headers[k] = strings.Join(v, ", ")
		}
	}
	out.Body, err = ApplyTransform(in.Transform, DecodeBody(res.Body))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (in RunInput) executionContext(cfg *config.Config) *executor.Context {
	ectx := &executor.Context{
		DryRun:          in.DryRun,
		AutoIdempotency: in.AutoIdempotency,
		Global:          cfg,
		Environment:     in.Environment,
		ServerVars:      in.ServerVars,
		Timeout:         cfg.Timeout(),
	}
	if in.Timeout > 0 {
		ectx.Timeout = in.Timeout
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		ectx.IdempotencyKey = &key
	}
	if in.BaseURL != "" {
		u := in.BaseURL
		ectx.BaseURL = &u
	}

	policy := cfg.RetryPolicy()
	if in.RetryMax > 0 {
		policy.MaxAttempts = in.RetryMax
	}
	if in.NoRetry {
		policy = retry.NoRetry()
	}
	ectx.Retry = &policy

	cache := cfg.CacheConfig()
	if in.Cache != nil {
		cache.Enabled = *in.Cache
	}
	if in.CacheTTL > 0 {
		cache.TTL = in.CacheTTL
	}
	ectx.ResponseCache = &cache
	return ectx
}

// Render returns a human-friendly representation.
func (o RunOutput) Render() string {
	s := Styles
	var sb strings.Builder

	if p := o.DryRun; p != nil {
		sb.WriteString(s.Header.Render("Dry run"))
		sb.WriteString(" ")
		sb.WriteString(s.Dim.Render("(request not sent)"))
		sb.WriteString("\n\n")
		sb.WriteString(s.Method.Render(p.Method))
		sb.WriteString(p.URL)
		sb.WriteString("\n")
		names := make([]string, 0, len(p.Headers))
		for k := range p.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			sb.WriteString(s.Dim.Render(k + ": "))
			sb.WriteString(p.Headers[k])
			sb.WriteString("\n")
		}
		if p.Body != nil {
			sb.WriteString("\n")
			sb.WriteString(*p.Body)
			sb.WriteString("\n")
		}
		if p.MaxAttempts > 1 {
			sb.WriteString(s.Dim.Render(fmt.Sprintf("\nup to %d attempts", p.MaxAttempts)))
		}
		return strings.TrimSuffix(sb.String(), "\n")
	}

	status := fmt.Sprintf("%d", o.Status)
	sb.WriteString(s.Dim.Render("Status: "))
	sb.WriteString(s.Success.Render(status))
	if o.FromCache {
		sb.WriteString(s.Dim.Render(" (cached)"))
	} else if o.Attempts > 1 {
		sb.WriteString(s.Dim.Render(fmt.Sprintf(" (%d attempts)", o.Attempts)))
	}
	sb.WriteString("\n")

	if o.Body != nil {
		switch v := o.Body.(type) {
		case string:
			sb.WriteString(v)
		default:
			if j, err := json.MarshalIndent(v, "", "  "); err == nil {
				sb.WriteString(string(j))
			} else {
				sb.WriteString(fmt.Sprintf("%v", v))
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
