package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aperture-cli/aperture/internal/app"
	"github.com/aperture-cli/aperture/internal/config"
)

// invocationFlags are the execution flags shared by `api` and `batch`.
type invocationFlags struct {
	dryRun          bool
	autoIdempotency bool
	cache           bool
	cacheTTL        time.Duration
	noRetry         bool
	retryMax        int
	baseURL         string
	env             string
	serverVars      []string
	timeout         time.Duration
}

func (f *invocationFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the request instead of sending it")
	fs.BoolVar(&f.autoIdempotency, "auto-idempotency", false, "generate an Idempotency-Key when none is given")
	fs.BoolVar(&f.cache, "cache", false, "use the response cache (overrides response_cache.enabled)")
	fs.DurationVar(&f.cacheTTL, "cache-ttl", 0, "response cache TTL (e.g. 30s, 5m)")
	fs.BoolVar(&f.noRetry, "no-retry", false, "send at most one attempt")
	fs.IntVar(&f.retryMax, "retry-max", 0, "maximum attempts (overrides retry.max_attempts)")
	fs.StringVar(&f.baseURL, "base-url", "", "base URL for this call")
	fs.StringVar(&f.env, "env", os.Getenv(config.EnvEnvironment), "environment selecting a configured base URL")
	fs.StringArrayVar(&f.serverVars, "server-var", nil, "server URL variable as name=value (repeatable)")
	fs.DurationVar(&f.timeout, "timeout", 0, "overall timeout including retries (e.g. 10s)")
}

// apply copies the flags onto in. Only an explicitly given --cache
// overrides the configured default.
func (f *invocationFlags) apply(fs *pflag.FlagSet, in *app.RunInput) {
	in.DryRun = f.dryRun
	in.AutoIdempotency = f.autoIdempotency
	if fs.Changed("cache") {
		c := f.cache
		in.Cache = &c
	}
	in.CacheTTL = f.cacheTTL
	in.NoRetry = f.noRetry
	in.RetryMax = f.retryMax
	in.BaseURL = f.baseURL
	in.Environment = f.env
	in.ServerVars = f.serverVars
	in.Timeout = f.timeout
}

func newAPICmd() *cobra.Command {
	var flags invocationFlags
	var params []string
	var headers []string
	var body string
	var idempotencyKey string
	var transform string
	var validateBody bool

	cmd := &cobra.Command{
		Use:   "api <api> <operation>",
		Short: "Call one operation of a registered API",
		Long: `Call one operation of a registered API.

The operation is named by its operationId or its kebab-case command
name (see 'aperture commands <api>'). Parameters are given as
name=value; the location (path, query, header, cookie) comes from the
API description.

Credentials are read from the environment variables named by each
security scheme's x-aperture-secret extension.

GET, HEAD, OPTIONS, PUT and DELETE are retried on 5xx, 429 and network
errors. POST and PATCH are retried only with an idempotency key.

Examples:
  aperture api petstore getPet --param petId=42
  aperture api petstore create-pet --body '{"name":"Rex"}' --idempotency-key rex-1
  aperture api petstore listPets -p limit=5 --transform 'items.name'
  aperture api petstore getPet -p petId=42 --dry-run
  APERTURE_ENV=staging aperture api petstore listPets -F json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}

			in := app.RunInput{
				API:            args[0],
				Operation:      args[1],
				Params:         params,
				Headers:        headers,
				IdempotencyKey: idempotencyKey,
				Transform:      transform,
				ValidateBody:   validateBody,
			}
			if cmd.Flags().Changed("body") {
				in.Body = &body
			}
			flags.apply(cmd.Flags(), &in)

			ctx, stop := interruptContext()
			defer stop()

			out, err := s.Manager.Run(ctx, s.Manager.NewExecutor(s.Config), in)
			if err != nil {
				return fail(cmd, err)
			}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResult(out, format, outputPath)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as name=value, or location.name=value when a name is declared twice (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `extra header as "Name: value" (repeatable)`)
	cmd.Flags().StringVar(&body, "body", "", "request body")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value; enables retries for POST and PATCH")
	cmd.Flags().StringVar(&transform, "transform", "", "JSONata expression applied to the response body")
	cmd.Flags().BoolVar(&validateBody, "validate-body", false, "validate the request body against its JSON schema before sending")
	flags.register(cmd.Flags())

	return cmd
}
