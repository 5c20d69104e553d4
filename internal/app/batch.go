// Package app - batch.go runs many invocations of one API from a file.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/executor"
)

// DefaultBatchConcurrency bounds concurrent invocations in a batch.
const DefaultBatchConcurrency = 4

// BatchFile is the on-disk batch format (JSON or YAML).
//
//	operations:
//	  - command: getPet --param petId=1
//	  - operation: createPet
//	    body: {name: Rex}
//	    idempotency_key: create-rex
type BatchFile struct {
	Operations []BatchOperation `json:"operations" yaml:"operations"`
}

// BatchOperation is one invocation. Command, when set, is a shell-style
// line "<operation> [flags]" and takes precedence over the other fields.
type BatchOperation struct {
	Name           string            `json:"name,omitempty" yaml:"name,omitempty"`
	Command        string            `json:"command,omitempty" yaml:"command,omitempty"`
	Operation      string            `json:"operation,omitempty" yaml:"operation,omitempty"`
	Params         map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Body           any               `json:"body,omitempty" yaml:"body,omitempty"`
	Headers        []string          `json:"headers,omitempty" yaml:"headers,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" yaml:"idempotency_key,omitempty"`
	DryRun         bool              `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// LoadBatchFile reads a batch file. Files ending in .json are parsed as
// JSON; everything else as YAML.
func LoadBatchFile(fs afero.Fs, path string) (*BatchFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err, "read %s", path)
	}
	return ParseBatchFile(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseBatchFile decodes batch file content.
func ParseBatchFile(data []byte, isJSON bool) (*BatchFile, error) {
	var f BatchFile
	var err error
	if isJSON {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParse, err, "parse batch file")
	}
	if len(f.Operations) == 0 {
		return nil, apperr.New(apperr.KindConfig, "batch file has no operations")
	}
	return &f, nil
}

// runInput merges op over base.
func (op BatchOperation) runInput(base RunInput) (RunInput, error) {
	in := base
	in.Params = nil
	in.Headers = nil
	in.Body = nil

	if op.Command != "" {
		if err := parseBatchCommand(op.Command, &in); err != nil {
			return RunInput{}, err
		}
		return in, nil
	}

	if op.Operation == "" {
		return RunInput{}, apperr.Translation("operation", "batch entry has neither command nor operation")
	}
	in.Operation = op.Operation
	for _, k := range sortedStringKeys(op.Params) {
		in.Params = append(in.Params, k+"="+op.Params[k])
	}
	in.Headers = op.Headers
	if op.IdempotencyKey != "" {
		in.IdempotencyKey = op.IdempotencyKey
	}
	if op.DryRun {
		in.DryRun = true
	}
	if op.Body != nil {
		var body string
		if s, ok := op.Body.(string); ok {
			body = s
		} else {
			b, err := json.Marshal(op.Body)
			if err != nil {
				return RunInput{}, apperr.Translation("body", "batch body is not JSON-encodable: %v", err)
			}
			body = string(b)
		}
		in.Body = &body
	}
	return in, nil
}

// parseBatchCommand applies a shell-style command line to in.
func parseBatchCommand(line string, in *RunInput) error {
	args, err := shlex.Split(line)
	if err != nil {
		return apperr.Translation("command", "cannot split %q: %v", line, err)
	}

	fs := pflag.NewFlagSet("batch", pflag.ContinueOnError)
	fs.SetOutput(nopWriter{})
	params := fs.StringArrayP("param", "p", nil, "")
	headers := fs.StringArrayP("header", "H", nil, "")
	serverVars := fs.StringArray("server-var", nil, "")
	body := fs.String("body", "", "")
	key := fs.String("idempotency-key", in.IdempotencyKey, "")
	dryRun := fs.Bool("dry-run", in.DryRun, "")
	if err := fs.Parse(args); err != nil {
		return apperr.Translation("command", "%q: %v", line, err)
	}
	if fs.NArg() != 1 {
		return apperr.Translation("command", "%q: expected exactly one operation, got %d", line, fs.NArg())
	}

	in.Operation = fs.Arg(0)
	in.Params = *params
	in.Headers = *headers
	if len(*serverVars) > 0 {
		in.ServerVars = append(append([]string(nil), in.ServerVars...), *serverVars...)
	}
	if fs.Changed("body") {
		b := *body
		in.Body = &b
	}
	in.IdempotencyKey = *key
	in.DryRun = *dryRun
	return nil
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// BatchResult is the outcome of one batch entry.
type BatchResult struct {
	Index     int           `json:"index"`
	Name      string        `json:"name,omitempty"`
	Operation string        `json:"operation,omitempty"`
	Output    *RunOutput    `json:"output,omitempty"`
	Error     *apperr.Error `json:"error,omitempty"`
}

// BatchOutput collects the results of a batch in file order.
type BatchOutput struct {
	API       string        `json:"api"`
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// RunBatch runs every operation of file against api with at most
// concurrency invocations in flight. A failing entry does not stop the
// others; its error is recorded in its result.
func (m *Manager) RunBatch(ctx context.Context, exec *executor.Executor, api string, file *BatchFile, concurrency int, base RunInput) (*BatchOutput, error) {
	spec, err := m.LoadSpec(api)
	if err != nil {
		return nil, err
	}
	cfg, err := m.LoadConfig()
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(file.Operations))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, op := range file.Operations {
		i, op := i, op
		g.Go(func() error {
			r := BatchResult{Index: i, Name: op.Name}
			in, err := op.runInput(base)
			if err == nil {
				in.API = api
				r.Operation = in.Operation
				r.Output, err = runWith(ctx, exec, spec, cfg, in)
			}
			if err != nil {
				r.Error = asAppError(err)
				m.logger.Warn("batch entry failed", "index", i, "operation", r.Operation, "err", err)
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchOutput{API: api, Results: results}
	for _, r := range results {
		if r.Error != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	return out, nil
}

func asAppError(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Wrap(apperr.KindIO, err, "batch entry failed")
}

// Render returns a human-friendly representation.
func (o BatchOutput) Render() string {
	s := Styles
	var sb strings.Builder
	for _, r := range o.Results {
		label := r.Operation
		if r.Name != "" {
			label = r.Name + " (" + r.Operation + ")"
		}
		sb.WriteString(s.Bullet.Render(fmt.Sprintf("#%d ", r.Index+1)))
		sb.WriteString(s.Key.Render(label))
		sb.WriteString("  ")
		switch {
		case r.Error != nil:
			sb.WriteString(s.Error.Render("failed: "))
			sb.WriteString(r.Error.Error())
		case r.Output != nil && r.Output.DryRun != nil:
			sb.WriteString(s.Dim.Render("dry run: " + r.Output.DryRun.Method + " " + r.Output.DryRun.URL))
		case r.Output != nil:
			sb.WriteString(s.Success.Render(fmt.Sprintf("%d", r.Output.Status)))
			if r.Output.FromCache {
				sb.WriteString(s.Dim.Render(" (cached)"))
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%d succeeded, %d failed", o.Succeeded, o.Failed))
	return sb.String()
}

// ExitCode is non-zero when any entry failed.
func (o BatchOutput) ExitCode() int {
	if o.Failed > 0 {
		return ExitFailure
	}
	return 0
}
