package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newBatchCmd() *cobra.Command {
	var flags invocationFlags
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <api> <file>",
		Short: "Run many operations of one API from a file",
		Long: `Run the operations listed in a JSON or YAML batch file.

Each entry is either a command line or a structured invocation:

  operations:
    - command: getPet --param petId=1
    - name: create
      operation: createPet
      body: {name: Rex}
      idempotency_key: create-rex

Entries run concurrently, at most --concurrency at a time. A failing
entry does not stop the others; the exit code is non-zero when any
entry failed.

Examples:
  aperture batch petstore ./calls.yaml
  aperture batch petstore ./calls.json --concurrency 8 -F json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return app.UsageExit("--concurrency must be at least 1")
			}
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			file, err := app.LoadBatchFile(s.Manager.Fs(), args[1])
			if err != nil {
				return fail(cmd, err)
			}

			var base app.RunInput
			flags.apply(cmd.Flags(), &base)

			ctx, stop := interruptContext()
			defer stop()

			out, err := s.Manager.RunBatch(ctx, s.Manager.NewExecutor(s.Config), args[0], file, concurrency, base)
			if err != nil {
				return fail(cmd, err)
			}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultWithCode(out, format, outputPath, out.ExitCode())
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", app.DefaultBatchConcurrency, "maximum operations in flight")
	flags.register(cmd.Flags())

	return cmd
}
