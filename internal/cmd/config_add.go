package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newConfigAddCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "add <name> <file>",
		Short: "Register an OpenAPI 3.x document as an API",
		Long: `Register an OpenAPI 3.x document under a name.

The document is validated and compiled before anything is written.
Endpoints that cannot be called (unsupported body types, unknown
security) are skipped and reported.

Examples:
  aperture config add petstore ./petstore.yaml
  aperture config add petstore ./petstore-v2.yaml --force`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			result, err := s.Manager.AddSpecFile(args[0], args[1], force)
			if err != nil {
				return fail(cmd, err)
			}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResult(result, format, outputPath)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing API with the same name")

	return cmd
}
