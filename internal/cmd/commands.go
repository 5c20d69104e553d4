package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newCommandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands <api>",
		Short: "List the operations of a registered API",
		Long: `List the callable operations of an API, grouped by tag.

Examples:
  aperture commands petstore
  aperture commands petstore -F json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			spec, err := s.Manager.LoadSpec(args[0])
			if err != nil {
				return fail(cmd, err)
			}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResult(app.BuildCommands(spec), format, outputPath)
		},
	}

	return cmd
}
