package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newConfigListCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered APIs",
		Long: `List registered APIs with their version and command count.

Use --verbose to also show base URLs and skipped endpoints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			apis, err := s.Manager.ListSpecs()
			if err != nil {
				return fail(cmd, err)
			}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResult(app.SpecListOutput{APIs: apis, Verbose: verbose}, format, outputPath)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show base URLs and skipped endpoints")

	return cmd
}
