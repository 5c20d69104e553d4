package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newConfigRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Unregister an API",
		Long: `Remove an API's source document, compiled cache and per-API settings.

Examples:
  aperture config remove petstore`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			if err := s.Manager.RemoveSpec(args[0]); err != nil {
				return fail(cmd, err)
			}
			result := struct {
				Removed string `json:"removed"`
			}{Removed: args[0]}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(result, format, outputPath, func() string {
				return app.Styles.Success.Render("Removed ") + app.Styles.Key.Render(args[0])
			})
		},
	}

	return cmd
}
