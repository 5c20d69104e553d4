package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
	"github.com/aperture-cli/aperture/internal/config"
)

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective global configuration",
		Long: `Show the effective global configuration: config.toml merged with
built-in defaults and APERTURE_* environment overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			settings := s.Config.Settings()
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(settings, format, outputPath, func() string {
				b, err := app.FormatOutput(settings, app.OutputFormatYAML)
				if err != nil {
					return err.Error()
				}
				return app.Styles.Dim.Render("# "+config.Path(s.Manager.Root())) + "\n" + string(b)
			})
		},
	}

	return cmd
}
