package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newConfigReinitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reinit [name]",
		Short: "Recompile cached specs from their source documents",
		Long: `Recompile one API, or every API when no name is given.

Caches are normally rebuilt on demand when their source changes; reinit
forces a rebuild regardless.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			names, err := s.Manager.Reinit(name)
			if err != nil {
				return fail(cmd, err)
			}
			result := struct {
				Recompiled []string `json:"recompiled"`
			}{Recompiled: names}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(result, format, outputPath, func() string {
				if len(names) == 0 {
					return app.Styles.Dim.Render("No APIs registered.")
				}
				return app.Styles.Success.Render("Recompiled ") + strings.Join(names, ", ")
			})
		},
	}

	return cmd
}
