package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
	"github.com/aperture-cli/aperture/internal/apperr"
)

func newConfigClearCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every stored response from the response cache",
		Long: `Remove every stored response from the response cache.

Compiled spec caches are untouched; use reinit to rebuild those.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			n, err := s.Manager.ResponseCache(s.Config.ResponseCache.MaxEntries).Clear()
			if err != nil {
				return fail(cmd, apperr.Wrap(apperr.KindIO, err, "clear response cache"))
			}
			result := struct {
				Removed int `json:"removed"`
			}{Removed: n}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(result, format, outputPath, func() string {
				return app.Styles.Success.Render("Cleared ") + fmt.Sprintf("%d cached responses", n)
			})
		},
	}

	return cmd
}
