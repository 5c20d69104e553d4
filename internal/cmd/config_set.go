package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aperture-cli/aperture/internal/app"
)

func newConfigSetURLCmd() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "set-url <api> <url>",
		Short: "Override the base URL of an API",
		Long: `Override the base URL of an API, globally or for one environment.

The environment is selected at call time with $APERTURE_ENV or --env.
An empty URL clears the override.

Examples:
  aperture config set-url petstore https://staging.example.com/v1 --env staging
  aperture config set-url petstore https://api.example.com/v1
  aperture config set-url petstore ""`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			if err := s.Manager.SetBaseURL(args[0], args[1], env); err != nil {
				return fail(cmd, err)
			}
			result := struct {
				API         string `json:"api"`
				URL         string `json:"url"`
				Environment string `json:"environment,omitempty"`
			}{API: args[0], URL: args[1], Environment: env}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(result, format, outputPath, func() string {
				scope := "base URL"
				if env != "" {
					scope = fmt.Sprintf("base URL for %s", env)
				}
				if args[1] == "" {
					return fmt.Sprintf("Cleared %s of %s", scope, args[0])
				}
				return fmt.Sprintf("Set %s of %s to %s", scope, args[0], args[1])
			})
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "environment the URL applies to")

	return cmd
}

func newConfigSetVarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-var <api> <name=value>",
		Short: "Set a default value for a server URL variable",
		Long: `Set a default for a variable in the API's server URL template.

Values given with --server-var at call time take precedence.

Examples:
  aperture config set-var petstore region=eu`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value, ok := strings.Cut(args[1], "=")
			if !ok || name == "" {
				return app.UsageExit(fmt.Sprintf("expected name=value, got %q", args[1]))
			}
			s, err := openSession()
			if err != nil {
				return fail(cmd, err)
			}
			if err := s.Manager.SetServerVariable(args[0], name, value); err != nil {
				return fail(cmd, err)
			}
			result := struct {
				API      string `json:"api"`
				Variable string `json:"variable"`
				Value    string `json:"value"`
			}{API: args[0], Variable: name, Value: value}
			format, outputPath := getOutputFlags(cmd)
			return app.OutputResultText(result, format, outputPath, func() string {
				return fmt.Sprintf("Set %s of %s to %s", name, args[0], value)
			})
		},
	}

	return cmd
}
