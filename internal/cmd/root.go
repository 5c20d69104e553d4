package cmd

import (
	"github.com/spf13/cobra"
)

// NewRoot builds the top-level `aperture` command.
//
// We keep errors/usage silent and let our main() decide how to print ExitResult vs generic errors.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "aperture",
		Short:         "aperture: call any OpenAPI-described HTTP API from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringP("output", "o", "", "write output to file (default: stdout)")
	root.PersistentFlags().StringP("format", "F", "", "output format: json|yaml|text|quiet")

	root.AddGroup(
		&cobra.Group{ID: "apis", Title: "register and inspect APIs"},
		&cobra.Group{ID: "call", Title: "call operations"},
	)

	configCmd := newConfigCmd()
	configCmd.GroupID = "apis"

	commandsCmd := newCommandsCmd()
	commandsCmd.GroupID = "apis"

	apiCmd := newAPICmd()
	apiCmd.GroupID = "call"

	batchCmd := newBatchCmd()
	batchCmd.GroupID = "call"

	root.AddCommand(
		configCmd,
		commandsCmd,
		apiCmd,
		batchCmd,
	)

	return root
}
