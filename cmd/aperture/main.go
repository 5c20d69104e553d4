// Command aperture calls OpenAPI-described HTTP APIs from the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/aperture-cli/aperture/internal/app"
	"github.com/aperture-cli/aperture/internal/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := cmd.NewRoot()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var exit app.ExitResult
	if !errors.As(err, &exit) {
		// Cobra's own errors: unknown command, bad flag, wrong arg count.
		fmt.Fprintln(os.Stderr, app.Styles.Error.Render("Error: ")+err.Error())
		return app.ExitUsage
	}
	if exit.Message != "" {
		out := os.Stdout
		if exit.ToStderr {
			out = os.Stderr
		}
		msg := exit.Message
		if exit.Structured && term.IsTerminal(int(out.Fd())) && os.Getenv("NO_COLOR") == "" {
			msg = app.Highlight(msg)
		}
		fmt.Fprintln(out, msg)
	}
	return exit.Code
}
