package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aperture-cli/aperture/internal/model"
)

// toKebab converts an operation ID such as "listPetsByOwner" or
// "pets.list_all" into a command name like "list-pets-by-owner".
func toKebab(id string) string {
	runes := []rune(id)
	var b strings.Builder
	lastDash := true
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			acronymEnd := i > 0 && unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (prevLower || acronymEnd) && !lastDash {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// sanitizeID replaces characters not allowed in a derived operation ID.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// buildExamples produces invocation examples for a command: one with the
// required parameters and, when documented, one with the example body.
func buildExamples(api string, cmd model.CachedCommand) []model.CommandExample {
	base := fmt.Sprintf("aperture api %s %s", api, cmd.Name)
	var args []string
	for _, p := range cmd.Parameters {
		if p.Required {
			args = append(args, fmt.Sprintf("--param %s=<%s>", p.Name, p.Name))
		}
	}
	line := strings.TrimSpace(base + " " + strings.Join(args, " "))

	examples := []model.CommandExample{}
	desc := "Invoke " + cmd.OperationID
	if cmd.Summary != nil {
		desc = *cmd.Summary
	}
	examples = append(examples, model.CommandExample{
		Description: desc,
		CommandLine: line,
	})

	if cmd.RequestBody != nil && cmd.RequestBody.Example != nil {
		explanation := "Sends the documented example as the " + cmd.RequestBody.ContentType + " body"
		examples = append(examples, model.CommandExample{
			Description: "With example request body",
			CommandLine: fmt.Sprintf("%s --body '%s'", line, *cmd.RequestBody.Example),
			Explanation: &explanation,
		})
	}
	return examples
}
