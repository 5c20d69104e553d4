// Package app - render.go builds the listing outputs: registered APIs and
// the commands of one API.
package app

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aperture-cli/aperture/internal/model"
)

var titleCaser = cases.Title(language.English)

// untagged is the group for commands without tags.
const untagged = "default"

// CommandSummary is one command in a listing.
type CommandSummary struct {
	Name        string `json:"name"`
	OperationID string `json:"operation_id"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Summary     string `json:"summary,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"`
}

// CommandGroup is the commands sharing a tag.
type CommandGroup struct {
	Tag      string           `json:"tag"`
	Commands []CommandSummary `json:"commands"`
}

// CommandsOutput lists an API's commands grouped by tag.
type CommandsOutput struct {
	API     string         `json:"api"`
	Version string         `json:"version"`
	Groups  []CommandGroup `json:"groups"`
}

// BuildCommands groups the commands of spec by their first tag. Groups
// are sorted by tag, commands by name.
func BuildCommands(spec *model.CachedSpec) CommandsOutput {
	byTag := map[string][]CommandSummary{}
	for _, c := range spec.Commands {
		tag := untagged
		if len(c.Tags) > 0 {
			tag = c.Tags[0]
		}
		s := CommandSummary{
			Name:        c.Name,
			OperationID: c.OperationID,
			Method:      c.Method,
			Path:        c.Path,
			Deprecated:  c.Deprecated,
		}
		if c.Summary != nil {
			s.Summary = *c.Summary
		}
		byTag[tag] = append(byTag[tag], s)
	}

	out := CommandsOutput{API: spec.Name, Version: spec.Version, Groups: []CommandGroup{}}
	for _, tag := range sortedKeysOf(byTag) {
		cmds := byTag[tag]
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		out.Groups = append(out.Groups, CommandGroup{Tag: tag, Commands: cmds})
	}
	return out
}

// Render returns a human-friendly representation.
func (o CommandsOutput) Render() string {
	s := Styles
	var sb strings.Builder
	sb.WriteString(s.Header.Render(o.API))
	if o.Version != "" {
		sb.WriteString(s.Dim.Render(" v" + o.Version))
	}
	sb.WriteString("\n")
	for _, g := range o.Groups {
		sb.WriteString("\n")
		sb.WriteString(s.Header.Render(titleCaser.String(g.Tag)))
		sb.WriteString("\n")
		for _, c := range g.Commands {
			sb.WriteString("  ")
			sb.WriteString(s.Method.Render(c.Method))
			sb.WriteString(s.Key.Render(c.OperationID))
			sb.WriteString(s.Dim.Render("  " + c.Path))
			if c.Deprecated {
				sb.WriteString(s.Warning.Render("  (deprecated)"))
			}
			if c.Summary != "" {
				sb.WriteString("\n         ")
				sb.WriteString(s.Dim.Render(c.Summary))
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// SpecListOutput is the result of `config list`.
type SpecListOutput struct {
	APIs    []SpecSummary `json:"apis"`
	Verbose bool          `json:"-"`
}

// Render returns a human-friendly representation.
func (o SpecListOutput) Render() string {
	s := Styles
	if len(o.APIs) == 0 {
		return s.Dim.Render("No APIs registered. Add one with 'aperture config add <name> <file>'.")
	}
	var sb strings.Builder
	for _, api := range o.APIs {
		sb.WriteString(s.Bullet.Render("• "))
		sb.WriteString(s.Key.Render(api.Name))
		if api.Error != "" {
			sb.WriteString("  ")
			sb.WriteString(s.Error.Render(api.Error))
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(s.Dim.Render(fmt.Sprintf("  v%s  %d commands", api.Version, api.Commands)))
		if n := len(api.Skipped); n > 0 {
			sb.WriteString(s.Warning.Render(fmt.Sprintf("  %d skipped", n)))
		}
		sb.WriteString("\n")
		if o.Verbose {
			if api.BaseURL != "" {
				sb.WriteString(s.Dim.Render("    base url: " + api.BaseURL))
				sb.WriteString("\n")
			}
			for _, sk := range api.Skipped {
				sb.WriteString(s.Dim.Render(fmt.Sprintf("    skipped %s %s: %s", sk.Method, sk.Path, sk.Reason)))
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Render returns a human-friendly representation.
func (r AddResult) Render() string {
	s := Styles
	var sb strings.Builder
	sb.WriteString(s.Success.Render("Added "))
	sb.WriteString(s.Key.Render(r.Name))
	sb.WriteString(s.Dim.Render(fmt.Sprintf(" (%d commands)", r.Commands)))
	for _, sk := range r.Skipped {
		sb.WriteString("\n")
		sb.WriteString(s.Warning.Render("  skipped "))
		sb.WriteString(fmt.Sprintf("%s %s: %s", sk.Method, sk.Path, sk.Reason))
	}
	return sb.String()
}

func sortedKeysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string { return sortedKeysOf(m) }
