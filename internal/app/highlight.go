package app

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
)

// chromaStyle is the color scheme for syntax highlighting.
var chromaStyle = chromastyles.Get("dracula")

// chromaFormatter outputs 256-color ANSI codes for terminal display.
var chromaFormatter = formatters.Get("terminal256")

func init() {
	if chromaStyle == nil {
		chromaStyle = chromastyles.Fallback
	}
	if chromaFormatter == nil {
		chromaFormatter = formatters.Fallback
	}
}

// Highlight colors JSON, YAML or XML output for a terminal. Anything it
// cannot classify is returned unchanged.
func Highlight(input string) string {
	if input == "" {
		return input
	}

	trimmed := strings.TrimSpace(input)
	var lexer chroma.Lexer
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		lexer = lexers.Get("json")
	case strings.HasPrefix(trimmed, "<"):
		lexer = lexers.Get("xml")
	case looksLikeYAML(trimmed):
		lexer = lexers.Get("yaml")
	}
	if lexer == nil {
		return input
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, input)
	if err != nil {
		return input
	}
	var buf bytes.Buffer
	if err := chromaFormatter.Format(&buf, chromaStyle, iterator); err != nil {
		return input
	}
	return buf.String()
}

// looksLikeYAML reports whether the first non-comment lines are "key:" pairs.
func looksLikeYAML(s string) bool {
	checked := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			line = strings.TrimPrefix(line, "- ")
		}
		idx := strings.Index(line, ":")
		if idx <= 0 || !isYAMLKey(line[:idx]) {
			return false
		}
		checked++
		if checked >= 2 {
			return true
		}
	}
	return checked > 0
}

func isYAMLKey(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return s != ""
}
