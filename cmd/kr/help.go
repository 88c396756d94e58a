package main

import (
	"bytes"
	"io"
	"regexp"

	"github.com/groblegark/krecipes/internal/ui"
	"github.com/spf13/cobra"
)

// helpStyle colors the submatches of one pattern in cobra's usage text.
// style[i] renders group i+1; nil leaves the group as is.
type helpStyle struct {
	re    *regexp.Regexp
	style []func(string) string
}

var helpStyles = []helpStyle{
	// "Recipes:", "Flags:" and the other section headers.
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), []func(string) string{ui.RenderAccent}},
	// Subcommand names in the command listing.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), []func(string) string{nil, ui.RenderCommand, nil}},
	// Flag value types: "--position int", "--uses ints".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|ints|duration|strings)\b`), []func(string) string{nil, ui.RenderMuted}},
	// (default "...") annotations.
	{regexp.MustCompile(`(\(default "[^"]*"\))`), []func(string) string{ui.RenderMuted}},
}

// colorizedHelpFunc renders cobra's usage text, styled when the output is a
// color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ColorFor(out) {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		_, _ = io.WriteString(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, hs := range helpStyles {
		s = hs.apply(s)
	}
	return s
}

func (hs helpStyle) apply(s string) string {
	return hs.re.ReplaceAllStringFunc(s, func(match string) string {
		groups := hs.re.FindStringSubmatch(match)
		if len(groups) != len(hs.style)+1 {
			return match
		}
		var b bytes.Buffer
		for i, g := range groups[1:] {
			if f := hs.style[i]; f != nil {
				g = f(g)
			}
			b.WriteString(g)
		}
		return b.String()
	})
}
