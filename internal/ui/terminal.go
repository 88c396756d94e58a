package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether step listings written to stdout get ANSI
// styling.
func ShouldUseColor() bool {
	return ColorFor(os.Stdout)
}

// ColorFor reports whether output written to w should be styled. The
// NO_COLOR, CLICOLOR_FORCE and CLICOLOR variables take precedence over
// terminal detection; a w that is not a terminal file is never styled.
func ColorFor(w io.Writer) bool {
	if on, set := colorFromEnv(os.Getenv); set {
		return on
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorFromEnv returns the color choice forced by the environment, if any.
// See https://no-color.org and https://bixense.com/clicolors.
func colorFromEnv(getenv func(string) string) (on, set bool) {
	if getenv("NO_COLOR") != "" {
		return false, true
	}
	switch {
	case strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1":
		return true, true
	case strings.TrimSpace(getenv("CLICOLOR")) == "0":
		return false, true
	}
	return false, false
}
