package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue: step numbers, IDs
	colorCmd    = 250 // light gray: command names in help
	colorMuted  = 245 // gray: secondary text
	colorOK     = 114 // green: valid results
	colorError  = 203 // red: rejected operations
	colorEdge   = 180 // tan: dependency arrows
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return render(colorOK, s) }

// RenderError returns s in red.
func RenderError(s string) string { return render(colorError, s) }

// RenderEdge returns s in the color used for "uses output of" arrows.
func RenderEdge(s string) string { return render(colorEdge, s) }

// RenderStepNum formats a step number as a right-aligned label, e.g. " 3.".
func RenderStepNum(n, width int) string {
	return RenderAccent(fmt.Sprintf("%*d.", width, n))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// EnableColor re-enables color output. It exists for tests and for callers
// that decide per invocation.
func EnableColor() {
	noColor = false
}
