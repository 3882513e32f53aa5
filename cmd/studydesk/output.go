package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// All user feedback goes to stderr so stdout stays clean for record payloads
// a script may want to pipe.
func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓", format, args...) }

func printError(format string, args ...any) { printMarked(colorRed, "✗", format, args...) }

func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠", format, args...) }

// printStep announces a long-running phase, like waiting out a generation job.
func printStep(format string, args ...any) { printMarked(colorCyan, "→", format, args...) }

// printStatus renders one label/value line of the status report.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// roleLabel renders a transcript role the way the chat history view shows
// it. Unknown roles pass through uncolored.
func roleLabel(role string) string {
	switch role {
	case "user":
		return colorize(colorBold, "you")
	case "assistant":
		return colorize(colorCyan, "tutor")
	case "error":
		return colorize(colorRed, "error")
	}
	return role
}
