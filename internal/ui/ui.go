// Package ui prints user-facing status lines. Log records go through
// slog; these are the short colored messages a run prints regardless of
// log configuration.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	infoColor   = color.New(color.FgBlue)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	failColor   = color.New(color.FgRed)
	detailColor = color.New(color.FgCyan)
)

func Infof(format string, args ...any)   { infoColor.Printf(format+"\n", args...) }
func Okf(format string, args ...any)     { okColor.Printf(format+"\n", args...) }
func Warnf(format string, args ...any)   { warnColor.Printf(format+"\n", args...) }
func Detailf(format string, args ...any) { detailColor.Printf(format+"\n", args...) }

func Failf(format string, args ...any) {
	failColor.Fprintf(os.Stderr, format+"\n", args...)
}

// Plainf is for output that should stay uncolored, such as JSON.
func Plainf(format string, args ...any) { fmt.Printf(format, args...) }
