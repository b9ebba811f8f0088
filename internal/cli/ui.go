package cli

import (
	"github.com/fatih/color"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
)

func statusOK(msg string) string    { return success("✓") + " " + msg }
func statusError(msg string) string { return failure("✗") + " " + msg }
func statusWarn(msg string) string  { return warning("⚠") + " " + msg }
