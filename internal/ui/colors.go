// Package ui renders borealis terminal output: colored message printers,
// status symbols, spinners, prompts and tabular listings.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"borealis/pkg/transaction"
)

var (
	// Printers for message types
	Success = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow, color.Bold)
	Info    = color.New(color.FgCyan)
	Header  = color.New(color.FgMagenta, color.Bold)
	Muted   = color.New(color.FgHiBlack)

	// Printers for listing elements
	PackageName    = color.New(color.FgWhite, color.Bold)
	PackageVersion = color.New(color.FgGreen)
	PackageSource  = color.New(color.FgCyan)
	Installed      = color.New(color.FgGreen)
	NotInstalled   = color.New(color.FgHiBlack)
)

// UseColors reports whether output is colored.
var UseColors = true

// UseUnicode reports whether unicode symbols are used.
var UseUnicode = true

// Symbols for status indicators
var (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolInfo    = "→"
	SymbolPending = "○"
	SymbolArrow   = "→"
)

// Init applies the output configuration.
func Init(useColors, useUnicode bool) {
	UseColors = useColors
	UseUnicode = useUnicode

	if !useColors || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	if !useUnicode {
		SymbolSuccess = "[OK]"
		SymbolError = "[FAIL]"
		SymbolWarning = "[WARN]"
		SymbolInfo = "->"
		SymbolPending = "[ ]"
		SymbolArrow = "->"
	}
}

// StatusSymbol returns the indicator for a transaction entry status.
func StatusSymbol(s transaction.Status) string {
	switch s {
	case transaction.StatusSucceeded:
		return SymbolSuccess
	case transaction.StatusFailed:
		return SymbolError
	case transaction.StatusRunning:
		return SymbolArrow
	default:
		return SymbolPending
	}
}

// StatusColor returns the printer for a transaction entry status.
func StatusColor(s transaction.Status) *color.Color {
	switch s {
	case transaction.StatusSucceeded:
		return Success
	case transaction.StatusFailed:
		return Error
	case transaction.StatusRunning:
		return Info
	case transaction.StatusSkipped:
		return Warning
	default:
		return Muted
	}
}

// SuccessMsg prints a success message.
func SuccessMsg(format string, args ...any) {
	Success.Printf(SymbolSuccess+" "+format+"\n", args...)
}

// ErrorMsg prints an error message.
func ErrorMsg(format string, args ...any) {
	Error.Printf(SymbolError+" "+format+"\n", args...)
}

// WarningMsg prints a warning message.
func WarningMsg(format string, args ...any) {
	Warning.Printf(SymbolWarning+" "+format+"\n", args...)
}

// InfoMsg prints an info message.
func InfoMsg(format string, args ...any) {
	Info.Printf(SymbolInfo+" "+format+"\n", args...)
}

// HeaderMsg prints a section header.
func HeaderMsg(format string, args ...any) {
	Header.Printf("\n"+format+"\n", args...)
}

// MutedMsg prints a dim message.
func MutedMsg(format string, args ...any) {
	Muted.Printf(format+"\n", args...)
}

// Println prints a plain formatted line.
func Println(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Bold returns s in bold.
func Bold(s string) string {
	return color.New(color.Bold).Sprint(s)
}

// Green returns s in green.
func Green(s string) string {
	return color.GreenString(s)
}

// Red returns s in red.
func Red(s string) string {
	return color.RedString(s)
}

// Yellow returns s in yellow.
func Yellow(s string) string {
	return color.YellowString(s)
}

// Cyan returns s in cyan.
func Cyan(s string) string {
	return color.CyanString(s)
}
