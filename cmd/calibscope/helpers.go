package main

import (
	"github.com/fatih/color"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func okMark() string {
	return color.New(color.Bold, color.FgGreen).Sprint("✔")
}

func warnMark() string {
	return color.New(color.Bold, color.FgYellow).Sprint("⚠")
}

func dim(format string, a ...interface{}) string {
	return color.New(color.Faint).Sprintf(format, a...)
}
