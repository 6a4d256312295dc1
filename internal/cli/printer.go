// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

type printer struct {
	out io.Writer
	err io.Writer
}

func (p printer) success(format string, a ...any) {
	green.Fprintf(p.out, "✓ "+format+"\n", a...)
}

func (p printer) info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

func (p printer) heading(format string, a ...any) {
	cyan.Fprintf(p.out, format+"\n", a...)
}

func (p printer) detail(format string, a ...any) {
	faint.Fprintf(p.out, format+"\n", a...)
}

func (p printer) warning(format string, a ...any) {
	yellow.Fprintf(p.err, "! "+format+"\n", a...)
}

// reportedError is an error already printed to the user.
type reportedError struct{ title string }

func (e *reportedError) Error() string { return e.title }

// Reported reports whether err was already printed by a command.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// failure prints title and the hint to stderr and returns title as the error.
func (p printer) failure(title, hint string) error {
	red.Fprintln(p.err, title)
	if hint != "" {
		fmt.Fprintln(p.err, hint)
	}
	return &reportedError{title: title}
}
