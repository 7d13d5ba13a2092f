package main

import (
	"context"
	"errors"
	"strings"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// errInterrupted is returned when Ctrl-C aborts setup.
var errInterrupted = errors.New("interrupted")

// usageError marks invalid command-line usage.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// newUsageError creates a usage error with the given message.
func newUsageError(msg string) error {
	return usageError{err: errors.New(msg)}
}

func isUsageError(err error) bool {
	var u usageError
	if errors.As(err, &u) {
		return true
	}
	// cobra reports unknown commands and bad argument counts as plain errors.
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.Contains(msg, "arg(s)")
}

// exitCode maps an error returned by a command to the process exit code.
//
// Parameters:
//   - err: The error returned by the command
//
// Returns:
//   - int: 0, 1, 2 for usage errors or 130 for interrupts
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	case isUsageError(err):
		return exitUsage
	default:
		return exitError
	}
}
