package main

import (
	"errors"
	"syscall"

	"github.com/git-ecosystem/proctrace/internal/recorder"
)

// exitCodeOf maps an error returned from a subcommand's RunE to the
// conventional process exit code, per the interrupted-signal and
// tracer/user-command-failure contracts. The second return value is
// false when the caller should fall back to the generic nonzero exit.
func exitCodeOf(err error) (int, bool) {
	var interrupted *recorder.InterruptedError
	if errors.As(err, &interrupted) {
		switch interrupted.Signal {
		case syscall.SIGINT:
			return 130, true
		case syscall.SIGTERM:
			return 143, true
		default:
			return 1, true
		}
	}

	var parseErr *parseExitError
	if errors.As(err, &parseErr) {
		return 2, true
	}

	return 0, false
}

// parseExitError marks an ingest failure that should exit 2 rather
// than the generic nonzero code other subcommands use.
type parseExitError struct {
	err error
}

func (e *parseExitError) Error() string { return e.err.Error() }
func (e *parseExitError) Unwrap() error { return e.err }
