package main

import (
	"errors"

	"github.com/ubitquityx/constellation"
)

// Exit codes.
const (
	exitOK            = 0
	exitError         = 1
	exitNotFound      = 3
	exitInvalidTarget = 4
	exitConnection    = 5
	exitHTTP          = 6
	exitParse         = 7
)

// reportedError wraps an error that was already printed to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}

func reported(err error) error {
	return &reportedError{err: err}
}

func isReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

func exitCode(err error) int {
	var httpErr *constellation.HTTPError

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, constellation.ErrNotFound):
		return exitNotFound
	case errors.Is(err, constellation.ErrInvalidTarget):
		return exitInvalidTarget
	case errors.Is(err, constellation.ErrConnection):
		return exitConnection
	case errors.As(err, &httpErr):
		return exitHTTP
	case errors.Is(err, constellation.ErrParse):
		return exitParse
	default:
		return exitError
	}
}
