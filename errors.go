package constellation

import (
	"errors"
	"net/http"
	"strconv"
)

var (
	// ErrNotFound is returned when the upload path does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrInvalidTarget is returned when the upload path exists but is neither a regular file nor a directory.
	ErrInvalidTarget = errors.New("path is neither a regular file nor a directory")
	// ErrConnection is matched by every ConnectionError.
	ErrConnection = errors.New("could not connect to the cluster")
	// ErrParse is matched by every ParseError.
	ErrParse = errors.New("could not parse add response")
	// ErrInvalidEndpoint is returned when the cluster base URL is not an absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	// ErrHistoryNotFound is returned when a history record does not exist.
	ErrHistoryNotFound = errors.New("history record not found")
)

// ConnectionError reports a request that never received a response.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Method + " " + e.URL + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// HTTPError represents a non-2xx response from the cluster.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return "http error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *HTTPError with the same StatusCode.
func (e *HTTPError) Is(target error) bool {
	var t *HTTPError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// Sentinel errors for common cluster rejections.
// Use errors.Is() to check for these conditions.
var (
	// ErrUnauthorized is returned when the cluster rejects the credentials (401).
	ErrUnauthorized = &HTTPError{StatusCode: http.StatusUnauthorized}

	// ErrForbidden is returned when the credentials lack permission (403).
	ErrForbidden = &HTTPError{StatusCode: http.StatusForbidden}
)

// ParseError reports a 2xx response whose trailing line could not be decoded.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return ErrParse.Error() + ": " + e.Err.Error()
	}
	return ErrParse.Error() + ": " + e.Err.Error() + ": " + strconv.Quote(e.Line)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
