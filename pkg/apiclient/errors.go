package apiclient

import (
	"errors"
	"fmt"
)

var ErrInvalidBaseURL = errors.New("apiclient: invalid base URL")

// EncodeError reports a request body that could not be marshalled. Nothing was sent.
type EncodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s %s: encode request: %v", e.Method, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// NetworkError reports a transport failure: the request never produced a response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response. Message is the backend's
// "message" field when the body carried one.
type HTTPStatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
	Body    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// DecodeError reports a 2xx response whose body did not match the expected shape.
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// BackendMessage returns the backend-supplied message carried by err, or "".
func BackendMessage(err error) string {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
