package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 2048

var (
	// ErrUnexpectedStatus is matched by *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrDecode wraps failures to parse a 2xx response body.
	ErrDecode = errors.New("malformed response body")

	errNoHTTPClient = errors.New("http client not configured")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%v: %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// doRequest executes req once, bound to ctx. A non-2xx response is drained,
// closed and returned as *StatusError; the caller owns the body otherwise.
func doRequest(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
