package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultHTTPTimeout bounds a single request to a chain endpoint
	DefaultHTTPTimeout = 10 * time.Second
	// maxErrorBody is how much of a failed response body is kept in errors
	maxErrorBody = 512
)

// ErrTransport marks failures where the endpoint could not be reached at all,
// as opposed to an HTTP error status or an unparsable body.
var ErrTransport = errors.New("transport error")

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsTransport reports whether err means the endpoint was unreachable.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// NewHTTPClient returns the http.Client used for chain endpoints.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doJSON performs the request and decodes a 2xx JSON body into out. It returns
// the response headers so callers can read pagination cursors.
func doJSON(ctx context.Context, client *http.Client, method, url string, body interface{}, out interface{}) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}
	return resp.Header, nil
}
