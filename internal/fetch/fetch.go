// Package fetch is the shared HTTP GET wrapper used by every upstream client.
// It collapses transport failures and non-2xx responses into a single Error
// type while keeping the two cases distinguishable.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Error reports a failed upstream fetch. Status is zero when the request
// never produced a response (unreachable host, timeout); otherwise it holds
// the non-2xx status code returned by a reachable endpoint.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewClient returns an http.Client with the default upstream timeout.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
	}
}

// JSON issues a GET request for url and decodes the response body into out.
// Any failure is returned as *Error.
func JSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{URL: url, Status: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{URL: url, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	return nil
}
