// Package netx contains HTTP helpers shared by the agent's outbound clients.
package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s; body: %s", e.Method, e.URL, e.Code, http.StatusText(e.Code), e.Body)
}

// CheckResponse returns nil for 2xx responses and a *StatusError otherwise.
// The body is drained (up to a limit) but not closed.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		if resp.Request.URL != nil {
			se.URL = resp.Request.URL.Redacted()
		}
	}
	return se
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// DrainAndClose discards the rest of body so the connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
