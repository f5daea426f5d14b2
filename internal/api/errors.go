package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNotLoggedIn is returned when an authenticated call is attempted without a
// stored session.
var ErrNotLoggedIn = errors.New("no authentication session found, please log in with 'unisrv login'")

// ErrSessionExpired is returned when both the access and refresh tokens have
// expired.
var ErrSessionExpired = errors.New("authentication session expired, please log in again with 'unisrv login'")

// Error is a non-success response from the control plane. Reason carries the
// server's human-readable explanation when the body had one.
type Error struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	if e.StatusCode == http.StatusServiceUnavailable {
		if e.Reason != "" {
			return fmt.Sprintf("service temporarily unavailable: %s", e.Reason)
		}
		return "service temporarily unavailable"
	}
	if e.Reason != "" {
		return fmt.Sprintf("failed to %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("failed to %s: HTTP %d", e.Op, e.StatusCode)
}

type errorResponse struct {
	Reason string `json:"reason"`
}

// checkResponse returns nil for a success status and a decoded *Error
// otherwise. The body is consumed either way.
func checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &Error{Op: op, StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(body) > 0 {
		var parsed errorResponse
		if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil && parsed.Reason != "" {
			apiErr.Reason = parsed.Reason
		} else {
			apiErr.Reason = string(body)
		}
	}
	return apiErr
}
