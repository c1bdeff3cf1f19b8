package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the sharing server, carrying the
// protocol's error envelope when one was returned.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("sharing server returned %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("sharing server returned %d: %s", e.StatusCode, e.Message)
}

// Retriable reports whether the request may be retried: throttling and
// server-side failures, never client mistakes.
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// parseAPIError drains and closes the response body and builds the APIError.
// The protocol envelope is {"errorCode": ..., "message": ...}; anything else
// is kept as plain text.
func parseAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close() //nolint:errcheck
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var envelope struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && (envelope.ErrorCode != "" || envelope.Message != "") {
		apiErr.ErrorCode = envelope.ErrorCode
		apiErr.Message = envelope.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
