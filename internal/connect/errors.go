package connect

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the platform API.
type APIError struct {
	StatusCode int      `json:"-"`
	ErrorCode  string   `json:"error_code"`
	Errors     []string `json:"errors"`
}

func (e *APIError) Error() string {
	msg := strings.Join(e.Errors, "; ")
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("connect api: %d %s: %s", e.StatusCode, e.ErrorCode, msg)
	}
	return fmt.Sprintf("connect api: %d: %s", e.StatusCode, msg)
}

// Message returns the human-readable part of the error.
func (e *APIError) Message() string {
	if len(e.Errors) > 0 {
		return strings.Join(e.Errors, "; ")
	}
	return http.StatusText(e.StatusCode)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	if err := json.Unmarshal(data, apiErr); err != nil {
		apiErr.Errors = []string{strings.TrimSpace(string(data))}
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}
