package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrUnauthorized matches (via errors.Is) any APIError with status 401.
var ErrUnauthorized = errors.New("unauthorized")

const networkMessage = "Network error. Check your connection."

// APIError is the structured form of every failed request: either a non-2xx
// response ({message, errors, status}) or no response at all
// ({message, is_network_error}).
type APIError struct {
	Status         int                 `json:"status,omitempty"`
	Message        string              `json:"message"`
	Errors         map[string][]string `json:"errors,omitempty"`
	IsNetworkError bool                `json:"is_network_error,omitempty"`

	fromServer bool
	cause      error
}

func (e *APIError) Error() string {
	if e.IsNetworkError {
		if e.cause != nil {
			return fmt.Sprintf("network error: %v", e.cause)
		}
		return "network error"
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// ServerMessage reports whether Message came from the response body rather
// than the status default.
func (e *APIError) ServerMessage() bool { return e.fromServer }

// FirstValidationMessage returns the first message of the alphabetically
// first field in Errors, or "".
func (e *APIError) FirstValidationMessage() string {
	if len(e.Errors) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, msg := range e.Errors[k] {
			if strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	return ""
}

// DefaultMessage is the message shown for a status when the server sends none.
func DefaultMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Bad request."
	case status == http.StatusUnauthorized:
		return "Your session has expired. Please log in again."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusUnprocessableEntity:
		return "The given data was invalid."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please slow down."
	case status >= 500:
		return "Server error. Please try again later."
	default:
		return fmt.Sprintf("Request failed with status %d.", status)
	}
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
