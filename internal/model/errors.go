package model

import (
	"errors"
	"fmt"
)

// Feed load error categories. Sources wrap their failures with one of these so
// callers can classify them with errors.Is / errors.As.
var (
	ErrNetwork = errors.New("network unavailable")
	ErrUnknown = errors.New("unknown error")
)

// User-facing messages for each error category.
const (
	MessageNetwork = "Please check your internet connection and try again."
	MessageUnknown = "Something went wrong. Please try again."
)

// APIError is returned when the remote service answered with an error payload.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// ErrorMessage converts a feed load error into text suitable for display.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MessageUnknown
	case errors.Is(err, ErrNetwork):
		return MessageNetwork
	default:
		return MessageUnknown
	}
}
