package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a request the backend rejected, or whose envelope reported
// success=false. Fields carries the per-field messages the backend
// attributed to specific inputs.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: %s %s: %s", e.Method, e.URL, msg)
	}
	return fmt.Sprintf("api: %s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// FieldErrors returns the field-attributed messages.
func (e *Error) FieldErrors() map[string][]string {
	return e.Fields
}

// UserMessage returns the text suitable for a top-level notice.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "invalid " + strings.Join(keys, ", ")
	}
	return "request failed"
}

// IsError reports whether err wraps an *Error.
func IsError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IgnoreStatusCodes returns nil when err is an *Error with one of codes.
func IgnoreStatusCodes(err error, codes ...int) error {
	status := StatusCode(err)
	for _, code := range codes {
		if status != 0 && status == code {
			return nil
		}
	}
	return err
}
