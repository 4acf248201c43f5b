package square

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field,omitempty"`
}

// APIError is a non-2xx response from the processor.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("square api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("square api error (status %d): %s: %s", e.StatusCode, e.Errors[0].Code, e.Errors[0].Detail)
}

func (e *APIError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

// Detail is the processor's human readable message, safe to return to callers.
func (e *APIError) Detail() string {
	if len(e.Errors) == 0 || e.Errors[0].Detail == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Errors[0].Detail
}

func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Errors []ErrorDetail `json:"errors"`
	}
	_ = json.Unmarshal(body, &envelope)
	return &APIError{StatusCode: status, Errors: envelope.Errors}
}
