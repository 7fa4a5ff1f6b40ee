// Package core provides core types and interfaces for the AI gateway.
package core

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorType is the machine-readable kind reported in error bodies.
type ErrorType string

const (
	ErrorTypeProvider        ErrorType = "provider_error"
	ErrorTypeRateLimit       ErrorType = "rate_limit_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request_error"
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypeInvalidProvider ErrorType = "invalid_provider"
	ErrorTypeMissingInput    ErrorType = "missing_input"
)

// statusByType is used when a GatewayError carries no explicit status.
var statusByType = map[ErrorType]int{
	ErrorTypeProvider:        http.StatusBadGateway,
	ErrorTypeRateLimit:       http.StatusTooManyRequests,
	ErrorTypeInvalidRequest:  http.StatusBadRequest,
	ErrorTypeAuthentication:  http.StatusUnauthorized,
	ErrorTypeInvalidProvider: http.StatusBadRequest,
	ErrorTypeMissingInput:    http.StatusBadRequest,
}

var (
	// ErrInvalidProvider is wrapped by every InvalidProvider GatewayError.
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrMissingInput is wrapped by every MissingInput GatewayError.
	ErrMissingInput = errors.New("missing input")
)

// GatewayError is returned by every gateway operation that fails. Provider is
// empty for errors raised before a backend was chosen.
type GatewayError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Provider   string
	// Err is kept for logs and errors.Is; it never reaches clients.
	Err error
}

// ErrorResponse is the JSON body written for a GatewayError.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the inner object of ErrorResponse.
type ErrorBody struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

func (e *GatewayError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns StatusCode, or the default for Type when unset.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	if status, ok := statusByType[e.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToJSON returns the client-facing body. Status, provider and cause stay
// server-side.
func (e *GatewayError) ToJSON() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Type: e.Type, Message: e.Message}}
}

func newError(typ ErrorType, provider, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       typ,
		Message:    message,
		StatusCode: statusByType[typ],
		Provider:   provider,
		Err:        err,
	}
}

// NewProviderError reports a backend failure: unreachable, 5xx or an
// unusable reply.
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	e := newError(ErrorTypeProvider, provider, message, err)
	e.StatusCode = statusCode
	return e
}

func NewRateLimitError(provider string, message string) *GatewayError {
	return newError(ErrorTypeRateLimit, provider, message, nil)
}

func NewAuthenticationError(provider string, message string) *GatewayError {
	return newError(ErrorTypeAuthentication, provider, message, nil)
}

// NewInvalidRequestError creates a 400 invalid request error.
func NewInvalidRequestError(message string, err error) *GatewayError {
	return newError(ErrorTypeInvalidRequest, "", message, err)
}

// NewInvalidRequestErrorWithStatus keeps a specific 4xx status, such as a
// backend's 404 for an unknown model.
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *GatewayError {
	e := NewInvalidRequestError(message, err)
	e.StatusCode = statusCode
	return e
}

// NewInvalidProviderError reports a provider value that is neither local nor cloud.
func NewInvalidProviderError(value string) *GatewayError {
	msg := fmt.Sprintf("invalid AI provider %q (valid: %s, %s)", value, ProviderLocal, ProviderCloud)
	return newError(ErrorTypeInvalidProvider, "", msg, ErrInvalidProvider)
}

// NewMissingInputError reports an absent message or image payload.
func NewMissingInputError(message string) *GatewayError {
	return newError(ErrorTypeMissingInput, "", message, ErrMissingInput)
}

// ParseProviderError classifies a non-200 backend reply by status. The
// message comes from error.message, a plain string error field, or else the
// raw body.
func ParseProviderError(provider string, statusCode int, body []byte, originalErr error) *GatewayError {
	message := string(body)
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Type == gjson.String && m.Str != "" {
			message = m.Str
		} else if m := gjson.GetBytes(body, "error"); m.Type == gjson.String && m.Str != "" {
			message = m.Str
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewAuthenticationError(provider, message)
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider, message)
	case statusCode >= 400 && statusCode < 500:
		e := NewInvalidRequestErrorWithStatus(statusCode, message, originalErr)
		e.Provider = provider
		return e
	default:
		return NewProviderError(provider, http.StatusBadGateway, message, originalErr)
	}
}
