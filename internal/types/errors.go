package types

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingCity     ErrorCode = "validation_missing_city"
	ErrCodeValidationInvalidLanguage ErrorCode = "validation_invalid_language"
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidClientID ErrorCode = "validation_invalid_client_id"

	// Not Found (404)
	ErrCodeNotFoundCity       ErrorCode = "not_found_city"
	ErrCodeNotFoundPreference ErrorCode = "not_found_preference"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB               ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected       ErrorCode = "internal_unexpected_error"
	ErrCodeInternalPreferenceStore  ErrorCode = "internal_preference_store_error"
	ErrCodeUpstreamWeather          ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamWeatherAuth      ErrorCode = "upstream_weather_unauthorized"
	ErrCodeUpstreamWeatherMalformed ErrorCode = "upstream_weather_malformed"
	ErrCodeUpstreamImage            ErrorCode = "upstream_image_unavailable"
	ErrCodeUpstreamImageAuth        ErrorCode = "upstream_image_unauthorized"
	ErrCodeUpstreamImageMalformed   ErrorCode = "upstream_image_malformed"
	ErrCodeUpstreamUnavailable      ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited      ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError carries a stable code for clients, a human-readable message and
// the underlying cause. Handlers and the view builder only ever look at Code.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status for e.Code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of e with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return NewAppErrorWithDetails(e.Code, e.Message, e.Err, merged)
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return NewAppErrorWithDetails(code, message, err, nil)
}

func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalUnexpected when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
