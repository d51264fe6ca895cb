// Package apperr builds the categorized errors returned across HTTP-facing
// boundaries and maps arbitrary errors onto a status and stable text code.
package apperr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes rendered in the "code" field of error responses.
const (
	CodeBadInput         = "BAD_INPUT"
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeConfigMissing    = "CONFIG_MISSING"
	CodeUpstreamTimeout  = "UPSTREAM_TIMEOUT"
	CodeUpstreamNotFound = "UPSTREAM_NOT_FOUND"
	CodeUpstreamStatus   = "UPSTREAM_STATUS"
	CodeUpstreamFailure  = "UPSTREAM_UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

const internalMessage = "An unexpected error occurred"

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// BadInput reports a request the caller must fix.
func BadInput(message string) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, CodeBadInput, nil)
}

// Validation reports a field-level validation failure.
func Validation(field, message string) error {
	return goerrors.NewValidation("validation failed: "+message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(CodeValidation).
		WithSeverity(goerrors.SeverityError)
}

// NotFound reports a missing local resource.
func NotFound(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryNotFound, http.StatusNotFound, CodeNotFound, metadata)
}

// Forbidden reports an authorization failure such as a bad webhook signature.
func Forbidden(message string) error {
	return newError(message, goerrors.CategoryAuthz, http.StatusForbidden, CodeForbidden, nil)
}

// ConfigMissing reports a required setting that was never configured.
func ConfigMissing(setting string) error {
	return newError(setting+" is not configured", goerrors.CategoryInternal, http.StatusInternalServerError, CodeConfigMissing, map[string]any{
		"setting": setting,
	})
}

// UpstreamTimeout reports an upstream request that exceeded its deadline.
func UpstreamTimeout(source error, operation string) error {
	return wrapError(source, goerrors.CategoryExternal, "Request to voice platform timed out", http.StatusGatewayTimeout, CodeUpstreamTimeout, map[string]any{
		"operation": operation,
	})
}

// UpstreamStatus reports an upstream HTTP error, preserving its status code.
func UpstreamStatus(status int, body string, operation string) error {
	textCode := CodeUpstreamStatus
	category := goerrors.CategoryExternal
	if status == http.StatusNotFound {
		textCode = CodeUpstreamNotFound
		category = goerrors.CategoryNotFound
	}
	message := strings.TrimSpace(body)
	if message == "" {
		message = http.StatusText(status)
	}
	return newError("Voice platform error: "+message, category, status, textCode, map[string]any{
		"operation":       operation,
		"upstream_status": status,
	})
}

// UpstreamUnavailable reports a transport-level upstream failure.
func UpstreamUnavailable(source error, operation string) error {
	return wrapError(source, goerrors.CategoryExternal, "Voice platform is unavailable", http.StatusBadGateway, CodeUpstreamFailure, map[string]any{
		"operation": operation,
	})
}

// RateLimited reports a request rejected by the client-side limiter.
func RateLimited(source error, operation string) error {
	return wrapError(source, goerrors.CategoryRateLimit, "Too many requests to voice platform", http.StatusTooManyRequests, CodeRateLimited, map[string]any{
		"operation": operation,
	})
}

// Internal wraps an unexpected failure.
func Internal(source error, message string) error {
	if strings.TrimSpace(message) == "" {
		message = internalMessage
	}
	return wrapError(source, goerrors.CategoryInternal, message, http.StatusInternalServerError, CodeInternal, nil)
}

// From normalizes any error into a go-errors envelope with code and text code set.
func From(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureEnvelope(rich)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ensureEnvelope(wrapError(err, goerrors.CategoryExternal, "Request timed out", http.StatusGatewayTimeout, CodeUpstreamTimeout, nil))
	case errors.Is(err, context.Canceled):
		return ensureEnvelope(wrapError(err, goerrors.CategoryOperation, "Request canceled", http.StatusServiceUnavailable, CodeInternal, nil))
	}

	return ensureEnvelope(wrapError(err, goerrors.CategoryInternal, internalMessage, http.StatusInternalServerError, CodeInternal, nil))
}

// Status returns the HTTP status for err.
func Status(err error) int {
	rich := From(err)
	if rich == nil {
		return http.StatusOK
	}
	return rich.Code
}

// TextCode returns the stable text code for err.
func TextCode(err error) string {
	rich := From(err)
	if rich == nil {
		return ""
	}
	return rich.TextCode
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = statusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = textCodeForCategory(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = internalMessage
	}
	return err
}

func textCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return CodeBadInput
	case goerrors.CategoryValidation:
		return CodeValidation
	case goerrors.CategoryNotFound:
		return CodeNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return CodeForbidden
	case goerrors.CategoryRateLimit:
		return CodeRateLimited
	case goerrors.CategoryExternal:
		return CodeUpstreamFailure
	default:
		return CodeInternal
	}
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
