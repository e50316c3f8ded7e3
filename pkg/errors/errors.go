package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeAppError          = "APP_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeAuth              = "AUTH_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeDependency        = "DEPENDENCY_ERROR"
	CodeDependencyTimeout = "DEPENDENCY_TIMEOUT"
	CodeCache             = "CACHE_ERROR"
	CodeParse             = "PARSE_ERROR"
)

type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(message, code string, statusCode int, context map[string]any) *AppError {
	return &AppError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

type ValidationError struct {
	*AppError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: http.StatusBadRequest,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type AuthError struct {
	*AppError
	Reason string
}

func NewAuthError(message, reason string, cause error) *AuthError {
	return &AuthError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAuth,
			StatusCode: http.StatusUnauthorized,
			Context: map[string]any{
				"reason": reason,
			},
			Cause: cause,
		},
		Reason: reason,
	}
}

type NotFoundError struct {
	*AppError
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		AppError: &AppError{
			Message:    fmt.Sprintf("%s not found", resource),
			Code:       CodeNotFound,
			StatusCode: http.StatusNotFound,
			Context: map[string]any{
				"resource": resource,
				"id":       id,
			},
		},
		Resource: resource,
		ID:       id,
	}
}

// DependencyError wraps a failed or timed-out call to an external provider.
// The cause carries the provider message for logs; it never holds credentials.
type DependencyError struct {
	*AppError
	Service   string
	Operation string
	Timeout   bool
}

func NewDependencyError(message, service, operation string, cause error) *DependencyError {
	return &DependencyError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeDependency,
			StatusCode: http.StatusInternalServerError,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

func NewDependencyTimeout(service, operation string, cause error) *DependencyError {
	e := NewDependencyError(fmt.Sprintf("%s %s timed out", service, operation), service, operation, cause)
	e.Code = CodeDependencyTimeout
	e.Timeout = true
	return e
}

type CacheError struct {
	*AppError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: http.StatusInternalServerError,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// ParseKind tags why a model completion could not be turned into a result.
type ParseKind string

const (
	ParseMalformedShape    ParseKind = "MalformedShape"
	ParseUnknownCharacter  ParseKind = "UnknownCharacter"
	ParseInvalidConfidence ParseKind = "InvalidConfidence"
	ParseMalformedJSON     ParseKind = "MalformedJson"
	ParseSchemaViolation   ParseKind = "SchemaViolation"
)

type ParseError struct {
	*AppError
	Kind ParseKind
}

func NewParseError(kind ParseKind, message string, context map[string]any, cause error) *ParseError {
	if context == nil {
		context = map[string]any{}
	}
	context["kind"] = string(kind)
	return &ParseError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeParse,
			StatusCode: http.StatusInternalServerError,
			Context:    context,
			Cause:      cause,
		},
		Kind: kind,
	}
}

// IsParseKind reports whether err is a ParseError of the given kind.
func IsParseKind(err error, kind ParseKind) bool {
	var pe *ParseError
	if stderrors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// StatusOf maps any error onto the HTTP status used at the route boundary.
func StatusOf(err error) int {
	if app := appErrorOf(err); app != nil && app.StatusCode != 0 {
		return app.StatusCode
	}
	return http.StatusInternalServerError
}

// CodeOf returns the taxonomy code, or CodeAppError for untyped errors.
func CodeOf(err error) string {
	if app := appErrorOf(err); app != nil && app.Code != "" {
		return app.Code
	}
	return CodeAppError
}

func appErrorOf(err error) *AppError {
	if err == nil {
		return nil
	}

	var (
		ve *ValidationError
		ae *AuthError
		ne *NotFoundError
		de *DependencyError
		ce *CacheError
		pe *ParseError
		ap *AppError
	)
	switch {
	case stderrors.As(err, &ve):
		return ve.AppError
	case stderrors.As(err, &ae):
		return ae.AppError
	case stderrors.As(err, &ne):
		return ne.AppError
	case stderrors.As(err, &de):
		return de.AppError
	case stderrors.As(err, &ce):
		return ce.AppError
	case stderrors.As(err, &pe):
		return pe.AppError
	case stderrors.As(err, &ap):
		return ap
	}
	return nil
}
