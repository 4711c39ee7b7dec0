package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
)

// Kind identifies the precise failure reported to callers.
type Kind string

const (
	KindInvalidImage          Kind = "invalid_image"
	KindUnknownVariant        Kind = "unknown_variant"
	KindTimeout               Kind = "timeout"
	KindUpstreamError         Kind = "upstream_error"
	KindTransportError        Kind = "transport_error"
	KindMalformedUpstreamJSON Kind = "malformed_upstream_json"
	KindOCREngineError        Kind = "ocr_engine_error"
	KindValidation            Kind = "validation"
	KindUnauthorized          Kind = "unauthorized"
	KindInternal              Kind = "internal"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageAdmission  Stage = "admission"
	StageDecode     Stage = "decode"
	StageAIChannel  Stage = "ai_channel"
	StageOCRChannel Stage = "ocr_channel"
	StageFusion     Stage = "fusion"
	StageTransport  Stage = "transport"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Kind       Kind      `json:"kind"`
	Stage      Stage     `json:"stage,omitempty"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithStage returns a copy of the error attributed to the given stage.
func (e *AppError) WithStage(stage Stage) *AppError {
	cp := *e
	cp.Stage = stage
	return &cp
}

// NewInvalidImageError reports an image payload that could not be decoded.
func NewInvalidImageError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Kind:       KindInvalidImage,
		Stage:      StageDecode,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewUnknownVariantError reports a variant outside the closed set.
func NewUnknownVariantError(message, details string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Kind:       KindUnknownVariant,
		Stage:      StageAdmission,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Kind:       KindValidation,
		Stage:      StageTransport,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Kind:       KindTimeout,
		Stage:      StageAIChannel,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewUpstreamError reports a non-2xx answer from the vision model provider.
func NewUpstreamError(message, details string) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Kind:       KindUpstreamError,
		Stage:      StageAIChannel,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadGateway,
	}
}

// NewTransportError creates a new network error
func NewTransportError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Kind:       KindTransportError,
		Stage:      StageAIChannel,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewMalformedUpstreamJSONError reports an AI body that is not a JSON document.
func NewMalformedUpstreamJSONError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProcessing,
		Kind:       KindMalformedUpstreamJSON,
		Stage:      StageFusion,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewUnauthorizedError creates a new authentication error
func NewUnauthorizedError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Kind:       KindUnauthorized,
		Stage:      StageTransport,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Kind:       KindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewChannelError builds the error carried by a failed channel result.
func NewChannelError(kind Kind, stage Stage, detail string) *AppError {
	e := &AppError{Kind: kind, Stage: stage, Message: "channel failed", Details: detail}
	switch kind {
	case KindTimeout:
		e.Type, e.Message, e.StatusCode = ErrorTypeTimeout, "vision model call timed out", http.StatusGatewayTimeout
	case KindUpstreamError:
		e.Type, e.Message, e.StatusCode = ErrorTypeNetwork, "vision model returned an error", http.StatusBadGateway
	case KindTransportError:
		e.Type, e.Message, e.StatusCode = ErrorTypeNetwork, "vision model call failed", http.StatusBadGateway
	case KindMalformedUpstreamJSON:
		e.Type, e.Message, e.StatusCode = ErrorTypeProcessing, "vision model returned malformed JSON", http.StatusBadGateway
	case KindOCREngineError:
		e.Type, e.Message, e.StatusCode = ErrorTypeProcessing, "ocr engine failed", http.StatusInternalServerError
	default:
		e.Type, e.StatusCode = ErrorTypeInternal, http.StatusInternalServerError
	}
	return e
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind checks if the error is of a specific kind
func IsKind(err error, kind Kind) bool {
	if appErr, ok := As(err); ok {
		return appErr.Kind == kind
	}
	return false
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
