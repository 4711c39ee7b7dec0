package models

import (
	"encoding/json"

	apperrors "go-food-analyzer/internal/errors"
)

// AnalysisRequest is a validated request admitted to the orchestrator.
type AnalysisRequest struct {
	ImagePayload string
	Variant      Variant
}

// ChannelResult is the single outcome of one analysis channel: either a value
// or a failure, never both.
type ChannelResult[T any] struct {
	value   T
	failure *apperrors.AppError
}

// Success wraps a channel value.
func Success[T any](value T) ChannelResult[T] {
	return ChannelResult[T]{value: value}
}

// Failure wraps a channel failure. A nil error is treated as an internal fault.
func Failure[T any](err *apperrors.AppError) ChannelResult[T] {
	if err == nil {
		err = apperrors.NewInternalError("channel failed without an error", nil)
	}
	return ChannelResult[T]{failure: err}
}

// Ok reports whether the channel succeeded.
func (r ChannelResult[T]) Ok() bool { return r.failure == nil }

// Value returns the success value (zero value on failure).
func (r ChannelResult[T]) Value() T { return r.value }

// Err returns the failure, or nil on success.
func (r ChannelResult[T]) Err() *apperrors.AppError { return r.failure }

// Kind returns the failure kind, or an empty kind on success.
func (r ChannelResult[T]) Kind() apperrors.Kind {
	if r.failure == nil {
		return ""
	}
	return r.failure.Kind
}

// FusedResult is the AI document enriched with the OCR text.
type FusedResult struct {
	Document json.RawMessage
	// OCRDegraded is set when the OCR channel failed and the marker was used.
	OCRDegraded bool
}
