package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput             = errors.New("input error")
	ErrConfiguration     = errors.New("configuration error")
	ErrExternalTool      = errors.New("external tool error")
	ErrTransient         = errors.New("transient service error")
	ErrRejected          = errors.New("service rejected request")
	ErrMalformedResponse = errors.New("malformed structured response")
	ErrUploadReadiness   = errors.New("upload readiness failure")
	ErrTimeout           = errors.New("timeout")
	ErrInternal          = errors.New("internal error")
)

// StageError carries the originating stage and operation of a failure together
// with its classification marker and underlying cause.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// Detail is the caller-facing summary of a failure.
type Detail struct {
	Stage     string `json:"stage"`
	Operation string `json:"operation,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// Details returns the outermost stage context recorded on err. Errors that
// never passed through Wrap report an empty stage and kind "internal".
func Details(err error) Detail {
	if err == nil {
		return Detail{}
	}
	detail := Detail{Kind: Kind(err), Message: err.Error()}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		detail.Stage = stageErr.Stage
		detail.Operation = stageErr.Operation
	}
	return detail
}

// Kind classifies err by its marker.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUploadReadiness):
		return "upload_readiness"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
