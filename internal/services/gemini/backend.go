package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Part is one element of a multimodal prompt: text or a reference to an
// uploaded file.
type Part struct {
	Text     string
	FileURI  string
	MIMEType string
}

// TextPart builds a text prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// FilePart references an uploaded file.
func FilePart(file File) Part {
	return Part{FileURI: file.URI, MIMEType: file.MIMEType}
}

// FileState mirrors the service's processing state for an uploaded file.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// File is an uploaded payload handle.
type File struct {
	Name     string    `json:"name"`
	URI      string    `json:"uri"`
	MIMEType string    `json:"mime_type"`
	State    FileState `json:"state"`
	Error    string    `json:"error,omitempty"`
}

// GenerateRequest is a single content generation call.
type GenerateRequest struct {
	Model string
	Parts []Part
	// JSON asks the service for an application/json response body.
	JSON bool
}

// Backend is the raw model service surface the Gateway drives.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Embed returns the decoded embedding response as a generic JSON value.
	Embed(ctx context.Context, model, text string) (any, error)
	Upload(ctx context.Context, path, mimeType string) (File, error)
	GetFile(ctx context.Context, name string) (File, error)
}

// StatusError is a service failure carrying an HTTP status code.
type StatusError struct {
	Code       int
	Status     string
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	status := strings.TrimSpace(e.Status)
	if status == "" {
		return fmt.Sprintf("gemini: http %d: %s", e.Code, strings.TrimSpace(e.Message))
	}
	return fmt.Sprintf("gemini: http %d %s: %s", e.Code, status, strings.TrimSpace(e.Message))
}
