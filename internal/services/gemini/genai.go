package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"filmroom/internal/config"
	"filmroom/internal/structured"
)

// BackendConfig holds connection settings for the genai SDK backend.
type BackendConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport (tests point it at a local server).
	HTTPClient *http.Client
}

// BackendConfigFrom derives backend settings from application configuration.
func BackendConfigFrom(cfg *config.Config) BackendConfig {
	return BackendConfig{
		APIKey:  cfg.Gemini.APIKey,
		BaseURL: cfg.Gemini.BaseURL,
		Timeout: cfg.GeminiTimeout(),
	}
}

// GenAIBackend talks to the Gemini API through the official SDK.
type GenAIBackend struct {
	client *genai.Client
}

// NewGenAIBackend constructs an SDK-backed Backend. The client lives for the
// process; it holds no per-run state.
func NewGenAIBackend(ctx context.Context, cfg BackendConfig) (*GenAIBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini backend: api key required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	clientConfig := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini backend: new client: %w", err)
	}
	return &GenAIBackend{client: client}, nil
}

// Generate implements Backend.
func (b *GenAIBackend) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.FileURI != "" {
			parts = append(parts, genai.NewPartFromURI(part.FileURI, part.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(part.Text))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var generateConfig *genai.GenerateContentConfig
	if req.JSON {
		generateConfig = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := b.client.Models.GenerateContent(ctx, req.Model, contents, generateConfig)
	if err != nil {
		return "", translateError(err)
	}
	return resp.Text(), nil
}

// Embed implements Backend. The typed SDK response is re-encoded to a generic
// value so the gateway's extraction strategies see the wire shape.
func (b *GenAIBackend) Embed(ctx context.Context, model, text string) (any, error) {
	resp, err := b.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return nil, translateError(err)
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode embedding response: %w", err)
	}
	return structured.Decode(encoded)
}

// Upload implements Backend.
func (b *GenAIBackend) Upload(ctx context.Context, path, mimeType string) (File, error) {
	file, err := b.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return File{}, translateError(err)
	}
	return convertFile(file), nil
}

// GetFile implements Backend.
func (b *GenAIBackend) GetFile(ctx context.Context, name string) (File, error) {
	file, err := b.client.Files.Get(ctx, name, nil)
	if err != nil {
		return File{}, translateError(err)
	}
	return convertFile(file), nil
}

func convertFile(file *genai.File) File {
	if file == nil {
		return File{State: FileStateUnspecified}
	}
	out := File{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    FileState(file.State),
	}
	if out.State == "" {
		out.State = FileStateUnspecified
	}
	if file.Error != nil {
		out.Error = file.Error.Message
	}
	return out
}

// translateError maps SDK API errors onto StatusError so retry classification
// does not depend on SDK types.
func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}
	return err
}
