package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newSDKBackend(t *testing.T, handler http.HandlerFunc) *GenAIBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	backend, err := NewGenAIBackend(context.Background(), BackendConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewGenAIBackend: %v", err)
	}
	return backend
}

func TestGenAIBackendGenerate(t *testing.T) {
	var gotPath, gotBody string
	backend := newSDKBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"offense_side\":\"left\"}"}]}}]}`)
	})

	out, err := backend.Generate(context.Background(), GenerateRequest{
		Model: "gemini-2.5-flash-lite",
		Parts: []Part{
			{FileURI: "https://files.example/abc", MIMEType: "video/mp4"},
			TextPart("who is on offense?"),
		},
		JSON: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"offense_side":"left"}` {
		t.Fatalf("unexpected text %q", out)
	}
	if !strings.HasSuffix(gotPath, "gemini-2.5-flash-lite:generateContent") {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	for _, want := range []string{"https://files.example/abc", "who is on offense?", "application/json"} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("request body missing %q: %s", want, gotBody)
		}
	}
}

func TestGenAIBackendEmbedReturnsWireShape(t *testing.T) {
	backend := newSDKBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "mbedContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"embeddings":[{"values":[0.5,0.25,1]}]}`)
	})

	raw, err := backend.Embed(context.Background(), "text-embedding-004", "NFL pre-snap similarity query.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	gw := New(&fakeBackend{embed: func(int) (any, error) { return raw, nil }}, Config{})
	vec, err := gw.Embed(context.Background(), "text-embedding-004", "q")
	if err != nil {
		t.Fatalf("gateway Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[2] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestGenAIBackendTranslatesStatusErrors(t *testing.T) {
	backend := newSDKBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`)
	})

	_, err := backend.Generate(context.Background(), GenerateRequest{Model: "m", Parts: []Part{TextPart("x")}})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected code %d", statusErr.Code)
	}
	if _, transient := transientRetryAfter(err); !transient {
		t.Fatal("expected 503 to classify as transient")
	}
}

func TestNewGenAIBackendRequiresKey(t *testing.T) {
	if _, err := NewGenAIBackend(context.Background(), BackendConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
