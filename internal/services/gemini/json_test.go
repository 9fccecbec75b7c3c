package gemini

import (
	"strings"
	"testing"
)

func TestDecodeJSONVariants(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", `{"confidence":"high"}`, false},
		{"fenced", "```json\n{\"confidence\":\"high\"}\n```", false},
		{"prose around", "Here you go: {\"confidence\":\"high\"} hope that helps", false},
		{"empty", "   ", true},
		{"no object", "I cannot tell from this frame.", true},
		{"fenced without tag", "```\n{\"confidence\":\"high\"}\n```", false},
		{"unterminated fence", "```json\n{\"confidence\":\"high\"}", false},
		{"trailing comma", `{"confidence":"high",}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Confidence string `json:"confidence"`
			}
			err := DecodeJSON(tt.content, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.content)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if out.Confidence != "high" {
				t.Fatalf("unexpected decode %+v", out)
			}
		})
	}
}

func TestDecodeJSONLeavesTargetOnTypeError(t *testing.T) {
	out := struct {
		OffenseSide string `json:"offense_side"`
		Confidence  string `json:"confidence"`
	}{OffenseSide: "unset"}
	if err := DecodeJSON(`{"offense_side":"left","confidence":5}`, &out); err == nil {
		t.Fatal("expected type error")
	}
	if out.OffenseSide != "unset" {
		t.Fatalf("rejected reply leaked into target: %+v", out)
	}
}

func TestDecodeJSONRejectsNonPointer(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON(`{"a":1}`, out); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
}

func TestDecodeJSONErrorQuotesReply(t *testing.T) {
	var out map[string]any
	err := DecodeJSON("The offense shows trips right.", &out)
	if err == nil || !strings.Contains(err.Error(), "reply: The offense shows trips right.") {
		t.Fatalf("expected reply snippet in error, got %v", err)
	}
}

func TestDecodeJSONArrayReply(t *testing.T) {
	var out []string
	if err := DecodeJSON("Plays: [\"mesh\", \"stick\"]", &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(out) != 2 || out[1] != "stick" {
		t.Fatalf("unexpected decode %v", out)
	}
}

func TestSnippetTruncates(t *testing.T) {
	got := snippet(strings.Repeat("a", 400))
	if len(got) != snippetRunes+3 {
		t.Fatalf("expected %d runes plus ellipsis, got %d", snippetRunes, len(got))
	}
}
