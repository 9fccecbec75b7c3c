package structured

import (
	"errors"
	"testing"
)

func TestLookupNested(t *testing.T) {
	value, err := Decode([]byte(`{"embeddings":[{"values":[0.5,1]}],"meta":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := Lookup(value, "embeddings", "0", "values")
	if !ok {
		t.Fatal("expected lookup to succeed")
	}
	vec, ok := Float32s(got)
	if !ok || len(vec) != 2 || vec[0] != 0.5 || vec[1] != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if _, ok := Lookup(value, "embeddings", "3"); ok {
		t.Fatal("expected out of range index to miss")
	}
	if _, ok := Lookup(value, "meta", "k", "deeper"); ok {
		t.Fatal("expected lookup through string to miss")
	}
}

func TestFirstMatchStopsAtFirstSuccess(t *testing.T) {
	calls := 0
	strategies := []Strategy[string]{
		{Name: "never", Extract: func(any) (string, bool) { calls++; return "", false }},
		{Name: "first", Extract: func(v any) (string, bool) { calls++; return String(v) }},
		{Name: "unreached", Extract: func(any) (string, bool) { calls++; return "bad", true }},
	}
	got, name, err := FirstMatch[string]("hello", strategies)
	if err != nil {
		t.Fatalf("FirstMatch: %v", err)
	}
	if got != "hello" || name != "first" || calls != 2 {
		t.Fatalf("got %q via %q after %d calls", got, name, calls)
	}
}

func TestFirstMatchUnsupportedShape(t *testing.T) {
	strategies := []Strategy[[]float32]{
		{Name: "values", Extract: func(v any) ([]float32, bool) {
			inner, ok := Lookup(v, "values")
			if !ok {
				return nil, false
			}
			return Float32s(inner)
		}},
	}
	_, _, err := FirstMatch(map[string]any{"other": 1.0}, strategies)
	if !errors.Is(err, ErrUnsupportedShape) {
		t.Fatalf("expected ErrUnsupportedShape, got %v", err)
	}
}

func TestFromJSONString(t *testing.T) {
	value := FromJSONString(`  {"play": "mesh"} `)
	obj, ok := Object(value)
	if !ok || obj["play"] != "mesh" {
		t.Fatalf("expected decoded object, got %#v", value)
	}
	if got := FromJSONString("plain text"); got != "plain text" {
		t.Fatalf("expected plain text unchanged, got %#v", got)
	}
	if got := FromJSONString("{broken"); got != "{broken" {
		t.Fatalf("expected invalid JSON unchanged, got %#v", got)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := Decode([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestFloat32sRejectsMixedArrays(t *testing.T) {
	if _, ok := Float32s([]any{1.0, "x"}); ok {
		t.Fatal("expected mixed array to be rejected")
	}
	if _, ok := Float32s([]any{}); ok {
		t.Fatal("expected empty array to be rejected")
	}
}
