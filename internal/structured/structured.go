// Package structured walks decoded JSON values (maps, slices, strings,
// numbers) with small named extraction strategies.
//
// Callers describe each payload shape they understand as a Strategy and hand
// the ordered list to FirstMatch, which stops at the first strategy that
// recognises the value and reports ErrUnsupportedShape when none does.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedShape is returned when no strategy recognises a value.
var ErrUnsupportedShape = errors.New("unsupported shape")

// Strategy extracts a T from a generic value.
type Strategy[T any] struct {
	Name    string
	Extract func(value any) (T, bool)
}

// FirstMatch applies strategies in order and returns the first successful
// result together with the name of the strategy that produced it.
func FirstMatch[T any](value any, strategies []Strategy[T]) (T, string, error) {
	for _, strategy := range strategies {
		if out, ok := strategy.Extract(value); ok {
			return out, strategy.Name, nil
		}
	}
	var zero T
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return zero, "", fmt.Errorf("%w: tried %s", ErrUnsupportedShape, strings.Join(names, ", "))
}

// Decode parses JSON into a generic value. Numbers decode as float64.
func Decode(data []byte) (any, error) {
	var value any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}

// FromJSONString decodes s when it holds a JSON object or array and returns
// s unchanged otherwise. Stored documents are often JSON serialised as a string.
func FromJSONString(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return value
	}
	decoded, err := Decode([]byte(trimmed))
	if err != nil {
		return value
	}
	return decoded
}

// Lookup follows path through nested objects and arrays. Array steps are
// decimal indexes.
func Lookup(value any, path ...string) (any, bool) {
	current := value
	for _, step := range path {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[step]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(step)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Object returns value as a JSON object.
func Object(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}

// List returns value as a JSON array.
func List(value any) ([]any, bool) {
	l, ok := value.([]any)
	return l, ok
}

// String returns value as a non-blank string.
func String(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Float32s converts a non-empty numeric array to []float32.
func Float32s(value any) ([]float32, bool) {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]float32, len(list))
	for i, item := range list {
		switch n := item.(type) {
		case float64:
			out[i] = float32(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, false
			}
			out[i] = float32(f)
		default:
			return nil, false
		}
	}
	return out, true
}
