package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

const snippetRunes = 160

// DecodeJSON decodes a model reply into target. Candidates are tried in
// order: the reply as-is, the body of a ``` fence, then the widest {...} and
// [...] spans of that body. Each candidate decodes into a fresh value and
// target is replaced only on success, so a rejected reply leaves no fields
// behind. The first decode error is reported.
func DecodeJSON(content string, target any) error {
	dest := reflect.ValueOf(target)
	if dest.Kind() != reflect.Pointer || dest.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}
	candidates := jsonCandidates(content)
	if len(candidates) == 0 {
		return errors.New("empty reply")
	}
	var firstErr error
	for _, candidate := range candidates {
		fresh := reflect.New(dest.Elem().Type())
		err := json.Unmarshal([]byte(candidate), fresh.Interface())
		if err == nil {
			dest.Elem().Set(fresh.Elem())
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w (reply: %s)", firstErr, snippet(content))
}

func jsonCandidates(content string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	add(content)
	body := unfence(content)
	add(body)
	add(span(body, '{', '}'))
	add(span(body, '[', ']'))
	return out
}

// unfence returns the body of a leading ``` block, dropping a json tag.
func unfence(content string) string {
	body, ok := strings.CutPrefix(strings.TrimSpace(content), "```")
	if !ok {
		return content
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

func span(s string, left, right byte) string {
	start := strings.IndexByte(s, left)
	end := strings.LastIndexByte(s, right)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetRunes {
		clean = string(runes[:snippetRunes]) + "..."
	}
	return clean
}
