package classify

import (
	"context"
	"strings"

	"filmroom/internal/services/gemini"
)

// Unknown marks a field the model could not determine.
const Unknown = "unknown"

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

const fallbackReasonLimit = 200

// Result is the offense/defense assignment for one frame.
type Result struct {
	OffenseSide        string `json:"offense_side"`
	DefenseSide        string `json:"defense_side"`
	OffenseTeam        string `json:"offense_team"`
	DefenseTeam        string `json:"defense_team"`
	OffenseJerseyColor string `json:"offense_jersey_color"`
	DefenseJerseyColor string `json:"defense_jersey_color"`
	Confidence         string `json:"confidence"`
	Reasoning          string `json:"reasoning"`
	// FallbackReason is set only on synthesized records.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// IsFallback reports whether r was synthesized after a failed call.
func (r Result) IsFallback() bool {
	return r.FallbackReason != ""
}

// Fallback synthesizes the all-unknown record used when classification
// fails. The error text is truncated to keep artifacts readable.
func Fallback(err error) Result {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	if runes := []rune(reason); len(runes) > fallbackReasonLimit {
		reason = string(runes[:fallbackReasonLimit])
	}
	return Result{
		OffenseSide:        Unknown,
		DefenseSide:        Unknown,
		OffenseTeam:        Unknown,
		DefenseTeam:        Unknown,
		OffenseJerseyColor: Unknown,
		DefenseJerseyColor: Unknown,
		Confidence:         ConfidenceLow,
		Reasoning:          "fallback_due_to_error: " + reason,
		FallbackReason:     reason,
	}
}

// Generator is the structured-output surface of the model gateway.
type Generator interface {
	GenerateJSON(ctx context.Context, model string, parts []gemini.Part, target any) (string, error)
}

// Classifier runs the offense/defense call.
type Classifier struct {
	gen   Generator
	model string
}

// New constructs a Classifier for model.
func New(gen Generator, model string) *Classifier {
	return &Classifier{gen: gen, model: model}
}

// Model returns the model identifier used for classification.
func (c *Classifier) Model() string {
	return c.model
}

// Classify asks the model about frame, an ACTIVE uploaded still.
func (c *Classifier) Classify(ctx context.Context, frame gemini.File) (Result, error) {
	var out Result
	if _, err := c.gen.GenerateJSON(ctx, c.model, []gemini.Part{gemini.FilePart(frame), gemini.TextPart(Prompt)}, &out); err != nil {
		return Result{}, err
	}
	return normalize(out), nil
}

func normalize(r Result) Result {
	r.OffenseSide = side(r.OffenseSide)
	r.DefenseSide = side(r.DefenseSide)
	r.OffenseTeam = orUnknown(r.OffenseTeam)
	r.DefenseTeam = orUnknown(r.DefenseTeam)
	r.OffenseJerseyColor = orUnknown(r.OffenseJerseyColor)
	r.DefenseJerseyColor = orUnknown(r.DefenseJerseyColor)
	switch confidence := strings.ToLower(strings.TrimSpace(r.Confidence)); confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		r.Confidence = confidence
	default:
		r.Confidence = ConfidenceLow
	}
	r.Reasoning = strings.TrimSpace(r.Reasoning)
	r.FallbackReason = ""
	return r
}

func side(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "left", "right":
		return v
	default:
		return Unknown
	}
}

func orUnknown(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return Unknown
	}
	return value
}
