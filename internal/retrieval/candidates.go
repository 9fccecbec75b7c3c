package retrieval

import (
	"filmroom/internal/structured"
	"filmroom/internal/textutil"
	"filmroom/internal/vectorstore"
)

// Candidate set sources.
const (
	SourceRetrieval = "retrieval"
	SourceDefaults  = "defaults"
)

var (
	rankedKeys = []string{"top_plays", "top_3_plays", "play_candidates", "likely_plays", "predicted_plays", "plays"}
	singleKeys = []string{"play", "play_call", "play_type", "play_concept", "concept", "label"}
	itemKeys   = []string{"play", "name", "label", "concept"}
	nestedKeys = []string{"prediction", "analysis", "final", "output", "result"}
)

const maxNestingDepth = 2

// ExampleLabels records the labels found in one example.
type ExampleLabels struct {
	ID       string   `json:"id"`
	Strategy string   `json:"strategy,omitempty"`
	Labels   []string `json:"labels"`
}

// CandidateSet is the ordered, deduplicated list of play concepts used to
// ground the final narrative.
type CandidateSet struct {
	Labels     []string        `json:"labels"`
	Source     string          `json:"source"`
	PerExample []ExampleLabels `json:"per_example"`
}

var labelStrategies = []structured.Strategy[[]string]{
	{Name: "ranked list", Extract: func(v any) ([]string, bool) { return searchContainers(v, rankedList) }},
	{Name: "single label", Extract: func(v any) ([]string, bool) { return searchContainers(v, singleLabel) }},
}

// ExtractCandidates collects labels from examples in order. Labels are
// deduplicated within each example and then across examples, keeping first
// occurrences. When nothing is found the normalized defaults are used.
func ExtractCandidates(examples []vectorstore.Example, defaults []string) CandidateSet {
	set := CandidateSet{PerExample: make([]ExampleLabels, 0, len(examples))}
	var all []string
	for _, example := range examples {
		found := ExampleLabels{ID: example.ID, Labels: []string{}}
		var raw []string
		for _, payload := range []any{structured.FromJSONString(example.Document), map[string]any(example.Metadata)} {
			labels, strategy, err := structured.FirstMatch(payload, labelStrategies)
			if err != nil {
				continue
			}
			if found.Strategy == "" {
				found.Strategy = strategy
			}
			raw = append(raw, labels...)
		}
		found.Labels = textutil.UniqueLabels(raw)
		all = append(all, found.Labels...)
		set.PerExample = append(set.PerExample, found)
	}

	set.Labels = textutil.UniqueLabels(all)
	set.Source = SourceRetrieval
	if len(set.Labels) == 0 {
		set.Labels = textutil.UniqueLabels(defaults)
		set.Source = SourceDefaults
	}
	return set
}

// searchContainers applies extract to the payload root and then to objects
// nested under nestedKeys, breadth first, up to maxNestingDepth levels.
func searchContainers(value any, extract func(map[string]any) ([]string, bool)) ([]string, bool) {
	level := []map[string]any{}
	if root, ok := structured.Object(value); ok {
		level = append(level, root)
	}
	for depth := 0; depth <= maxNestingDepth && len(level) > 0; depth++ {
		var next []map[string]any
		for _, obj := range level {
			if labels, ok := extract(obj); ok {
				return labels, true
			}
			for _, key := range nestedKeys {
				if child, ok := structured.Object(structured.FromJSONString(obj[key])); ok {
					next = append(next, child)
				}
			}
		}
		level = next
	}
	return nil, false
}

func rankedList(obj map[string]any) ([]string, bool) {
	for _, key := range rankedKeys {
		items, ok := structured.List(obj[key])
		if !ok {
			continue
		}
		var labels []string
		for _, item := range items {
			if label, ok := itemLabel(item); ok {
				labels = append(labels, label)
			}
		}
		if len(labels) > 0 {
			return labels, true
		}
	}
	return nil, false
}

func singleLabel(obj map[string]any) ([]string, bool) {
	for _, key := range singleKeys {
		if label, ok := structured.String(obj[key]); ok {
			return []string{label}, true
		}
	}
	return nil, false
}

func itemLabel(item any) (string, bool) {
	if label, ok := structured.String(item); ok {
		return label, true
	}
	obj, ok := structured.Object(item)
	if !ok {
		return "", false
	}
	for _, key := range itemKeys {
		if label, ok := structured.String(obj[key]); ok {
			return label, true
		}
	}
	return "", false
}
