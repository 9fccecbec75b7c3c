package retrieval

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"filmroom/internal/textutil"
	"filmroom/internal/vectorstore"
)

var testDefaults = []string{"inside zone", "outside zone", "power"}

func TestExtractCandidatesShapes(t *testing.T) {
	tests := []struct {
		name     string
		example  vectorstore.Example
		want     []string
		strategy string
	}{
		{
			name:     "ranked strings at root",
			example:  vectorstore.Example{ID: "a", Document: `{"top_plays":["Inside Zone","  play action   boot "]}`},
			want:     []string{"inside zone", "play action boot"},
			strategy: "ranked list",
		},
		{
			name:     "ranked objects nested",
			example:  vectorstore.Example{ID: "b", Document: `{"prediction":{"top_3_plays":[{"play":"Mesh"},{"name":"Stick"},{"rank":3}]}}`},
			want:     []string{"mesh", "stick"},
			strategy: "ranked list",
		},
		{
			name:     "single label two levels deep",
			example:  vectorstore.Example{ID: "c", Document: `{"output":{"result":{"play_call":"HB Counter"}}}`},
			want:     []string{"hb counter"},
			strategy: "single label",
		},
		{
			name:     "nested payload stored as string",
			example:  vectorstore.Example{ID: "d", Document: `{"final":"{\"plays\":[\"Smash\"]}"}`},
			want:     []string{"smash"},
			strategy: "ranked list",
		},
		{
			name:     "metadata label",
			example:  vectorstore.Example{ID: "e", Document: "free text notes", Metadata: map[string]any{"concept": "Duo"}},
			want:     []string{"duo"},
			strategy: "single label",
		},
		{
			name:     "duplicates within example",
			example:  vectorstore.Example{ID: "f", Document: `{"plays":["Slant","slant","SLANT "]}`, Metadata: map[string]any{"play": "Slant"}},
			want:     []string{"slant"},
			strategy: "ranked list",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := ExtractCandidates([]vectorstore.Example{tt.example}, testDefaults)
			if set.Source != SourceRetrieval {
				t.Fatalf("expected retrieval source, got %+v", set)
			}
			if !slices.Equal(set.Labels, tt.want) {
				t.Fatalf("labels = %q, want %q", set.Labels, tt.want)
			}
			if got := set.PerExample[0].Strategy; got != tt.strategy {
				t.Fatalf("strategy = %q, want %q", got, tt.strategy)
			}
		})
	}
}

func TestExtractCandidatesGlobalDedupKeepsFirstSeen(t *testing.T) {
	examples := []vectorstore.Example{
		{ID: "1", Document: `{"top_plays":["Power","Counter"]}`},
		{ID: "2", Document: `{"top_plays":["counter","Jet Sweep","POWER"]}`},
	}
	set := ExtractCandidates(examples, testDefaults)
	if want := []string{"power", "counter", "jet sweep"}; !slices.Equal(set.Labels, want) {
		t.Fatalf("labels = %q, want %q", set.Labels, want)
	}
	if len(set.PerExample) != 2 || len(set.PerExample[1].Labels) != 3 {
		t.Fatalf("per-example findings should keep their own dedup: %+v", set.PerExample)
	}
}

func TestExtractCandidatesFallsBackToDefaults(t *testing.T) {
	examples := []vectorstore.Example{
		{ID: "1", Document: "not json"},
		{ID: "2", Document: `{"top_plays":[]}`},
		{ID: "3", Document: `{"notes":"nothing here"}`},
	}
	for _, input := range [][]vectorstore.Example{nil, examples} {
		set := ExtractCandidates(input, []string{"Inside Zone", "inside  zone", "Screen"})
		if set.Source != SourceDefaults {
			t.Fatalf("expected defaults, got %+v", set)
		}
		if want := []string{"inside zone", "screen"}; !slices.Equal(set.Labels, want) {
			t.Fatalf("labels = %q, want %q", set.Labels, want)
		}
	}
}

func TestCandidateSetInvariants(t *testing.T) {
	labelGen := rapid.SampledFrom([]string{"Inside Zone", "inside zone", " Power ", "POWER", "mesh", "", "  ", "Play  Action"})
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(t, "examples")
		var examples []vectorstore.Example
		for i := 0; i < n; i++ {
			labels := rapid.SliceOfN(labelGen, 0, 4).Draw(t, "labels")
			items := make([]any, len(labels))
			for j, label := range labels {
				items[j] = label
			}
			examples = append(examples, vectorstore.Example{
				ID:       rapid.StringMatching(`[a-z]{1,4}`).Draw(t, "id"),
				Metadata: map[string]any{"plays": items},
			})
		}
		set := ExtractCandidates(examples, testDefaults)
		if len(set.Labels) == 0 {
			t.Fatal("candidate set must never be empty")
		}
		seen := map[string]bool{}
		for _, label := range set.Labels {
			if label != textutil.NormalizeLabel(label) {
				t.Fatalf("label %q not normalized", label)
			}
			if seen[label] {
				t.Fatalf("duplicate label %q in %q", label, set.Labels)
			}
			seen[label] = true
		}
	})
}
