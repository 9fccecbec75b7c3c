package pipeline

import (
	"encoding/json"
	"fmt"

	"filmroom/internal/classify"
	"filmroom/internal/motion"
	"filmroom/internal/retrieval"
	"filmroom/internal/services/gemini"
	"filmroom/internal/vectorstore"
)

// Section headers that introduce each grounding block of the final prompt.
const (
	headerAssignment       = "OFFENSE/DEFENSE ASSIGNMENT JSON (GROUND TRUTH):\n"
	headerMotion           = "CV MOTION JSON (GROUND TRUTH):\n"
	headerExamples         = "RETRIEVED EXAMPLES (stored JSON documents, nearest first):\n"
	headerCandidates       = "PLAY CANDIDATES (ranked, from retrieved examples):\n"
	headerDefaultCandidate = "PLAY CANDIDATES (default list, retrieved examples carried no labels):\n"
)

// FinalPrompt instructs the final model. It is sent after the clip and the
// grounding blocks.
const FinalPrompt = `ROLE: You are an NFL defensive coordinator with 15+ years of film-room experience breaking down opponent tape before the snap.

YOU ARE GIVEN:
- The clip itself.
- An OFFENSE/DEFENSE assignment JSON. Treat it as GROUND TRUTH.
- A CV MOTION JSON measured from sampled frames. Treat it as GROUND TRUTH.
- Retrieved examples of similar plays. Use them only to calibrate schematic judgement.
- A ranked list of play candidates drawn from those examples.

HARD RULES:
- Write exactly ONE paragraph of plain prose.
- No bullets, lists, headings, JSON, or markdown.
- No probabilities or percentages.
- Describe the pre-snap picture only. Do not narrate what happens after the snap.
- Name the offense and defense by team and jersey colour exactly as the assignment JSON gives them. If a field is "unknown", say it could not be determined.
- Describe motion exactly as the CV motion JSON reports it. Do not claim motion it does not report.
- Do not invent team-specific tendencies from the retrieved examples.

THE PARAGRAPH MUST COVER:
which side of the screen each unit occupies with team names and jersey colours, the offensive formation and any pre-snap motion, the defensive front and coverage shell, the top 3 most likely play concepts ranked from most to least likely (prefer the play candidates when they fit the picture), and a brief justification tying the ranking to what is visible.

Return exactly ONE paragraph and nothing else.`

// FinalParts assembles the ordered parts of the narrative request: the clip,
// the grounding blocks, then the instructions.
func FinalParts(clipFile gemini.File, c classify.Result, report motion.Report, examples []vectorstore.Example, candidates retrieval.CandidateSet) ([]gemini.Part, error) {
	assignment, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode classification: %w", err)
	}
	motionJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode motion report: %w", err)
	}
	if examples == nil {
		examples = []vectorstore.Example{}
	}
	examplesJSON, err := json.Marshal(examples)
	if err != nil {
		return nil, fmt.Errorf("encode examples: %w", err)
	}
	labels := candidates.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("encode candidates: %w", err)
	}
	candidateHeader := headerCandidates
	if candidates.Source == retrieval.SourceDefaults {
		candidateHeader = headerDefaultCandidate
	}
	return []gemini.Part{
		gemini.FilePart(clipFile),
		gemini.TextPart(headerAssignment + string(assignment)),
		gemini.TextPart(headerMotion + string(motionJSON)),
		gemini.TextPart(headerExamples + string(examplesJSON)),
		gemini.TextPart(candidateHeader + string(labelsJSON)),
		gemini.TextPart(FinalPrompt),
	}, nil
}
