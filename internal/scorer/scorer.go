// Package scorer grades the quality of a test taker's structured
// self-report (reflection). Scoring is pluggable so the heuristic can
// evolve without touching the engine's numeric core.
package scorer

import (
	"log"
	"os"
	"strings"

	"github.com/skillscan/backend/internal/models"
)

// Scorer maps a reflection, or its absence, to a score in [0, 1].
type Scorer interface {
	Score(r *models.Reflection) float64
}

// New picks a scorer implementation from the environment. The default is
// the deterministic heuristic; set REFLECTION_SCORER=llm to grade free-text
// reasoning with the Anthropic API instead.
func New() Scorer {
	if os.Getenv("REFLECTION_SCORER") == "llm" {
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-opus-4-5-20251101"
		}
		if os.Getenv("MOCK_SCORER") == "true" {
			log.Println("Reflection scorer using mock LLM")
			return NewLLMScorer(NewMockClient(), Heuristic{})
		}
		log.Println("Reflection scorer using Anthropic API:", model)
		return NewLLMScorer(NewAPIClient(model), Heuristic{})
	}
	return Heuristic{}
}

// reasoningIndicators are markers of explicit reasoning structure: causal
// connectives, sequencing, comparison, exemplification, and evaluation.
var reasoningIndicators = []string{
	"because", "therefore", "since", "due to", "as a result",
	"first", "then", "next", "finally", "step",
	"similar", "different", "compare", "contrast",
	"example", "instance", "such as", "like",
	"analyze", "evaluate", "consider", "examine",
}

// Heuristic is the default scorer: indicator-word and length analysis of
// the free-text reasoning. Fully deterministic.
type Heuristic struct{}

func (Heuristic) Score(r *models.Reflection) float64 {
	if r == nil {
		return 0
	}

	reasoning := strings.ToLower(r.Reasoning)

	score := 0.0
	for _, indicator := range reasoningIndicators {
		if strings.Contains(reasoning, indicator) {
			score += 0.1
		}
	}

	// Longer reasoning earns a detail bonus
	if len(reasoning) > 50 {
		score += 0.2
	}
	if len(reasoning) > 100 {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
