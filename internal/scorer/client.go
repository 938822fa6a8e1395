package scorer

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/skillscan/backend/internal/models"
)

// LLMClient is the interface both LLM scorer backends satisfy.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

const scoringSystemPrompt = `You grade the quality of a student's written reasoning about how they solved a problem. Respond with a single decimal number between 0.0 and 1.0 and nothing else. 0.0 means no meaningful reasoning; 1.0 means clear, step-by-step reasoning with explicit justification.`

// LLMScorer grades free-text reasoning with a language model. Any failure
// falls back to the deterministic heuristic so scoring never errors.
type LLMScorer struct {
	llm      LLMClient
	fallback Heuristic
	timeout  time.Duration
}

func NewLLMScorer(llm LLMClient, fallback Heuristic) *LLMScorer {
	return &LLMScorer{llm: llm, fallback: fallback, timeout: 15 * time.Second}
}

func (s *LLMScorer) Score(r *models.Reflection) float64 {
	if r == nil {
		return 0
	}
	if strings.TrimSpace(r.Reasoning) == "" {
		return s.fallback.Score(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Reasoning:\n%s\n\nStrategy described:\n%s", r.Reasoning, r.Strategy)
	raw, err := s.llm.Complete(ctx, scoringSystemPrompt, userPrompt)
	if err != nil {
		log.Printf("WARN: LLM reflection scoring failed, using heuristic: %v", err)
		return s.fallback.Score(r)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || score < 0 || score > 1 {
		log.Printf("WARN: unusable LLM score %q, using heuristic", raw)
		return s.fallback.Score(r)
	}
	return score
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   16,
		Temperature: param.NewOpt(0.0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return "", err
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Retrying Anthropic API call in %v (attempt %d)", sleepDuration, attempt+1)
			time.Sleep(sleepDuration)
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Printf("Anthropic API attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	return "0.5", nil
}
