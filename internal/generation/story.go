// Story text generation against a chat-completion provider. The provider is
// injected through the narrow ChatCompleter interface so tests substitute a
// fake; the real *openai.Client satisfies it directly.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const storySystemPrompt = `You are a master storyteller specializing in Vedic Hindu mythology. You have deep knowledge of the Ramayana, Mahabharata, Puranas, Vedas, and other sacred texts.

Create engaging, authentic stories that:
- Draw from genuine Vedic traditions and characters
- Include moral lessons and spiritual insights
- Use appropriate Sanskrit terms and names
- Maintain cultural accuracy and respect
- Are suitable for all audiences
- Include vivid descriptions for visualization

Respond with JSON in this exact format:
{
    "title": "Story title",
    "content": "Full story content with multiple paragraphs",
    "scenes": ["Scene 1 description", "Scene 2 description", "Scene 3 description"],
    "characters": ["Character 1", "Character 2", "Character 3"],
    "moral": "Key moral or spiritual lesson"
}`

const storyUserPromptFmt = `Create a Vedic mythology story based on this prompt: %s

The story should be engaging, authentic to Vedic traditions, and include:
- Rich character development
- Vivid scene descriptions
- Cultural and spiritual elements
- A meaningful conclusion with moral teachings

Make it approximately 800-1200 words long.`

// ChatCompleter is the narrow provider seam used by StoryGenerator.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Draft is the parsed structured response of one story generation.
type Draft struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Scenes     []string `json:"scenes"`
	Characters []string `json:"characters"`
	Moral      string   `json:"moral"`
}

// StoryGenerator produces story drafts with bounded retry and error
// classification. Safe for concurrent use.
type StoryGenerator struct {
	completer  ChatCompleter
	model      string
	maxRetries int
	log        zerolog.Logger
}

// NewStoryGenerator wires a generator over the given provider. maxRetries
// is the total attempt bound; values below 1 are raised to 1.
func NewStoryGenerator(c ChatCompleter, model string, maxRetries int, log zerolog.Logger) *StoryGenerator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &StoryGenerator{completer: c, model: model, maxRetries: maxRetries, log: log}
}

// Generate produces a story draft for the prompt. On failure it returns a
// *ClassifiedError: terminal kinds (quota, permission) abort on first
// occurrence, retryable kinds (timeout, malformed response, unknown) are
// retried up to the attempt bound and then surface as
// KindMaxRetriesExceeded.
func (g *StoryGenerator) Generate(ctx context.Context, prompt string) (*Draft, error) {
	var lastErr *ClassifiedError

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		draft, cerr := g.attempt(ctx, prompt)
		if cerr == nil {
			return draft, nil
		}
		lastErr = cerr
		g.log.Warn().
			Int("attempt", attempt).
			Str("kind", string(cerr.Kind)).
			Err(cerr.Err).
			Msg("story generation attempt failed")
		if !cerr.Retryable() {
			return nil, cerr
		}
	}

	return nil, &ClassifiedError{Kind: KindMaxRetriesExceeded, Err: lastErr}
}

func (g *StoryGenerator) attempt(ctx context.Context, prompt string) (*Draft, *ClassifiedError) {
	start := time.Now()
	resp, err := g.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: storySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(storyUserPromptFmt, prompt)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		aiRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return nil, Classify(err)
	}

	aiRequestsTotal.WithLabelValues(g.model, "success").Inc()
	if resp.Usage.TotalTokens > 0 {
		aiTotalTokens.WithLabelValues(g.model).Observe(float64(resp.Usage.TotalTokens))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &ClassifiedError{Kind: KindJSONError, Err: errors.New("empty response from provider")}
	}

	draft, err := parseDraft(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &ClassifiedError{Kind: KindJSONError, Err: err}
	}

	g.log.Info().
		Str("title", draft.Title).
		Int("scenes", len(draft.Scenes)).
		Dur("took", time.Since(start)).
		Msg("story draft generated")
	return draft, nil
}

// parseDraft decodes a provider response into a Draft, tolerating markdown
// code fences around the JSON object. Title and content are mandatory.
func parseDraft(raw string) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(StripFences(raw)), &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Content) == "" {
		return nil, errors.New("draft missing title or content")
	}
	return &d, nil
}

// StripFences removes a wrapping markdown code fence (```json ... ``` or
// plain ```) from a provider response. Text without fences passes through
// unchanged.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	// Drop an optional language tag on the opening fence line.
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		first := strings.TrimSpace(t[:i])
		if first == "" || !strings.ContainsAny(first, "{[") {
			t = t[i+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
