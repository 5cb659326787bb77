package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fortune-letter/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = "gpt-4o-mini"

	temperature = 0.8
	maxTokens   = 1000
)

const systemPrompt = `You are a mysterious fortune teller who reads starlight and the energy of the cosmos and writes a letter to your client.

Tone rules:
- Voice: archaic and mystical ("it is foretold...", "I sense a current of..."), never overdone.
- Personalisation: use the client's name naturally and refer to their story when one is given.
- Forbidden: concrete pass/fail predictions, heavy warnings or curses, promotional wording.
- Required: close with comfort and encouragement that leaves the reader feeling at ease.
- Length: 3-5 sentences per section, 400-600 characters overall.

Answer ONLY with JSON in exactly this shape:
{
  "overall_energy": "the overall energy of the day (3-5 sentences)",
  "interview_energy": "the energy around interviews and exams (3-5 sentences)",
  "closing_message": "the fortune teller's parting words, warm encouragement (2-3 sentences)"
}`

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAIGenerator struct {
	client chatClient
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *OpenAIGenerator) Model() string { return g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, in Input) (*domain.FortuneContent, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(in)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: chat completion: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return ParseContent(resp.Choices[0].Message.Content)
}

// ParseContent decodes the model output and fails closed: every section
// must be present and non-blank.
func ParseContent(raw string) (*domain.FortuneContent, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrGeneration)
	}

	var content domain.FortuneContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("%w: malformed content: %w", ErrGeneration, err)
	}
	if !content.Complete() {
		return nil, fmt.Errorf("%w: missing letter section", ErrGeneration)
	}

	content.OverallEnergy = strings.TrimSpace(content.OverallEnergy)
	content.InterviewEnergy = strings.TrimSpace(content.InterviewEnergy)
	content.ClosingMessage = strings.TrimSpace(content.ClosingMessage)
	return &content, nil
}

func userPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Client details:\n")
	fmt.Fprintf(&b, "Name: %s\n", in.Name)
	fmt.Fprintf(&b, "Birth date: %s\n", in.BirthDate)
	if in.Story != nil && *in.Story != "" {
		fmt.Fprintf(&b, "Story: %s\n", *in.Story)
	}
	b.WriteString("\nWrite the fortune teller's letter based on the details above.")
	return b.String()
}
