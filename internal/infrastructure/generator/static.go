package generator

import (
	"context"
	"fmt"

	"fortune-letter/internal/domain"
)

const StaticModel = "static-template"

// Static writes a fixed letter without calling any provider. It exists for
// local runs and rehearsals where no API key is available.
type Static struct{}

func (Static) Model() string { return StaticModel }

func (Static) Generate(ctx context.Context, in Input) (*domain.FortuneContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.FortuneContent{
		OverallEnergy:   fmt.Sprintf("The stars above %s burn steady tonight; the day born on %s carries a calm and patient current.", in.Name, in.BirthDate),
		InterviewEnergy: "When you are asked to speak, the words you prepared will find their way. Trust the hours you have already given.",
		ClosingMessage:  fmt.Sprintf("Go gently, %s. The road ahead is kinder than it looks from here.", in.Name),
	}, nil
}

// New picks the generator variant named by kind.
func New(kind, apiKey, baseURL, model string) (Generator, error) {
	switch kind {
	case "", "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("generator %q requires OPENAI_API_KEY", "openai")
		}
		return NewOpenAIGenerator(apiKey, baseURL, model), nil
	case "static":
		return Static{}, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", kind)
	}
}
