package generator

import (
	"context"
	"errors"

	"fortune-letter/internal/domain"
)

var ErrGeneration = errors.New("generation error")

type Input struct {
	Name      string
	BirthDate string
	Story     *string
}

func InputFromOrder(o *domain.Order) Input {
	return Input{Name: o.Name, BirthDate: o.BirthDate, Story: o.Story}
}

// Generator turns order details into a complete three-section letter.
// Implementations never return partial content.
type Generator interface {
	Generate(ctx context.Context, in Input) (*domain.FortuneContent, error)
	Model() string
}
