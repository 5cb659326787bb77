package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type FortuneContent struct {
	OverallEnergy   string `json:"overall_energy"`
	InterviewEnergy string `json:"interview_energy"`
	ClosingMessage  string `json:"closing_message"`
}

// Complete reports whether every section of the letter carries text.
func (c FortuneContent) Complete() bool {
	return strings.TrimSpace(c.OverallEnergy) != "" &&
		strings.TrimSpace(c.InterviewEnergy) != "" &&
		strings.TrimSpace(c.ClosingMessage) != ""
}

type Fortune struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Content    FortuneContent
	Model      string
	PromptHash string
	CreatedAt  time.Time
}
