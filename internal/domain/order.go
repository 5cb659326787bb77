package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPendingPayment   OrderStatus = "pending_payment"
	OrderPaid             OrderStatus = "paid"
	OrderFortuneGenerated OrderStatus = "fortune_generated"
	OrderFailed           OrderStatus = "failed"
)

const (
	BirthDateLayout = "2006-01-02"
	MaxStoryLength  = 200
)

var birthDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// orderTransitions lists, per status, the statuses an order may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPaid},
	OrderPaid:           {OrderFortuneGenerated, OrderFailed},
	OrderFailed:         {OrderFortuneGenerated},
}

type Order struct {
	ID        uuid.UUID
	Name      string
	BirthDate string
	Story     *string
	Status    OrderStatus
	Amount    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the order to next, refusing anything outside the lifecycle.
func (o *Order) Transition(next OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidState, o.ID, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}

// NeedsFortune reports whether the order has been paid but has no stored letter yet.
func (o *Order) NeedsFortune() bool {
	return o.Status == OrderPaid || o.Status == OrderFailed
}

type OrderInput struct {
	Name      string
	BirthDate string
	Story     string
}

// Normalize validates the raw form input and returns the trimmed name and
// story (nil when blank). The first violated constraint is reported.
func (in OrderInput) Normalize() (name string, birthDate string, story *string, err error) {
	name = strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", nil, NewValidationError("name", "name is required")
	}

	birthDate = strings.TrimSpace(in.BirthDate)
	if !birthDatePattern.MatchString(birthDate) {
		return "", "", nil, NewValidationError("birth_date", "birth date must be formatted as YYYY-MM-DD")
	}
	// year 0 parses but has no DATE representation
	if t, perr := time.Parse(BirthDateLayout, birthDate); perr != nil || t.Year() < 1 {
		return "", "", nil, NewValidationError("birth_date", "birth date is not a valid calendar date")
	}

	if utf8.RuneCountInString(in.Story) > MaxStoryLength {
		return "", "", nil, NewValidationError("story", fmt.Sprintf("story must be at most %d characters", MaxStoryLength))
	}
	if s := strings.TrimSpace(in.Story); s != "" {
		story = &s
	}
	return name, birthDate, story, nil
}

func NewOrder(in OrderInput, amount int64, now time.Time) (*Order, error) {
	name, birthDate, story, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	return &Order{
		ID:        uuid.New(),
		Name:      name,
		BirthDate: birthDate,
		Story:     story,
		Status:    OrderPendingPayment,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) StoryText() string {
	if o.Story == nil {
		return ""
	}
	return *o.Story
}
