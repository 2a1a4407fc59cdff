// Package workshop holds the room document shared by every participant and
// the rules that mutate it.
package workshop

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Step enumerates workshop phases.
type Step string

const (
	StepWaiting Step = "waiting"
	StepInput   Step = "input"
	StepVoting  Step = "voting"
	StepResults Step = "results"
)

// NextAction is the triage label applied to a card after voting.
type NextAction string

const (
	NextActionDoNow    NextAction = "do-now"
	NextActionDoNext   NextAction = "do-next"
	NextActionPostpone NextAction = "postpone"
	NextActionDontDo   NextAction = "dont-do"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidStep indicates an unknown workshop phase.
	ErrInvalidStep = errors.New("workshop: invalid step")
	// ErrInvalidNextAction indicates an unknown triage label.
	ErrInvalidNextAction = errors.New("workshop: invalid next action")
	// ErrInvalidIdentifier indicates an empty or oversized identifier.
	ErrInvalidIdentifier = errors.New("workshop: invalid identifier")
)

// ParseStep validates raw input and returns a Step.
func ParseStep(raw string) (Step, error) {
	switch step := Step(raw); step {
	case StepWaiting, StepInput, StepVoting, StepResults:
		return step, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStep, raw)
	}
}

// ParseNextAction validates raw input and returns a NextAction.
func ParseNextAction(raw string) (NextAction, error) {
	switch action := NextAction(raw); action {
	case NextActionDoNow, NextActionDoNext, NextActionPostpone, NextActionDontDo:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNextAction, raw)
	}
}

func validateIdentifier(kind, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidIdentifier, kind)
	}
	if len(trimmed) > maxIdentifierLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidIdentifier, kind, maxIdentifierLength)
	}
	return nil
}

// EpochMillis is a Unix time in milliseconds. Browsers send these as plain
// numbers, so fractional and exponent forms are accepted and truncated.
type EpochMillis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var whole int64
	if err := json.Unmarshal(data, &whole); err == nil {
		*m = EpochMillis(whole)
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value >= math.MaxInt64 || value < math.MinInt64 {
		return fmt.Errorf("workshop: epoch milliseconds out of range: %s", data)
	}
	*m = EpochMillis(math.Trunc(value))
	return nil
}

// Room is one workshop session's complete authoritative state.
type Room struct {
	ID                  string       `json:"id"`
	Cards               []Card       `json:"cards"`
	Users               []User       `json:"users"`
	AdminID             string       `json:"adminId"`
	Step                Step         `json:"step"`
	AISummary           *Summary     `json:"aiSummary,omitempty"`
	InputHeader         *string      `json:"inputHeader,omitempty"`
	InputDescription    *string      `json:"inputDescription,omitempty"`
	TimerEndTime        *EpochMillis `json:"timerEndTime,omitempty"`
	TimerDuration       *float64     `json:"timerDuration,omitempty"`
	WorkshopTitle       *string      `json:"workshopTitle,omitempty"`
	WorkshopDescription *string      `json:"workshopDescription,omitempty"`
	AnonymousVotes      *bool        `json:"anonymousVotes,omitempty"`
	AnonymousCards      *bool        `json:"anonymousCards,omitempty"`
}

// User is a participant.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Color       string `json:"color,omitempty"`
	CardColor   string `json:"cardColor,omitempty"`
	ColorIndex  int    `json:"colorIndex"`
	Ready       bool   `json:"ready"`
	IsAnonymous bool   `json:"isAnonymous,omitempty"`
}

// Card is one submitted idea, the unit being voted on.
type Card struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	AuthorID   string      `json:"authorId"`
	CreatedAt  EpochMillis `json:"createdAt"`
	Votes      []Vote      `json:"votes"`
	NextAction *NextAction `json:"nextAction,omitempty"`
}

// Vote is one user's placement of one card on the matrix. X and Y are the
// visual percentages; Importance and Complexity are the derived 1-10 scores.
type Vote struct {
	UserID     string      `json:"userId"`
	CardID     string      `json:"cardId"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Importance float64     `json:"importance"`
	Complexity float64     `json:"complexity"`
	Timestamp  EpochMillis `json:"timestamp"`
}

// Summary is the externally generated digest of a room. It is overwritten
// wholesale on every generation.
type Summary struct {
	KeyInsights   []string    `json:"keyInsights"`
	AISuggestions []string    `json:"aiSuggestions"`
	WordCloud     []TopicWord `json:"wordCloud"`
	GeneratedAt   int64       `json:"generatedAt"`
}

// TopicWord is a weighted theme extracted from the cards.
type TopicWord struct {
	Topic  string  `json:"topic"`
	Weight float64 `json:"weight"`
}

func (r *Room) findUser(userID string) *User {
	for index := range r.Users {
		if r.Users[index].ID == userID {
			return &r.Users[index]
		}
	}
	return nil
}

func (r *Room) findCard(cardID string) *Card {
	for index := range r.Cards {
		if r.Cards[index].ID == cardID {
			return &r.Cards[index]
		}
	}
	return nil
}

// UserName returns the display name of a participant, or "" when unknown.
func (r *Room) UserName(userID string) string {
	if user := r.findUser(userID); user != nil {
		return user.Name
	}
	return ""
}

// normalizeCollections guarantees cards, users and votes encode as arrays.
func (r *Room) normalizeCollections() {
	if r.Cards == nil {
		r.Cards = []Card{}
	}
	if r.Users == nil {
		r.Users = []User{}
	}
	for index := range r.Cards {
		if r.Cards[index].Votes == nil {
			r.Cards[index].Votes = []Vote{}
		}
	}
}

func stringPointer(value string) *string {
	return &value
}
