package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
	"go.uber.org/zap"
)

const (
	requiredInsights    = 3
	requiredSuggestions = 3
	minTopics           = 5
	maxTopics           = 10
	minTopicWeight      = 1
	maxTopicWeight      = 10
)

var (
	errMissingGenerator = errors.New("summary: generator dependency required")

	// ErrInvalidSummary is returned when generated output breaks the summary shape.
	ErrInvalidSummary = errors.New("summary: invalid generated summary")
	// ErrMissingRoom is returned when asked to summarize an uninitialized room.
	ErrMissingRoom = errors.New("summary: room required")
)

// Insights is the raw generator output before it is stamped into a Summary.
type Insights struct {
	KeyInsights   []string             `json:"keyInsights"`
	AISuggestions []string             `json:"aiSuggestions"`
	WordCloud     []workshop.TopicWord `json:"wordCloud"`
}

// Generator produces insights for an export. Implementations must fail
// rather than block indefinitely.
type Generator interface {
	Generate(ctx context.Context, export Export) (Insights, error)
}

// AdapterConfig describes the dependencies of an Adapter.
type AdapterConfig struct {
	Generator Generator
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Adapter exports a room, asks the generator once and validates the result.
type Adapter struct {
	generator Generator
	clock     func() time.Time
	logger    *zap.Logger
}

// NewAdapter validates cfg and returns an Adapter.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Generator == nil {
		return nil, errMissingGenerator
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{generator: cfg.Generator, clock: clock, logger: logger}, nil
}

// Summarize implements the room summarizer.
func (a *Adapter) Summarize(ctx context.Context, room *workshop.Room) (workshop.Summary, error) {
	if room == nil {
		return workshop.Summary{}, ErrMissingRoom
	}
	export := BuildExport(room)
	started := a.clock()
	insights, err := a.generator.Generate(ctx, export)
	if err != nil {
		return workshop.Summary{}, fmt.Errorf("generate summary: %w", err)
	}
	if err := Validate(insights); err != nil {
		a.logger.Warn("generated summary rejected", zap.String("room_id", room.ID), zap.Error(err))
		return workshop.Summary{}, err
	}
	finished := a.clock()
	a.logger.Info("summary generated",
		zap.String("room_id", room.ID),
		zap.Int("cards", len(export.Cards)),
		zap.Duration("elapsed", finished.Sub(started)),
	)
	return workshop.Summary{
		KeyInsights:   insights.KeyInsights,
		AISuggestions: insights.AISuggestions,
		WordCloud:     insights.WordCloud,
		GeneratedAt:   finished.UnixMilli(),
	}, nil
}

// Validate checks the counts and bounds of generated insights.
func Validate(insights Insights) error {
	if len(insights.KeyInsights) != requiredInsights {
		return fmt.Errorf("%w: expected %d key insights, got %d", ErrInvalidSummary, requiredInsights, len(insights.KeyInsights))
	}
	if len(insights.AISuggestions) != requiredSuggestions {
		return fmt.Errorf("%w: expected %d suggestions, got %d", ErrInvalidSummary, requiredSuggestions, len(insights.AISuggestions))
	}
	for _, text := range append(append([]string{}, insights.KeyInsights...), insights.AISuggestions...) {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: blank bullet", ErrInvalidSummary)
		}
	}
	if count := len(insights.WordCloud); count < minTopics || count > maxTopics {
		return fmt.Errorf("%w: expected %d-%d topics, got %d", ErrInvalidSummary, minTopics, maxTopics, count)
	}
	for _, word := range insights.WordCloud {
		if strings.TrimSpace(word.Topic) == "" {
			return fmt.Errorf("%w: blank topic", ErrInvalidSummary)
		}
		if word.Weight < minTopicWeight || word.Weight > maxTopicWeight {
			return fmt.Errorf("%w: topic %q weight %v out of range", ErrInvalidSummary, word.Topic, word.Weight)
		}
	}
	return nil
}
