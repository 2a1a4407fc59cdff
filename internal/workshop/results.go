package workshop

import (
	"slices"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/scoring"
)

// CardResult is one row of the results view.
type CardResult struct {
	CardID     string                  `json:"cardId"`
	Text       string                  `json:"text"`
	AuthorID   string                  `json:"authorId"`
	NextAction *NextAction             `json:"nextAction,omitempty"`
	Score      scoring.AggregatedScore `json:"score"`
	Quadrant   scoring.Quadrant        `json:"quadrant"`
	Position   scoring.VisualPosition  `json:"position"`
}

// AggregateCard reduces a card's votes to one display score.
func AggregateCard(card Card) scoring.AggregatedScore {
	scores := make([]scoring.VoteScore, 0, len(card.Votes))
	for _, vote := range card.Votes {
		scores = append(scores, scoring.VoteScore{Importance: vote.Importance, Complexity: vote.Complexity})
	}
	return scoring.Aggregate(scores)
}

// Results aggregates every card and orders them most important first, then
// least complex first, keeping submission order for ties.
func Results(room *Room) []CardResult {
	if room == nil {
		return []CardResult{}
	}
	results := make([]CardResult, 0, len(room.Cards))
	for _, card := range room.Cards {
		aggregated := AggregateCard(card)
		score := scoring.Score{Importance: aggregated.Importance, Complexity: aggregated.Complexity}
		left, top := scoring.ContainmentFromScore(score)
		results = append(results, CardResult{
			CardID:     card.ID,
			Text:       card.Text,
			AuthorID:   card.AuthorID,
			NextAction: card.NextAction,
			Score:      aggregated,
			Quadrant:   scoring.QuadrantOf(score),
			Position:   scoring.PositionFromContainment(left, top, scoring.DefaultCardDimensions),
		})
	}
	slices.SortStableFunc(results, func(a, b CardResult) int {
		switch {
		case a.Score.Importance > b.Score.Importance:
			return -1
		case a.Score.Importance < b.Score.Importance:
			return 1
		case a.Score.Complexity < b.Score.Complexity:
			return -1
		case a.Score.Complexity > b.Score.Complexity:
			return 1
		default:
			return 0
		}
	})
	return results
}
