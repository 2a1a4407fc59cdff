// Package summary turns a room into the payload an external model analyzes
// and validates what comes back.
package summary

import (
	"strconv"

	"github.com/MarcoPoloResearchLab/priorities/backend/internal/workshop"
)

const unknownVoterName = "Unknown"

// Export is the room digest handed to a Generator.
type Export struct {
	Cards []CardExport `json:"cards"`
}

// CardExport describes one card with its raw votes and their means.
type CardExport struct {
	Text          string       `json:"text"`
	Votes         []VoteExport `json:"votes"`
	AvgImportance string       `json:"avgImportance"`
	AvgComplexity string       `json:"avgComplexity"`
}

// VoteExport is one placement attributed to its voter.
type VoteExport struct {
	User       Voter   `json:"user"`
	Importance float64 `json:"importance"`
	Complexity float64 `json:"complexity"`
}

// Voter names the participant behind a vote.
type Voter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BuildExport flattens room into an Export. Means are plain arithmetic means
// with one decimal, "0.0" for unvoted cards.
func BuildExport(room *workshop.Room) Export {
	export := Export{Cards: []CardExport{}}
	if room == nil {
		return export
	}
	for _, card := range room.Cards {
		cardExport := CardExport{Votes: make([]VoteExport, 0, len(card.Votes)), Text: card.Text}
		var importanceSum, complexitySum float64
		for _, vote := range card.Votes {
			name := room.UserName(vote.UserID)
			if name == "" {
				name = unknownVoterName
			}
			cardExport.Votes = append(cardExport.Votes, VoteExport{
				User:       Voter{ID: vote.UserID, Name: name},
				Importance: vote.Importance,
				Complexity: vote.Complexity,
			})
			importanceSum += vote.Importance
			complexitySum += vote.Complexity
		}
		var avgImportance, avgComplexity float64
		if count := len(card.Votes); count > 0 {
			avgImportance = importanceSum / float64(count)
			avgComplexity = complexitySum / float64(count)
		}
		cardExport.AvgImportance = strconv.FormatFloat(avgImportance, 'f', 1, 64)
		cardExport.AvgComplexity = strconv.FormatFloat(avgComplexity, 'f', 1, 64)
		export.Cards = append(export.Cards, cardExport)
	}
	return export
}
