package scoring

import (
	"math"
	"slices"
)

// Method names the strategy Aggregate used for a vote set.
type Method string

const (
	MethodSingle      Method = "single"
	MethodMean        Method = "mean"
	MethodMedian      Method = "median"
	MethodTrimmedMean Method = "trimmed-mean"
)

const (
	neutralScore         = 5
	disagreementSpread   = 3
	trimmedMeanTotalTrim = 0.2
	medianMaxVotes       = 4
)

// VoteScore is the part of a vote the aggregation engine reads.
type VoteScore struct {
	Importance float64
	Complexity float64
}

// AggregatedScore is the single display position of a card plus its
// disagreement signal.
type AggregatedScore struct {
	Importance          float64 `json:"importance"`
	Complexity          float64 `json:"complexity"`
	VoteCount           int     `json:"voteCount"`
	ImportanceSpread    float64 `json:"importanceSpread"`
	ComplexitySpread    float64 `json:"complexitySpread"`
	HasHighDisagreement bool    `json:"hasHighDisagreement"`
	Method              Method  `json:"method"`
}

// Aggregate picks an estimator by sample size: the vote itself for one voter,
// the mean for two, the median for three or four and a 20% trimmed mean beyond.
func Aggregate(votes []VoteScore) AggregatedScore {
	if len(votes) == 0 {
		return AggregatedScore{
			Importance: neutralScore,
			Complexity: neutralScore,
			Method:     MethodSingle,
		}
	}

	importance := make([]float64, len(votes))
	complexity := make([]float64, len(votes))
	for index, vote := range votes {
		importance[index] = vote.Importance
		complexity[index] = vote.Complexity
	}

	result := AggregatedScore{
		VoteCount:        len(votes),
		ImportanceSpread: spread(importance),
		ComplexitySpread: spread(complexity),
	}
	result.HasHighDisagreement = result.ImportanceSpread > disagreementSpread ||
		result.ComplexitySpread > disagreementSpread

	switch {
	case len(votes) == 1:
		result.Importance = votes[0].Importance
		result.Complexity = votes[0].Complexity
		result.HasHighDisagreement = false
		result.Method = MethodSingle
	case len(votes) == 2:
		result.Importance = mean(importance)
		result.Complexity = mean(complexity)
		result.Method = MethodMean
	case len(votes) <= medianMaxVotes:
		result.Importance = median(importance)
		result.Complexity = median(complexity)
		result.Method = MethodMedian
	default:
		result.Importance = trimmedMean(importance, trimmedMeanTotalTrim)
		result.Complexity = trimmedMean(complexity, trimmedMeanTotalTrim)
		result.Method = MethodTrimmedMean
	}
	return result
}

func mean(values []float64) float64 {
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// trimmedMean drops floor(n*totalTrim/2) values from each end of the sorted
// sample and falls back to the plain mean when nothing would be dropped.
func trimmedMean(values []float64, totalTrim float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	trimCount := int(math.Floor(float64(len(sorted)) * (totalTrim / 2)))
	if trimCount == 0 || 2*trimCount >= len(sorted) {
		return mean(sorted)
	}
	return mean(sorted[trimCount : len(sorted)-trimCount])
}

func spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values) - slices.Min(values)
}
