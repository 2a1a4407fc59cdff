package scoring

const (
	minScore   = 1
	maxScore   = 10
	fullExtent = 100
	// quadrantSplit is the midpoint of the 1-10 scale.
	quadrantSplit = (minScore + maxScore) / 2.0
)

// CardDimensions is a card footprint expressed as percentages of the matrix.
type CardDimensions struct {
	WidthPercent  float64
	HeightPercent float64
}

// DefaultCardDimensions matches the footprint the matrix renders cards with.
var DefaultCardDimensions = CardDimensions{WidthPercent: 12, HeightPercent: 10}

// Rect is a bounding rectangle in pixel space.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Position describes where a card sits inside the matrix, both as a plain
// visual percentage and relative to the range the card can move in without
// overflowing the container.
type Position struct {
	PercentLeft            float64 `json:"percentLeft"`
	PercentTop             float64 `json:"percentTop"`
	ContainmentPercentLeft float64 `json:"containmentPercentLeft"`
	ContainmentPercentTop  float64 `json:"containmentPercentTop"`
	IsInsideContainment    bool    `json:"isInsideContainment"`
}

// VisualPosition is the top-left corner of a card as container percentages.
type VisualPosition struct {
	PercentLeft float64 `json:"percentLeft"`
	PercentTop  float64 `json:"percentTop"`
}

// Score is an importance/complexity pair on the 1-10 scale.
type Score struct {
	Importance float64 `json:"importance"`
	Complexity float64 `json:"complexity"`
}

// RelativePosition locates card inside container.
func RelativePosition(container, card Rect) Position {
	relativeLeft := card.Left - container.Left
	relativeTop := card.Top - container.Top

	containmentWidth := container.Width - card.Width
	containmentHeight := container.Height - card.Height

	position := Position{
		PercentLeft:            relativeLeft / container.Width * fullExtent,
		PercentTop:             relativeTop / container.Height * fullExtent,
		ContainmentPercentLeft: relativeLeft / containmentWidth * fullExtent,
		ContainmentPercentTop:  relativeTop / containmentHeight * fullExtent,
	}
	position.IsInsideContainment = withinExtent(position.ContainmentPercentLeft) &&
		withinExtent(position.ContainmentPercentTop)
	return position
}

// PositionFromContainment inverts the containment calculation of
// RelativePosition for a card of the given footprint.
func PositionFromContainment(containmentLeft, containmentTop float64, dimensions CardDimensions) VisualPosition {
	return VisualPosition{
		PercentLeft: containmentLeft / fullExtent * (fullExtent - dimensions.WidthPercent),
		PercentTop:  containmentTop / fullExtent * (fullExtent - dimensions.HeightPercent),
	}
}

// ScoreFromContainment converts containment percentages to scores. Importance
// grows upward and complexity grows to the right.
func ScoreFromContainment(containmentTop, containmentLeft float64) Score {
	return Score{
		Importance: Normalize(fullExtent-containmentTop, 0, fullExtent, minScore, maxScore),
		Complexity: Normalize(containmentLeft, 0, fullExtent, minScore, maxScore),
	}
}

// ContainmentFromScore is the inverse of ScoreFromContainment.
func ContainmentFromScore(score Score) (containmentLeft, containmentTop float64) {
	containmentLeft = Normalize(score.Complexity, minScore, maxScore, 0, fullExtent)
	containmentTop = fullExtent - Normalize(score.Importance, minScore, maxScore, 0, fullExtent)
	return containmentLeft, containmentTop
}

// Quadrant names one of the four regions of the matrix.
type Quadrant string

const (
	QuadrantHighImportanceSimple  Quadrant = "high-imp-simple"
	QuadrantHighImportanceComplex Quadrant = "high-imp-complex"
	QuadrantLowImportanceSimple   Quadrant = "low-imp-simple"
	QuadrantLowImportanceComplex  Quadrant = "low-imp-complex"
)

// QuadrantOf classifies a score. Values on the midpoint count as high
// importance and as complex.
func QuadrantOf(score Score) Quadrant {
	highImportance := score.Importance >= quadrantSplit
	isComplex := score.Complexity >= quadrantSplit
	switch {
	case highImportance && !isComplex:
		return QuadrantHighImportanceSimple
	case highImportance && isComplex:
		return QuadrantHighImportanceComplex
	case !isComplex:
		return QuadrantLowImportanceSimple
	default:
		return QuadrantLowImportanceComplex
	}
}

func withinExtent(percent float64) bool {
	return percent >= 0 && percent <= fullExtent
}
