// Package scoring converts raw matrix placements into importance/complexity
// scores and aggregates many votes into one display score.
package scoring

// Normalize maps value linearly from [inMin, inMax] onto [outMin, outMax].
// Inputs outside the source range produce outputs outside the target range.
func Normalize(value, inMin, inMax, outMin, outMax float64) float64 {
	standard := (value - inMin) / (inMax - inMin)
	return (outMax-outMin)*standard + outMin
}

// Clamp bounds value to [lower, upper]; the bounds are swapped when reversed.
func Clamp(value, lower, upper float64) float64 {
	if lower > upper {
		lower, upper = upper, lower
	}
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

// ClampedNormalize is Normalize followed by clamping to the target range.
func ClampedNormalize(value, inMin, inMax, outMin, outMax float64) float64 {
	return Clamp(Normalize(value, inMin, inMax, outMin, outMax), outMin, outMax)
}
