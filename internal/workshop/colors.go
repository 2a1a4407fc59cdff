package workshop

import (
	"fmt"
	"math"
	"strconv"
)

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.5077640500378

// DeriveColors returns the avatar and card colors for a color index. The
// result depends on the index alone.
func DeriveColors(colorIndex int) (avatarColor, cardColor string) {
	hue := strconv.FormatFloat(Hue(colorIndex), 'f', -1, 64)
	avatarColor = fmt.Sprintf("hsl(%s, 80%%, 45%%)", hue)
	cardColor = fmt.Sprintf("hsl(%s, 100%%, 85%%)", hue)
	return avatarColor, cardColor
}

// Hue is the golden-angle rotation of colorIndex in degrees.
func Hue(colorIndex int) float64 {
	return math.Mod(float64(colorIndex)*goldenAngle, 360)
}

// NextColorIndex returns one past the highest index in use, or 0 for an empty
// room. Indexes of departed users are never handed out again while a higher
// index remains.
func NextColorIndex(users []User) int {
	if len(users) == 0 {
		return 0
	}
	highest := -1
	for _, user := range users {
		if user.ColorIndex > highest {
			highest = user.ColorIndex
		}
	}
	return highest + 1
}
