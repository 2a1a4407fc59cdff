package workshop

import "testing"

func TestDeriveColorsIsDeterministic(t *testing.T) {
	tests := []struct {
		index          int
		expectedAvatar string
		expectedCard   string
	}{
		{0, "hsl(0, 80%, 45%)", "hsl(0, 100%, 85%)"},
		{1, "hsl(137.5077640500378, 80%, 45%)", "hsl(137.5077640500378, 100%, 85%)"},
	}
	for _, tt := range tests {
		avatar, card := DeriveColors(tt.index)
		if avatar != tt.expectedAvatar || card != tt.expectedCard {
			t.Fatalf("index %d: got %q %q", tt.index, avatar, card)
		}
	}

	for index := 0; index < 20; index++ {
		firstAvatar, firstCard := DeriveColors(index)
		secondAvatar, secondCard := DeriveColors(index)
		if firstAvatar != secondAvatar || firstCard != secondCard {
			t.Fatalf("colors for index %d are not stable", index)
		}
		if hue := Hue(index); hue < 0 || hue >= 360 {
			t.Fatalf("hue %v out of range for index %d", hue, index)
		}
	}
}

func TestColorIndexSequenceIgnoresNames(t *testing.T) {
	join := func(names []string) []int {
		room := &Room{ID: "r", Users: []User{}, Cards: []Card{}}
		for position, name := range names {
			Reduce(room, AddUser{User: User{ID: string(rune('a' + position)), Name: name}}, testEnv())
		}
		indexes := make([]int, 0, len(room.Users))
		for _, user := range room.Users {
			indexes = append(indexes, user.ColorIndex)
		}
		return indexes
	}

	first := join([]string{"Zed", "Amy", "Bob"})
	second := join([]string{"Kim", "Lee", "Max"})
	for index := range first {
		if first[index] != index || second[index] != index {
			t.Fatalf("expected sequence 0,1,2 got %v and %v", first, second)
		}
	}
}
