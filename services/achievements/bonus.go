package achievements

import "sort"

const (
	// XPPerLike is awarded for every like received on any of the user's decks.
	XPPerLike = 2
	// XPPerDeck is awarded per deck created, up to DailyDeckCap decks per UTC day.
	XPPerDeck    = 5
	DailyDeckCap = 3
)

// BonusXP is XP not tied to badges. It is always derived from the metrics,
// never stored on its own.
func BonusXP(m Metrics) int {
	xp := int(m.LikesReceived) * XPPerLike
	for _, n := range m.DecksPerDay {
		xp += int(min(n, DailyDeckCap)) * XPPerDeck
	}
	return xp
}

// Rank is a named XP band used for level-up display.
type Rank struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	MinXP int    `json:"min_xp"`
}

// Ranks is ordered by MinXP ascending.
var Ranks = []Rank{
	{Level: 1, Name: "Novice", MinXP: 0},
	{Level: 2, Name: "Apprentice", MinXP: 50},
	{Level: 3, Name: "Adept", MinXP: 150},
	{Level: 4, Name: "Expert", MinXP: 300},
	{Level: 5, Name: "Master", MinXP: 600},
	{Level: 6, Name: "Grandmaster", MinXP: 1000},
}

// RankForXP returns the highest rank whose MinXP is at most xp.
func RankForXP(xp int) Rank {
	i := sort.Search(len(Ranks), func(i int) bool { return Ranks[i].MinXP > xp })
	if i == 0 {
		return Ranks[0]
	}
	return Ranks[i-1]
}
