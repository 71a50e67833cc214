package domain

// Tier levels, lowest to highest.
const (
	LevelFriend   = "Eco Friend"
	LevelWarrior  = "Eco Warrior"
	LevelChampion = "Eco Champion"
)

// Level thresholds in cumulative eco points, evaluated high to low.
const (
	ChampionThreshold = 1000
	WarriorThreshold  = 200
)

// LevelFor maps cumulative eco points to a tier level. Points never
// decrease, so a user's level can only move up.
func LevelFor(points int) string {
	switch {
	case points >= ChampionThreshold:
		return LevelChampion
	case points >= WarriorThreshold:
		return LevelWarrior
	default:
		return LevelFriend
	}
}
