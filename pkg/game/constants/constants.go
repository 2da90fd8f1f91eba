package constants

import "math"

const (
	// MaxHealth is the health of a player at the start of a life
	MaxHealth int = 100
	// MinHealth is the lowest health a player can be reported with
	MinHealth int = 0
	// MaxShieldHP is the hitpoints of a fresh shield
	MaxShieldHP int = 30
	// MinShieldHP is the hitpoints of a broken or absent shield
	MinShieldHP int = 0

	// MaxShieldCharges is the number of shields a player may hold
	MaxShieldCharges int = 3
	// MinShieldCharges
	MinShieldCharges int = 0
	// MaxBullets is the magazine size
	MaxBullets int = 6
	// MinBullets
	MinBullets int = 0
	// MaxBombs is the number of bombs a player may hold
	MaxBombs int = 2
	// MinBombs
	MinBombs int = 0

	// MaxContactCount bounds the number of bombs the opponent can be standing in
	MaxContactCount int = 999
	// MinContactCount
	MinContactCount int = 0

	// MaxDeaths bounds the death counter to what the store can hold
	MaxDeaths int = math.MaxInt32
	// MinDeaths
	MinDeaths int = 0
)

// Clamp returns v limited to [min, max].
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
