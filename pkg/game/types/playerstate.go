package types

import "github.com/cbodonnell/duelsync/pkg/game/constants"

// PlayerState is the per-player snapshot of duel stats.
type PlayerState struct {
	Health        int  `json:"health"`
	ShieldHP      int  `json:"shieldHP"`
	Bullets       int  `json:"bullets"`
	Bombs         int  `json:"bombs"`
	ShieldCharges int  `json:"shieldCharges"`
	Deaths        int  `json:"deaths"`
	IsVisible     bool `json:"isVisible"`
	Disconnected  bool `json:"disconnected"`
	LoggedIn      bool `json:"loggedIn"`
}

// NewPlayerState returns the state of a player before the first server snapshot.
func NewPlayerState() PlayerState {
	return PlayerState{
		Health:        constants.MaxHealth,
		ShieldHP:      constants.MinShieldHP,
		Bullets:       constants.MaxBullets,
		Bombs:         constants.MaxBombs,
		ShieldCharges: constants.MaxShieldCharges,
	}
}

// Clamped returns a copy of the player state with every numeric field
// limited to its valid range.
func (p PlayerState) Clamped() PlayerState {
	p.Health = constants.Clamp(p.Health, constants.MinHealth, constants.MaxHealth)
	p.ShieldHP = constants.Clamp(p.ShieldHP, constants.MinShieldHP, constants.MaxShieldHP)
	p.Bullets = constants.Clamp(p.Bullets, constants.MinBullets, constants.MaxBullets)
	p.Bombs = constants.Clamp(p.Bombs, constants.MinBombs, constants.MaxBombs)
	p.ShieldCharges = constants.Clamp(p.ShieldCharges, constants.MinShieldCharges, constants.MaxShieldCharges)
	p.Deaths = constants.Clamp(p.Deaths, constants.MinDeaths, constants.MaxDeaths)
	return p
}
