package types

import "fmt"

// PlayerID identifies one of the two player slots.
type PlayerID int

const (
	PlayerOne PlayerID = 1
	PlayerTwo PlayerID = 2
)

// Valid reports whether id is one of the two player slots.
func (id PlayerID) Valid() bool {
	return id == PlayerOne || id == PlayerTwo
}

// Opponent returns the other player slot.
func (id PlayerID) Opponent() PlayerID {
	if id == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

// Side is a player slot seen from this client.
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	}
	return "unknown"
}

// SideOf returns which side id is for a client logged in as localID.
func SideOf(id, localID PlayerID) Side {
	if id == localID {
		return SideLocal
	}
	return SideRemote
}

// DeviceConnectivity is the on/off state of a player's peripherals.
type DeviceConnectivity struct {
	Gun   bool `json:"gun"`
	Vest  bool `json:"vest"`
	Glove bool `json:"glove"`
}

// AllDisconnected reports whether none of the peripherals are connected.
func (d DeviceConnectivity) AllDisconnected() bool {
	return !d.Gun && !d.Vest && !d.Glove
}

func (d DeviceConnectivity) String() string {
	return fmt.Sprintf("gun=%t vest=%t glove=%t", d.Gun, d.Vest, d.Glove)
}

// Device names a single peripheral.
type Device int

const (
	DeviceGun Device = iota
	DeviceVest
	DeviceGlove
)

func (d Device) String() string {
	switch d {
	case DeviceGun:
		return "gun"
	case DeviceVest:
		return "vest"
	case DeviceGlove:
		return "glove"
	}
	return "unknown"
}

// Action names used by the game server. The engine forwards any action
// string it receives; these exist for consumers that filter by name.
const (
	ActionGun       = "gun"
	ActionBomb      = "bomb"
	ActionShield    = "shield"
	ActionReload    = "reload"
	ActionBoxing    = "boxing"
	ActionFencing   = "fencing"
	ActionBadminton = "badminton"
	ActionGolf      = "golf"
	ActionLogout    = "logout"
)
