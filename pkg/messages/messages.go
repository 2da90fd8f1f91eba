package messages

import (
	"encoding/json"

	"github.com/cbodonnell/duelsync/pkg/game/types"
)

// Message type discriminators. Producers may set "type" on game state topic
// payloads; payloads without it are classified by shape.
const (
	MessageTypeAction    = "action"
	MessageTypeGameState = "game_state"
)

// Envelope is a raw broker message waiting in the inbound queue.
type Envelope struct {
	Topic     string
	Payload   []byte
	Timestamp int64
}

// PlayerStateWire is a player snapshot as the game server publishes it.
type PlayerStateWire struct {
	HP                int      `json:"hp"`
	Bullets           int      `json:"bullets"`
	Bombs             int      `json:"bombs"`
	ShieldHP          int      `json:"shield_hp"`
	Deaths            int      `json:"deaths"`
	Shields           int      `json:"shields"`
	OpponentHit       FlexBool `json:"opponent_hit,omitempty"`
	OpponentShieldHit FlexBool `json:"opponent_shield_hit,omitempty"`
	IsVisible         FlexBool `json:"is_visible,omitempty"`
	Disconnected      FlexBool `json:"disconnected,omitempty"`
	Login             FlexBool `json:"login,omitempty"`
}

// PlayerState converts the wire snapshot into the domain representation.
// Values are not clamped here; the state store clamps on write.
func (p *PlayerStateWire) PlayerState() types.PlayerState {
	return types.PlayerState{
		Health:        p.HP,
		ShieldHP:      p.ShieldHP,
		Bullets:       p.Bullets,
		Bombs:         p.Bombs,
		ShieldCharges: p.Shields,
		Deaths:        p.Deaths,
		IsVisible:     bool(p.IsVisible),
		Disconnected:  bool(p.Disconnected),
		LoggedIn:      bool(p.Login),
	}
}

// GameStateSnapshot is the server-authoritative state of both players.
// Either half may be missing.
type GameStateSnapshot struct {
	P1 *PlayerStateWire `json:"p1,omitempty"`
	P2 *PlayerStateWire `json:"p2,omitempty"`
}

// Player returns the half of the snapshot for id, or nil.
func (s *GameStateSnapshot) Player(id types.PlayerID) *PlayerStateWire {
	switch id {
	case types.PlayerOne:
		return s.P1
	case types.PlayerTwo:
		return s.P2
	}
	return nil
}

// GameStateMessage wraps a bare snapshot.
type GameStateMessage struct {
	Type      string             `json:"type,omitempty"`
	GameState *GameStateSnapshot `json:"game_state"`
}

// ActionMessage reports that a game action happened, optionally bundling
// the snapshot that resulted from it.
type ActionMessage struct {
	Type      string             `json:"type,omitempty"`
	Action    string             `json:"action"`
	PlayerID  types.PlayerID     `json:"player_id"`
	Hit       FlexBool           `json:"hit"`
	GameState *GameStateSnapshot `json:"game_state,omitempty"`
}

// VisibilityRequest is a server poll for one client's visibility.
type VisibilityRequest struct {
	PlayerID types.PlayerID `json:"player_id"`
	Topic    string         `json:"topic,omitempty"`
}

// VisibilityFeedback is the reply to a VisibilityRequest.
// IsVisible is encoded as the strings "true" or "false".
type VisibilityFeedback struct {
	PlayerID      types.PlayerID `json:"player_id"`
	IsVisible     string         `json:"is_visible"`
	BombsOnPlayer int            `json:"bombs_on_player"`
}

// NewVisibilityFeedback builds the reply for a player.
func NewVisibilityFeedback(playerID types.PlayerID, visible bool, contactCount int) *VisibilityFeedback {
	isVisible := "false"
	if visible {
		isVisible = "true"
	}
	return &VisibilityFeedback{
		PlayerID:      playerID,
		IsVisible:     isVisible,
		BombsOnPlayer: contactCount,
	}
}

// DeviceConnectivityWire is the peripheral status of one player.
type DeviceConnectivityWire struct {
	Gun   FlexBool `json:"gun"`
	Vest  FlexBool `json:"vest"`
	Glove FlexBool `json:"glove"`
}

func (d *DeviceConnectivityWire) DeviceConnectivity() types.DeviceConnectivity {
	return types.DeviceConnectivity{
		Gun:   bool(d.Gun),
		Vest:  bool(d.Vest),
		Glove: bool(d.Glove),
	}
}

// DeviceStatusMessage reports peripheral connectivity of both players.
type DeviceStatusMessage struct {
	Player1 *DeviceConnectivityWire `json:"player_1,omitempty"`
	Player2 *DeviceConnectivityWire `json:"player_2,omitempty"`
}

// Player returns the half of the message for id, or nil.
func (m *DeviceStatusMessage) Player(id types.PlayerID) *DeviceConnectivityWire {
	switch id {
	case types.PlayerOne:
		return m.Player1
	case types.PlayerTwo:
		return m.Player2
	}
	return nil
}

// ActionIntent is a local action submitted to the game server.
type ActionIntent struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	PlayerID  types.PlayerID `json:"player_id"`
	Timestamp int64          `json:"timestamp"`
}

// Encode marshals an outbound message.
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
