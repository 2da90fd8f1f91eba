package models

import "github.com/cbodonnell/duelsync/pkg/game/types"

// ActionRecord is one reconciled action in the match log.
type ActionRecord struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Timestamp int64          `json:"timestamp"`
	PlayerID  types.PlayerID `json:"player_id"`
	Side      string         `json:"side"`
	Action    string         `json:"action"`
	Hit       bool           `json:"hit"`
}

// SnapshotRecord is the state of both players at a point in the match.
type SnapshotRecord struct {
	SessionID   string            `json:"session_id"`
	Timestamp   int64             `json:"timestamp"`
	Local       types.PlayerState `json:"local"`
	Remote      types.PlayerState `json:"remote"`
	LocalScore  int               `json:"local_score"`
	RemoteScore int               `json:"remote_score"`
}
