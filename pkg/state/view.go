package state

import (
	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
)

// View is a point-in-time copy of the store for diagnostics and the match log.
type View struct {
	LocalID      types.PlayerID    `json:"localId"`
	Local        types.PlayerState `json:"local"`
	Remote       types.PlayerState `json:"remote"`
	LocalScore   int               `json:"localScore"`
	RemoteScore  int               `json:"remoteScore"`
	ContactCount int               `json:"contactCount"`
	Hits         map[string]bool   `json:"hits"`
	Connected    bool              `json:"connected"`
	LastError    string            `json:"lastError,omitempty"`
}

// View copies the current values. Fields are read one at a time, so a
// view taken while the consumer is writing may mix two updates.
func (s *Store) View() View {
	hits := make(map[string]bool, len(s.hits))
	for flag := events.HitLocalHitRemote; flag <= events.HitRemoteShieldHitLocal; flag++ {
		hits[flag.String()] = s.Hit(flag)
	}
	return View{
		LocalID:      s.localID,
		Local:        s.Local(),
		Remote:       s.Remote(),
		LocalScore:   s.Score(types.SideLocal),
		RemoteScore:  s.Score(types.SideRemote),
		ContactCount: s.ContactCount(),
		Hits:         hits,
		Connected:    s.Connected(),
		LastError:    s.LastError(),
	}
}
