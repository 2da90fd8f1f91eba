package state

import (
	"sync/atomic"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/constants"
	"github.com/cbodonnell/duelsync/pkg/game/types"
)

// Store is the canonical state of both players for one session.
//
// Writes follow a single-writer discipline: queued game messages are applied
// by the consumer goroutine, device status by the tracker. Every field is an
// atomic value so readers on other goroutines never observe a torn write.
type Store struct {
	localID types.PlayerID
	hub     *events.Hub

	players [2]*playerFields
	hits    [4]atomic.Bool

	contactCount atomic.Int32

	connected atomic.Bool
	lastError atomic.Value
}

type playerFields struct {
	health        atomic.Int32
	shieldHP      atomic.Int32
	bullets       atomic.Int32
	bombs         atomic.Int32
	shieldCharges atomic.Int32
	deaths        atomic.Int32
	visible       atomic.Bool
	disconnected  atomic.Bool
	loggedIn      atomic.Bool

	gun   atomic.Bool
	vest  atomic.Bool
	glove atomic.Bool
}

// NewStore creates the store for a client logged in as localID.
// Both players start from types.NewPlayerState.
func NewStore(localID types.PlayerID, hub *events.Hub) *Store {
	if hub == nil {
		hub = events.NewHub()
	}
	s := &Store{
		localID: localID,
		hub:     hub,
	}
	for i := range s.players {
		s.players[i] = &playerFields{}
		s.players[i].write(types.NewPlayerState())
	}
	s.lastError.Store("")
	return s
}

func (p *playerFields) write(ps types.PlayerState) {
	ps = ps.Clamped()
	p.health.Store(int32(ps.Health))
	p.shieldHP.Store(int32(ps.ShieldHP))
	p.bullets.Store(int32(ps.Bullets))
	p.bombs.Store(int32(ps.Bombs))
	p.shieldCharges.Store(int32(ps.ShieldCharges))
	p.deaths.Store(int32(ps.Deaths))
	p.disconnected.Store(ps.Disconnected)
	p.loggedIn.Store(ps.LoggedIn)
}

func (p *playerFields) read() types.PlayerState {
	return types.PlayerState{
		Health:        int(p.health.Load()),
		ShieldHP:      int(p.shieldHP.Load()),
		Bullets:       int(p.bullets.Load()),
		Bombs:         int(p.bombs.Load()),
		ShieldCharges: int(p.shieldCharges.Load()),
		Deaths:        int(p.deaths.Load()),
		IsVisible:     p.visible.Load(),
		Disconnected:  p.disconnected.Load(),
		LoggedIn:      p.loggedIn.Load(),
	}
}

func (s *Store) side(side types.Side) *playerFields {
	if side == types.SideLocal {
		return s.players[0]
	}
	return s.players[1]
}

// LocalID returns the player slot this client is logged in as.
func (s *Store) LocalID() types.PlayerID {
	return s.localID
}

// Hub returns the event hub the store publishes to.
func (s *Store) Hub() *events.Hub {
	return s.hub
}

// SideOf maps a player slot onto local or remote.
func (s *Store) SideOf(id types.PlayerID) types.Side {
	return types.SideOf(id, s.localID)
}

// Player returns a copy of the state of one side.
func (s *Store) Player(side types.Side) types.PlayerState {
	return s.side(side).read()
}

func (s *Store) Local() types.PlayerState {
	return s.Player(types.SideLocal)
}

func (s *Store) Remote() types.PlayerState {
	return s.Player(types.SideRemote)
}

// SetPlayer writes every field of ps to one side, clamping numeric fields.
// Visibility goes through SetVisible so a transition raises its event.
func (s *Store) SetPlayer(side types.Side, ps types.PlayerState) {
	s.side(side).write(ps)
	s.SetVisible(side, ps.IsVisible)
}

func (s *Store) SetLocal(ps types.PlayerState) {
	s.SetPlayer(types.SideLocal, ps)
}

func (s *Store) SetRemote(ps types.PlayerState) {
	s.SetPlayer(types.SideRemote, ps)
}

func (s *Store) Health(side types.Side) int {
	return int(s.side(side).health.Load())
}

func (s *Store) SetHealth(side types.Side, v int) {
	s.side(side).health.Store(int32(constants.Clamp(v, constants.MinHealth, constants.MaxHealth)))
}

func (s *Store) ShieldHP(side types.Side) int {
	return int(s.side(side).shieldHP.Load())
}

func (s *Store) SetShieldHP(side types.Side, v int) {
	s.side(side).shieldHP.Store(int32(constants.Clamp(v, constants.MinShieldHP, constants.MaxShieldHP)))
}

func (s *Store) Bullets(side types.Side) int {
	return int(s.side(side).bullets.Load())
}

func (s *Store) SetBullets(side types.Side, v int) {
	s.side(side).bullets.Store(int32(constants.Clamp(v, constants.MinBullets, constants.MaxBullets)))
}

func (s *Store) Bombs(side types.Side) int {
	return int(s.side(side).bombs.Load())
}

func (s *Store) SetBombs(side types.Side, v int) {
	s.side(side).bombs.Store(int32(constants.Clamp(v, constants.MinBombs, constants.MaxBombs)))
}

func (s *Store) ShieldCharges(side types.Side) int {
	return int(s.side(side).shieldCharges.Load())
}

func (s *Store) SetShieldCharges(side types.Side, v int) {
	s.side(side).shieldCharges.Store(int32(constants.Clamp(v, constants.MinShieldCharges, constants.MaxShieldCharges)))
}

func (s *Store) Deaths(side types.Side) int {
	return int(s.side(side).deaths.Load())
}

func (s *Store) SetDeaths(side types.Side, v int) {
	v = constants.Clamp(v, constants.MinDeaths, constants.MaxDeaths)
	s.side(side).deaths.Store(int32(v))
}

// Score is the number of times the opponent of side has died.
func (s *Store) Score(side types.Side) int {
	if side == types.SideLocal {
		return s.Deaths(types.SideRemote)
	}
	return s.Deaths(types.SideLocal)
}

func (s *Store) Disconnected(side types.Side) bool {
	return s.side(side).disconnected.Load()
}

func (s *Store) SetDisconnected(side types.Side, v bool) {
	s.side(side).disconnected.Store(v)
}

func (s *Store) LoggedIn(side types.Side) bool {
	return s.side(side).loggedIn.Load()
}

func (s *Store) SetLoggedIn(side types.Side, v bool) {
	s.side(side).loggedIn.Store(v)
}

func (s *Store) Visible(side types.Side) bool {
	return s.side(side).visible.Load()
}

// SetVisible stores the visibility of one side and publishes a
// VisibilityEvent when the value actually changed.
func (s *Store) SetVisible(side types.Side, v bool) (changed bool) {
	if s.side(side).visible.Swap(v) == v {
		return false
	}
	s.hub.Visibility.Publish(events.VisibilityEvent{Side: side, Visible: v})
	return true
}

// Hit reports the current value of a hit flag.
func (s *Store) Hit(flag events.HitFlag) bool {
	if !validHitFlag(flag) {
		return false
	}
	return s.hits[flag].Load()
}

// SetHit stores a hit flag. Every write of true publishes a HitEvent, even
// if the flag was already set; a later hit must still be seen by consumers.
func (s *Store) SetHit(flag events.HitFlag, v bool) {
	if !validHitFlag(flag) {
		return
	}
	s.hits[flag].Store(v)
	if v {
		s.hub.Hits.Publish(events.HitEvent{Flag: flag})
	}
}

// ClearHits sets every hit flag back to false.
func (s *Store) ClearHits() {
	for i := range s.hits {
		s.hits[i].Store(false)
	}
}

func validHitFlag(flag events.HitFlag) bool {
	return flag >= events.HitLocalHitRemote && flag <= events.HitRemoteShieldHitLocal
}

// ContactCount is the number of bombs the opponent is currently standing in,
// as observed by the local AR tracking.
func (s *Store) ContactCount() int {
	return int(s.contactCount.Load())
}

func (s *Store) SetContactCount(v int) {
	s.contactCount.Store(int32(constants.Clamp(v, constants.MinContactCount, constants.MaxContactCount)))
}

// Devices returns the peripheral connectivity of a player slot.
func (s *Store) Devices(id types.PlayerID) types.DeviceConnectivity {
	p := s.side(s.SideOf(id))
	return types.DeviceConnectivity{
		Gun:   p.gun.Load(),
		Vest:  p.vest.Load(),
		Glove: p.glove.Load(),
	}
}

// SetDevice stores the connectivity of one peripheral and reports whether
// the stored value changed.
func (s *Store) SetDevice(id types.PlayerID, device types.Device, connected bool) (changed bool) {
	p := s.side(s.SideOf(id))
	switch device {
	case types.DeviceGun:
		return p.gun.Swap(connected) != connected
	case types.DeviceVest:
		return p.vest.Swap(connected) != connected
	case types.DeviceGlove:
		return p.glove.Swap(connected) != connected
	}
	return false
}

// Connected reports whether the broker connection is up.
func (s *Store) Connected() bool {
	return s.connected.Load()
}

// LastError is the reason the broker connection last failed or dropped.
func (s *Store) LastError() string {
	return s.lastError.Load().(string)
}

// SetConnection records the broker connection status. A non-empty reason
// replaces the last error; an empty one keeps it for diagnostics.
func (s *Store) SetConnection(connected bool, reason string) {
	s.connected.Store(connected)
	if reason != "" {
		s.lastError.Store(reason)
	}
}
