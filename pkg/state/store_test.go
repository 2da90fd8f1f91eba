package state

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(types.PlayerTwo, nil)
	assert.Equal(t, types.PlayerTwo, s.LocalID())
	assert.Equal(t, types.NewPlayerState(), s.Local())
	assert.Equal(t, types.NewPlayerState(), s.Remote())
	assert.False(t, s.Connected())
	assert.Equal(t, "", s.LastError())
	assert.Equal(t, types.SideLocal, s.SideOf(types.PlayerTwo))
}

func TestStore_Clamping(t *testing.T) {
	s := NewStore(types.PlayerOne, nil)

	s.SetHealth(types.SideLocal, -50)
	assert.Equal(t, 0, s.Health(types.SideLocal))

	s.SetHealth(types.SideLocal, 500)
	assert.Equal(t, 100, s.Health(types.SideLocal))

	s.SetShieldHP(types.SideRemote, 31)
	assert.Equal(t, 30, s.ShieldHP(types.SideRemote))

	s.SetBullets(types.SideLocal, 9)
	assert.Equal(t, 6, s.Bullets(types.SideLocal))

	s.SetBombs(types.SideLocal, -1)
	assert.Equal(t, 0, s.Bombs(types.SideLocal))

	s.SetShieldCharges(types.SideRemote, 4)
	assert.Equal(t, 3, s.ShieldCharges(types.SideRemote))

	s.SetDeaths(types.SideRemote, -3)
	assert.Equal(t, 0, s.Deaths(types.SideRemote))

	s.SetDeaths(types.SideLocal, 1<<32+3)
	assert.Equal(t, math.MaxInt32, s.Deaths(types.SideLocal))

	s.SetContactCount(1000)
	assert.Equal(t, 999, s.ContactCount())
	s.SetContactCount(-1)
	assert.Equal(t, 0, s.ContactCount())
}

func TestStore_SetPlayerClamps(t *testing.T) {
	s := NewStore(types.PlayerOne, nil)
	s.SetRemote(types.PlayerState{Health: 500, ShieldHP: 31, Bullets: 3, Deaths: 2, LoggedIn: true})

	assert.Equal(t, types.PlayerState{Health: 100, ShieldHP: 30, Bullets: 3, Deaths: 2, LoggedIn: true}, s.Remote())
	// local untouched
	assert.Equal(t, types.NewPlayerState(), s.Local())
}

func TestStore_VisibilityEdgeTrigger(t *testing.T) {
	hub := events.NewHub()
	s := NewStore(types.PlayerOne, hub)
	var got []events.VisibilityEvent
	hub.Visibility.Subscribe(func(e events.VisibilityEvent) { got = append(got, e) })

	assert.False(t, s.SetVisible(types.SideRemote, false))
	assert.True(t, s.SetVisible(types.SideRemote, true))
	assert.False(t, s.SetVisible(types.SideRemote, true))

	assert.Equal(t, []events.VisibilityEvent{{Side: types.SideRemote, Visible: true}}, got)

	s.SetRemote(types.PlayerState{Health: 50, IsVisible: false})
	assert.Len(t, got, 2)
	assert.Equal(t, events.VisibilityEvent{Side: types.SideRemote, Visible: false}, got[1])
}

func TestStore_HitFlags(t *testing.T) {
	hub := events.NewHub()
	s := NewStore(types.PlayerOne, hub)
	var got []events.HitFlag
	hub.Hits.Subscribe(func(e events.HitEvent) { got = append(got, e.Flag) })

	s.SetHit(events.HitRemoteHitLocal, true)
	s.SetHit(events.HitRemoteHitLocal, true)
	s.SetHit(events.HitRemoteHitLocal, false)
	s.SetHit(events.HitLocalShieldHitRemote, true)

	assert.False(t, s.Hit(events.HitRemoteHitLocal))
	assert.True(t, s.Hit(events.HitLocalShieldHitRemote))
	assert.Equal(t, []events.HitFlag{
		events.HitRemoteHitLocal,
		events.HitRemoteHitLocal,
		events.HitLocalShieldHitRemote,
	}, got)

	s.ClearHits()
	assert.False(t, s.Hit(events.HitLocalShieldHitRemote))

	// out of range flags are ignored
	s.SetHit(events.HitFlag(42), true)
	assert.False(t, s.Hit(events.HitFlag(42)))
	assert.Len(t, got, 3)
}

func TestStore_Score(t *testing.T) {
	s := NewStore(types.PlayerOne, nil)
	s.SetDeaths(types.SideRemote, 2)
	s.SetDeaths(types.SideLocal, 1)
	assert.Equal(t, 2, s.Score(types.SideLocal))
	assert.Equal(t, 1, s.Score(types.SideRemote))
}

func TestStore_Devices(t *testing.T) {
	s := NewStore(types.PlayerTwo, nil)
	assert.True(t, s.SetDevice(types.PlayerTwo, types.DeviceGun, true))
	assert.False(t, s.SetDevice(types.PlayerTwo, types.DeviceGun, true))
	assert.False(t, s.SetDevice(types.PlayerOne, types.DeviceVest, false))

	assert.Equal(t, types.DeviceConnectivity{Gun: true}, s.Devices(types.PlayerTwo))
	assert.Equal(t, types.DeviceConnectivity{}, s.Devices(types.PlayerOne))
}

func TestStore_Connection(t *testing.T) {
	s := NewStore(types.PlayerOne, nil)
	s.SetConnection(false, "no network connection available")
	assert.False(t, s.Connected())
	assert.Equal(t, "no network connection available", s.LastError())

	s.SetConnection(true, "")
	assert.True(t, s.Connected())
	assert.Equal(t, "no network connection available", s.LastError())
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := NewStore(types.PlayerOne, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetVisible(types.SideLocal, i%2 == 0)
			s.SetContactCount(i)
		}
	}()
	for i := 0; i < 1000; i++ {
		_ = s.Visible(types.SideLocal)
		c := s.ContactCount()
		assert.True(t, c >= 0 && c <= 999)
	}
	wg.Wait()
}

func TestStore_View(t *testing.T) {
	s := NewStore(types.PlayerTwo, nil)
	s.SetDeaths(types.SideRemote, 3)
	s.SetHit(events.HitLocalHitRemote, true)
	s.SetContactCount(2)

	v := s.View()
	assert.Equal(t, types.PlayerTwo, v.LocalID)
	assert.Equal(t, 3, v.LocalScore)
	assert.Equal(t, 0, v.RemoteScore)
	assert.Equal(t, 2, v.ContactCount)
	assert.True(t, v.Hits["local_hit_remote"])
	assert.False(t, v.Hits["remote_hit_local"])
	assert.Len(t, v.Hits, 4)
}
