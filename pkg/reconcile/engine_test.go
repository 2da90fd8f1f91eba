package reconcile

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/state"
)

type matchLogRecorder struct {
	actions   []types.Side
	snapshots int
}

func (m *matchLogRecorder) RecordAction(side types.Side, msg *messages.ActionMessage) {
	m.actions = append(m.actions, side)
}

func (m *matchLogRecorder) RecordSnapshot(snapshot *messages.GameStateSnapshot) {
	m.snapshots++
}

type harness struct {
	store  *state.Store
	engine *Engine
	local  []events.ActionEvent
	remote []events.ActionEvent
	hits   []events.HitFlag
	log    *matchLogRecorder
}

func newHarness(localID types.PlayerID) *harness {
	h := &harness{log: &matchLogRecorder{}}
	hub := events.NewHub()
	h.store = state.NewStore(localID, hub)
	h.engine = NewEngine(NewEngineOptions{
		Store:    h.store,
		MatchLog: h.log,
		Logger:   log.New(&bytes.Buffer{}, "", 0, log.LogLevelTrace),
	})
	hub.LocalActions.SubscribeAll(func(e events.ActionEvent) { h.local = append(h.local, e) })
	hub.RemoteActions.SubscribeAll(func(e events.ActionEvent) { h.remote = append(h.remote, e) })
	hub.Hits.Subscribe(func(e events.HitEvent) { h.hits = append(h.hits, e.Flag) })
	return h
}

func envelope(payload string) *messages.Envelope {
	return &messages.Envelope{Topic: "visualiser/game_state", Payload: []byte(payload)}
}

func TestEngine_Attribution(t *testing.T) {
	tests := []struct {
		name       string
		localID    types.PlayerID
		playerID   types.PlayerID
		wantRemote bool
	}{
		{name: "local one acts", localID: 1, playerID: 1},
		{name: "local two acts", localID: 2, playerID: 2},
		{name: "opponent acts", localID: 1, playerID: 2, wantRemote: true},
		{name: "opponent of two acts", localID: 2, playerID: 1, wantRemote: true},
		{name: "unknown player is remote", localID: 1, playerID: 7, wantRemote: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.localID)
			h.engine.Reconcile(&messages.ActionMessage{Action: "gun", PlayerID: tt.playerID, Hit: true})

			if tt.wantRemote {
				assert.Empty(t, h.local)
				require.Len(t, h.remote, 1)
				assert.Equal(t, types.SideRemote, h.remote[0].Side)
				assert.True(t, h.store.Hit(events.HitRemoteHitLocal))
				assert.False(t, h.store.Hit(events.HitLocalHitRemote))
			} else {
				assert.Empty(t, h.remote)
				require.Len(t, h.local, 1)
				assert.Equal(t, types.SideLocal, h.local[0].Side)
				assert.False(t, h.store.Hit(events.HitRemoteHitLocal))
				assert.True(t, h.store.Hit(events.HitLocalHitRemote))
			}
		})
	}
}

func TestEngine_HitFlagEdge(t *testing.T) {
	h := newHarness(1)

	h.engine.Reconcile(&messages.ActionMessage{Action: "gun", PlayerID: 1, Hit: true})
	assert.True(t, h.store.Hit(events.HitLocalHitRemote))

	h.engine.Reconcile(&messages.ActionMessage{Action: "gun", PlayerID: 1, Hit: false})
	assert.False(t, h.store.Hit(events.HitLocalHitRemote))

	assert.Equal(t, []events.HitFlag{events.HitLocalHitRemote}, h.hits)
}

func TestEngine_UnknownActionIsDispatched(t *testing.T) {
	h := newHarness(1)
	h.engine.Reconcile(&messages.ActionMessage{Action: "juggling", PlayerID: 2})
	require.Len(t, h.remote, 1)
	assert.Equal(t, "juggling", h.remote[0].Action)
}

func TestEngine_ActionByName(t *testing.T) {
	h := newHarness(2)
	var bombs int
	h.store.Hub().RemoteActions.Subscribe(types.ActionBomb, func(events.ActionEvent) { bombs++ })

	h.engine.Reconcile(&messages.ActionMessage{Action: "bomb", PlayerID: 1})
	h.engine.Reconcile(&messages.ActionMessage{Action: "gun", PlayerID: 1})
	h.engine.Reconcile(&messages.ActionMessage{Action: "bomb", PlayerID: 2})

	assert.Equal(t, 1, bombs)
}

func TestEngine_EndToEndScenario(t *testing.T) {
	h := newHarness(1)

	require.NoError(t, h.engine.Process(envelope(`{"game_state":{"p1":{"hp":80,"bullets":4,"bombs":2,"shield_hp":0,"deaths":0,"shields":3},"p2":{"hp":95,"bullets":6,"bombs":2,"shield_hp":10,"deaths":1,"shields":2}}}`)))
	assert.Equal(t, 80, h.store.Health(types.SideLocal))
	assert.Equal(t, 4, h.store.Bullets(types.SideLocal))
	assert.Equal(t, 95, h.store.Health(types.SideRemote))
	assert.Equal(t, 10, h.store.ShieldHP(types.SideRemote))
	assert.Equal(t, 1, h.store.Score(types.SideLocal))

	require.NoError(t, h.engine.Process(envelope(`{"action":"gun","player_id":2,"hit":"true"}`)))
	assert.True(t, h.store.Hit(events.HitRemoteHitLocal))
	require.Len(t, h.remote, 1)
	assert.Equal(t, "gun", h.remote[0].Action)
	assert.True(t, h.remote[0].Hit)
	assert.Empty(t, h.local)

	assert.Equal(t, []types.Side{types.SideRemote}, h.log.actions)
	assert.Equal(t, 1, h.log.snapshots)
}

func TestEngine_EmbeddedSnapshotIsMerged(t *testing.T) {
	h := newHarness(2)

	h.engine.Reconcile(&messages.ActionMessage{
		Action:   "bomb",
		PlayerID: 2,
		Hit:      true,
		GameState: &messages.GameStateSnapshot{
			P1: &messages.PlayerStateWire{HP: 90, Bombs: 2},
			P2: &messages.PlayerStateWire{HP: 100, Bombs: 1},
		},
	})

	assert.Equal(t, 100, h.store.Health(types.SideLocal))
	assert.Equal(t, 1, h.store.Bombs(types.SideLocal))
	assert.Equal(t, 90, h.store.Health(types.SideRemote))
	assert.True(t, h.store.Hit(events.HitLocalHitRemote))
}

func TestEngine_MissingHalfIsSkipped(t *testing.T) {
	h := newHarness(1)
	h.store.SetHealth(types.SideLocal, 70)

	h.engine.Reconcile(&messages.ActionMessage{
		Action:    "gun",
		PlayerID:  1,
		Hit:       true,
		GameState: &messages.GameStateSnapshot{P2: &messages.PlayerStateWire{HP: 60}},
	})

	assert.Equal(t, 70, h.store.Health(types.SideLocal))
	assert.Equal(t, 60, h.store.Health(types.SideRemote))
	assert.True(t, h.store.Hit(events.HitLocalHitRemote))
	assert.Len(t, h.local, 1)
}

func TestEngine_SnapshotIsClamped(t *testing.T) {
	h := newHarness(1)
	h.engine.ApplySnapshot(&messages.GameStateSnapshot{
		P1: &messages.PlayerStateWire{HP: 500, ShieldHP: 31, Bullets: -2},
	})
	assert.Equal(t, 100, h.store.Health(types.SideLocal))
	assert.Equal(t, 30, h.store.ShieldHP(types.SideLocal))
	assert.Equal(t, 0, h.store.Bullets(types.SideLocal))
}

func TestEngine_SnapshotDeathsNeverWrap(t *testing.T) {
	h := newHarness(1)
	require.NoError(t, h.engine.Process(envelope(`{"game_state":{"p1":{"deaths":4294967295},"p2":{"deaths":2147483648}}}`)))

	assert.Equal(t, math.MaxInt32, h.store.Deaths(types.SideLocal))
	assert.Equal(t, math.MaxInt32, h.store.Deaths(types.SideRemote))
	assert.Equal(t, math.MaxInt32, h.store.Score(types.SideLocal))
}

func TestEngine_SnapshotKeepsLocalVisibility(t *testing.T) {
	h := newHarness(1)
	require.NoError(t, h.engine.Process(&VisibilityObservation{Visible: true}))

	h.engine.ApplySnapshot(&messages.GameStateSnapshot{
		P1: &messages.PlayerStateWire{HP: 50, IsVisible: false},
		P2: &messages.PlayerStateWire{HP: 50, IsVisible: true},
	})

	assert.True(t, h.store.Visible(types.SideLocal))
	assert.True(t, h.store.Visible(types.SideRemote))
}

func TestEngine_SnapshotOpponentHits(t *testing.T) {
	h := newHarness(1)
	h.engine.ApplySnapshot(&messages.GameStateSnapshot{
		P1: &messages.PlayerStateWire{HP: 100, OpponentHit: true},
		P2: &messages.PlayerStateWire{HP: 90, OpponentShieldHit: true},
	})

	assert.True(t, h.store.Hit(events.HitLocalHitRemote))
	assert.False(t, h.store.Hit(events.HitLocalShieldHitRemote))
	assert.False(t, h.store.Hit(events.HitRemoteHitLocal))
	assert.True(t, h.store.Hit(events.HitRemoteShieldHitLocal))

	// a snapshot without the flags leaves them raised
	h.engine.ApplySnapshot(&messages.GameStateSnapshot{P1: &messages.PlayerStateWire{HP: 100}})
	assert.True(t, h.store.Hit(events.HitLocalHitRemote))
}

func TestEngine_ActionWithSnapshotHitRaisesOnce(t *testing.T) {
	h := newHarness(1)
	require.NoError(t, h.engine.Process(envelope(`{"action":"gun","player_id":2,"hit":true,"game_state":{"p1":{"hp":95},"p2":{"hp":100,"opponent_hit":true}}}`)))

	assert.True(t, h.store.Hit(events.HitRemoteHitLocal))
	assert.Equal(t, []events.HitFlag{events.HitRemoteHitLocal}, h.hits)
}

func TestEngine_DecodeResilience(t *testing.T) {
	h := newHarness(1)
	before := h.store.View()

	for _, payload := range []string{`{"action":`, `[]`, `{"foo":1}`, `{"type":"chat"}`} {
		assert.Error(t, h.engine.Process(envelope(payload)))
	}
	h.engine.ProcessAll([]interface{}{envelope(`nope`), "not an item"})

	assert.Equal(t, before, h.store.View())
	assert.Empty(t, h.local)
	assert.Empty(t, h.remote)
}

func TestEngine_LocalObservations(t *testing.T) {
	h := newHarness(1)
	var visibility []events.VisibilityEvent
	h.store.Hub().Visibility.Subscribe(func(e events.VisibilityEvent) { visibility = append(visibility, e) })

	h.engine.ProcessAll([]interface{}{
		&VisibilityObservation{Visible: true},
		&VisibilityObservation{Visible: true},
		&ContactCountObservation{Count: 3},
	})

	assert.True(t, h.store.Visible(types.SideLocal))
	assert.Equal(t, 3, h.store.ContactCount())
	assert.Equal(t, []events.VisibilityEvent{{Side: types.SideLocal, Visible: true}}, visibility)
}
