package reconcile

import (
	"fmt"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/state"
)

// VisibilityObservation is the local AR tracking reporting whether the
// opponent can currently be seen.
type VisibilityObservation struct {
	Visible bool
}

// ContactCountObservation is the local AR tracking reporting how many bombs
// the opponent is standing in.
type ContactCountObservation struct {
	Count int
}

// MatchLog receives every reconciled action and applied snapshot.
type MatchLog interface {
	RecordAction(side types.Side, msg *messages.ActionMessage)
	RecordSnapshot(snapshot *messages.GameStateSnapshot)
}

// Engine applies queued messages to the store. It must only be called
// from the consumer goroutine.
type Engine struct {
	store    *state.Store
	hub      *events.Hub
	matchLog MatchLog
	logger   *log.Logger
}

type NewEngineOptions struct {
	Store *state.Store
	// MatchLog is optional.
	MatchLog MatchLog
	Logger   *log.Logger
}

func NewEngine(opts NewEngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default().With("reconcile")
	}
	return &Engine{
		store:    opts.Store,
		hub:      opts.Store.Hub(),
		matchLog: opts.MatchLog,
		logger:   opts.Logger,
	}
}

// ProcessAll processes queue items in order. A failing item is logged and
// skipped.
func (e *Engine) ProcessAll(items []interface{}) {
	for _, item := range items {
		if err := e.Process(item); err != nil {
			e.logger.Warn("Dropping queued item: %v", err)
		}
	}
}

// Process applies a single queue item.
func (e *Engine) Process(item interface{}) error {
	switch item := item.(type) {
	case *messages.Envelope:
		msg, err := messages.DecodeGameMessage(item.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode message on %s: %w", item.Topic, err)
		}
		return e.Process(msg)
	case *messages.ActionMessage:
		e.Reconcile(item)
	case *messages.GameStateMessage:
		e.ApplySnapshot(item.GameState)
	case *VisibilityObservation:
		e.store.SetVisible(types.SideLocal, item.Visible)
	case *ContactCountObservation:
		e.store.SetContactCount(item.Count)
	default:
		return fmt.Errorf("unknown queue item type %T", item)
	}
	return nil
}

// Reconcile attributes an action to a side, sets or clears that side's hit
// flag, dispatches the action on the side's channel, then merges the
// embedded snapshot if there is one.
func (e *Engine) Reconcile(msg *messages.ActionMessage) {
	side := e.store.SideOf(msg.PlayerID)
	hit := bool(msg.Hit)

	if side == types.SideRemote {
		e.store.SetHit(events.HitRemoteHitLocal, hit)
	} else {
		e.store.SetHit(events.HitLocalHitRemote, hit)
	}

	event := events.ActionEvent{
		Action:   msg.Action,
		PlayerID: msg.PlayerID,
		Side:     side,
		Hit:      hit,
	}
	if side == types.SideRemote {
		e.logger.Debug("Remote action %q hit=%t", msg.Action, hit)
		e.hub.RemoteActions.Publish(event)
	} else {
		e.logger.Debug("Local action %q confirmed hit=%t", msg.Action, hit)
		e.hub.LocalActions.Publish(event)
	}

	if e.matchLog != nil {
		e.matchLog.RecordAction(side, msg)
	}

	if msg.GameState != nil {
		e.ApplySnapshot(msg.GameState)
	}
}

// ApplySnapshot merges a server snapshot into the store. A missing half is
// skipped. The local player's visibility is owned by the local tracking and
// is kept as is.
func (e *Engine) ApplySnapshot(snapshot *messages.GameStateSnapshot) {
	if snapshot == nil {
		return
	}
	for _, id := range []types.PlayerID{types.PlayerOne, types.PlayerTwo} {
		wire := snapshot.Player(id)
		if wire == nil {
			e.logger.Debug("Snapshot has no state for player %d", id)
			continue
		}
		side := e.store.SideOf(id)
		ps := wire.PlayerState()
		if side == types.SideLocal {
			ps.IsVisible = e.store.Visible(types.SideLocal)
		}
		e.store.SetPlayer(side, ps)
		e.applyOpponentHits(side, wire)
	}

	if e.matchLog != nil {
		e.matchLog.RecordSnapshot(snapshot)
	}
}

// applyOpponentHits raises the hit flags a player's half reports against
// its opponent. They are never cleared from a snapshot, and a flag that is
// already raised, e.g. by the action carrying the snapshot, is left alone.
func (e *Engine) applyOpponentHits(side types.Side, wire *messages.PlayerStateWire) {
	hitFlag, shieldFlag := events.HitLocalHitRemote, events.HitLocalShieldHitRemote
	if side == types.SideRemote {
		hitFlag, shieldFlag = events.HitRemoteHitLocal, events.HitRemoteShieldHitLocal
	}
	if bool(wire.OpponentHit) && !e.store.Hit(hitFlag) {
		e.store.SetHit(hitFlag, true)
	}
	if bool(wire.OpponentShieldHit) && !e.store.Hit(shieldFlag) {
		e.store.SetHit(shieldFlag, true)
	}
}
