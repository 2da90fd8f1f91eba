package devices

import (
	"sync"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/state"
)

// Tracker applies peripheral connectivity reports to the store and raises
// change notifications only when something changed.
type Tracker struct {
	store  *state.Store
	hub    *events.Hub
	logger *log.Logger

	// lock serializes reports arriving on concurrent broker callbacks
	lock       sync.Mutex
	seen       bool
	promptShow bool
}

func NewTracker(store *state.Store, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default().With("devices")
	}
	return &Tracker{
		store:  store,
		hub:    store.Hub(),
		logger: logger,
	}
}

// OnDeviceStatus applies a status report. A missing player half is skipped.
// The first report always counts as a change.
func (t *Tracker) OnDeviceStatus(msg *messages.DeviceStatusMessage) {
	t.lock.Lock()
	defer t.lock.Unlock()

	changed := !t.seen
	for _, id := range []types.PlayerID{types.PlayerOne, types.PlayerTwo} {
		wire := msg.Player(id)
		if wire == nil {
			continue
		}
		t.seen = true
		d := wire.DeviceConnectivity()
		if t.store.SetDevice(id, types.DeviceGun, d.Gun) {
			changed = true
		}
		if t.store.SetDevice(id, types.DeviceVest, d.Vest) {
			changed = true
		}
		if t.store.SetDevice(id, types.DeviceGlove, d.Glove) {
			changed = true
		}
	}
	if !t.seen {
		// nothing usable in the report
		return
	}

	local := t.store.Devices(t.store.LocalID())
	if show := local.AllDisconnected(); show != t.promptShow {
		t.promptShow = show
		t.logger.Debug("Device prompt show=%t", show)
		t.hub.DevicePrompt.Publish(events.DevicePromptEvent{Show: show})
	}

	if changed {
		p1 := t.store.Devices(types.PlayerOne)
		p2 := t.store.Devices(types.PlayerTwo)
		t.logger.Info("Device status changed: player 1 %s, player 2 %s", p1, p2)
		t.hub.DeviceStatus.Publish(events.DeviceStatusEvent{Player1: p1, Player2: p2})
	}
}

// PromptShown reports whether the connect-your-devices prompt should be visible.
func (t *Tracker) PromptShown() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.promptShow
}
