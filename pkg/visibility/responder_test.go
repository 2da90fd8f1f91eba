package visibility

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"

	mocks "github.com/cbodonnell/duelsync/mocks/github.com/cbodonnell/duelsync/pkg/visibility"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/state"
	"github.com/cbodonnell/duelsync/pkg/transport"
)

const feedbackTopic = "visualiser/visibility_feedback"

func newTestResponder(store *state.Store, publisher Publisher) *Responder {
	return NewResponder(NewResponderOptions{
		Store:         store,
		Publisher:     publisher,
		FeedbackTopic: feedbackTopic,
		Logger:        log.New(&bytes.Buffer{}, "", 0, log.LogLevelTrace),
	})
}

func TestResponder_PingScenario(t *testing.T) {
	store := state.NewStore(types.PlayerTwo, nil)
	store.SetVisible(types.SideLocal, true)
	store.SetContactCount(3)

	publisher := mocks.NewPublisher(t)
	publisher.EXPECT().
		Publish(feedbackTopic, []byte(`{"player_id":2,"is_visible":"true","bombs_on_player":3}`), transport.QoSAtLeastOnce, false).
		Return(nil).
		Once()

	newTestResponder(store, publisher).OnVisibilityRequest(&messages.VisibilityRequest{PlayerID: types.PlayerTwo})
}

func TestResponder_IgnoresOtherPlayer(t *testing.T) {
	store := state.NewStore(types.PlayerTwo, nil)
	publisher := mocks.NewPublisher(t)

	newTestResponder(store, publisher).OnVisibilityRequest(&messages.VisibilityRequest{PlayerID: types.PlayerOne})

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResponder_NotVisible(t *testing.T) {
	store := state.NewStore(types.PlayerOne, nil)

	publisher := mocks.NewPublisher(t)
	publisher.EXPECT().
		Publish(feedbackTopic, []byte(`{"player_id":1,"is_visible":"false","bombs_on_player":0}`), transport.QoSAtLeastOnce, false).
		Return(nil).
		Once()

	newTestResponder(store, publisher).OnVisibilityRequest(&messages.VisibilityRequest{PlayerID: types.PlayerOne})
}

func TestResponder_PublishErrorIsSwallowed(t *testing.T) {
	store := state.NewStore(types.PlayerOne, nil)

	publisher := mocks.NewPublisher(t)
	publisher.EXPECT().
		Publish(feedbackTopic, mock.Anything, transport.QoSAtLeastOnce, false).
		Return(transport.ErrNotConnected).
		Once()

	newTestResponder(store, publisher).Announce()
}
