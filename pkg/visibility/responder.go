package visibility

import (
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/state"
	"github.com/cbodonnell/duelsync/pkg/transport"
)

// Publisher is the outbound half of a transport.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retain bool) error
}

// Responder answers server visibility polls for the local player.
// It only reads the store and may run on any goroutine.
type Responder struct {
	store     *state.Store
	publisher Publisher
	topic     string
	logger    *log.Logger
}

type NewResponderOptions struct {
	Store     *state.Store
	Publisher Publisher
	// FeedbackTopic is where replies are published.
	FeedbackTopic string
	Logger        *log.Logger
}

func NewResponder(opts NewResponderOptions) *Responder {
	if opts.Logger == nil {
		opts.Logger = log.Default().With("visibility")
	}
	return &Responder{
		store:     opts.Store,
		publisher: opts.Publisher,
		topic:     opts.FeedbackTopic,
		logger:    opts.Logger,
	}
}

// OnVisibilityRequest replies to a poll addressed to the local player and
// ignores polls for the other client.
func (r *Responder) OnVisibilityRequest(req *messages.VisibilityRequest) {
	if req.PlayerID != r.store.LocalID() {
		r.logger.Trace("Ignoring visibility request for player %d", req.PlayerID)
		return
	}
	r.Announce()
}

// Announce publishes the local player's current visibility and contact count.
func (r *Responder) Announce() {
	feedback := messages.NewVisibilityFeedback(
		r.store.LocalID(),
		r.store.Visible(types.SideLocal),
		r.store.ContactCount(),
	)
	payload, err := messages.Encode(feedback)
	if err != nil {
		r.logger.Error("Failed to encode visibility feedback: %v", err)
		return
	}
	if err := r.publisher.Publish(r.topic, payload, transport.QoSAtLeastOnce, false); err != nil {
		r.logger.Warn("Failed to publish visibility feedback: %v", err)
		return
	}
	r.logger.Debug("Published visibility feedback %s", payload)
}
