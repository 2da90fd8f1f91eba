package router

import (
	"time"

	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/queue"
)

// VisibilityHandler answers visibility polls on the I/O goroutine.
type VisibilityHandler interface {
	OnVisibilityRequest(req *messages.VisibilityRequest)
}

// DeviceStatusHandler applies device status on the I/O goroutine.
type DeviceStatusHandler interface {
	OnDeviceStatus(msg *messages.DeviceStatusMessage)
}

// Capture receives every inbound message before it is routed.
type Capture interface {
	Capture(topic string, payload []byte)
}

type Topics struct {
	GameState         string
	VisibilityRequest string
	DeviceStatus      string
}

// Router dispatches inbound broker messages by topic.
type Router struct {
	topics     Topics
	queue      queue.Queue
	visibility VisibilityHandler
	devices    DeviceStatusHandler
	capture    Capture
	logger     *log.Logger
	now        func() time.Time
}

type NewRouterOptions struct {
	Topics       Topics
	Queue        queue.Queue
	Visibility   VisibilityHandler
	DeviceStatus DeviceStatusHandler
	// Capture is optional.
	Capture Capture
	Logger  *log.Logger
	Now     func() time.Time
}

func NewRouter(opts NewRouterOptions) *Router {
	if opts.Logger == nil {
		opts.Logger = log.Default().With("router")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		topics:     opts.Topics,
		queue:      opts.Queue,
		visibility: opts.Visibility,
		devices:    opts.DeviceStatus,
		capture:    opts.Capture,
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// Route handles one inbound message. Visibility requests and device status
// are handled before Route returns. Game state topic payloads are queued
// undecoded for the consumer. Errors are logged, never returned.
func (r *Router) Route(topic string, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic routing message on %s: %v", topic, rec)
		}
	}()

	if r.capture != nil {
		r.capture.Capture(topic, payload)
	}

	switch topic {
	case r.topics.VisibilityRequest:
		req, err := messages.DecodeVisibilityRequest(payload)
		if err != nil {
			r.logger.Warn("Dropping visibility request: %v", err)
			return
		}
		if r.visibility != nil {
			r.visibility.OnVisibilityRequest(req)
		}
	case r.topics.DeviceStatus:
		msg, err := messages.DecodeDeviceStatusMessage(payload)
		if err != nil {
			r.logger.Warn("Dropping device status: %v", err)
			return
		}
		if r.devices != nil {
			r.devices.OnDeviceStatus(msg)
		}
	case r.topics.GameState:
		envelope := &messages.Envelope{
			Topic:     topic,
			Payload:   append([]byte(nil), payload...),
			Timestamp: r.now().UnixMilli(),
		}
		if err := r.queue.Enqueue(envelope); err != nil {
			r.logger.Warn("Dropping game message: %v", err)
		}
	default:
		r.logger.Debug("Ignoring message on unexpected topic %s", topic)
	}
}
