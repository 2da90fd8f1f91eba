package transport

import (
	"sync/atomic"

	"github.com/cbodonnell/duelsync/pkg/log"
)

// NullTransport is an always-connected transport that discards publishes.
// It is used to drive a session offline, e.g. when replaying a capture.
type NullTransport struct {
	handlers  Handlers
	connected atomic.Bool
	published atomic.Int64
	logger    *log.Logger
}

func NewNullTransport(handlers Handlers) *NullTransport {
	return &NullTransport{
		handlers: handlers,
		logger:   log.Default().With("transport"),
	}
}

func (t *NullTransport) Connect() error {
	if t.connected.CompareAndSwap(false, true) && t.handlers.OnConnected != nil {
		t.handlers.OnConnected()
	}
	return nil
}

func (t *NullTransport) Disconnect() {
	t.connected.Store(false)
}

func (t *NullTransport) Subscribe([]Subscription) error {
	return nil
}

func (t *NullTransport) Publish(topic string, payload []byte, qos byte, retain bool) error {
	t.published.Add(1)
	t.logger.Debug("Discarding publish to %s: %s", topic, payload)
	return nil
}

func (t *NullTransport) IsConnected() bool {
	return t.connected.Load()
}

func (t *NullTransport) LastError() string {
	return ""
}

// Published returns the number of discarded publishes.
func (t *NullTransport) Published() int64 {
	return t.published.Load()
}

// Deliver hands a message to the OnMessage handler as if it had arrived
// from a broker.
func (t *NullTransport) Deliver(topic string, payload []byte) {
	if t.handlers.OnMessage != nil {
		t.handlers.OnMessage(topic, payload)
	}
}
