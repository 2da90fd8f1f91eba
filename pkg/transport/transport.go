package transport

import "errors"

// QoS levels used on the broker.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
)

var (
	// ErrNotConnected is returned by Publish and Subscribe while the broker
	// connection is down.
	ErrNotConnected = errors.New("not connected to broker")
	// ErrNetworkUnreachable is returned by Connect when no network is available.
	ErrNetworkUnreachable = errors.New("no network connection available")
)

// Subscription is a topic filter and the QoS it is subscribed at.
type Subscription struct {
	Topic string
	QoS   byte
}

// Handlers are the callbacks a Transport reports its lifecycle through.
// They are called on the transport's I/O goroutines and must not block.
// Any of them may be nil.
type Handlers struct {
	OnConnected        func()
	OnConnectionFailed func(reason string)
	OnDisconnected     func(reason string)
	OnMessage          func(topic string, payload []byte)
}

// Transport owns a broker connection. It carries bytes only.
type Transport interface {
	// Connect starts connecting and returns without waiting for the
	// handshake. The outcome is reported through Handlers.
	Connect() error
	Disconnect()
	Subscribe(subscriptions []Subscription) error
	Publish(topic string, payload []byte, qos byte, retain bool) error
	IsConnected() bool
	LastError() string
}
