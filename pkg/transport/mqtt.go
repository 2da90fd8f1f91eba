package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cbodonnell/duelsync/pkg/log"
)

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultSubscribeTimeout = 5 * time.Second
	// DisconnectQuiesce is how long Disconnect lets in-flight work finish, in milliseconds
	DisconnectQuiesce uint = 250
)

// ClientFactory builds the paho client for a connection attempt.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// MQTTTransportOptions configure an MQTTTransport.
type MQTTTransportOptions struct {
	// BrokerURL is a paho broker URL, e.g. tcp://localhost:1883
	BrokerURL string
	// ClientID defaults to duelsync-<uuid>
	ClientID       string
	Username       string
	Password       string
	TLSConfig      *tls.Config
	ConnectTimeout time.Duration
	// Subscriptions are made on every successful connect.
	Subscriptions []Subscription
	Handlers      Handlers
	// Reachability defaults to AlwaysReachable.
	Reachability Reachability
	// NewClient defaults to mqtt.NewClient.
	NewClient ClientFactory
	Logger    *log.Logger
}

// MQTTTransport is a Transport over an MQTT broker.
// It never reconnects on its own; see Reconnector.
type MQTTTransport struct {
	opts   MQTTTransportOptions
	logger *log.Logger

	lock          sync.Mutex
	client        mqtt.Client
	subscriptions []Subscription

	connecting atomic.Bool
	connected  atomic.Bool
	lastError  atomic.Value
}

func NewMQTTTransport(opts *MQTTTransportOptions) *MQTTTransport {
	o := *opts
	if o.ClientID == "" {
		o.ClientID = "duelsync-" + uuid.NewString()
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Reachability == nil {
		o.Reachability = AlwaysReachable
	}
	if o.NewClient == nil {
		o.NewClient = mqtt.NewClient
	}
	if o.Logger == nil {
		o.Logger = log.Default().With("transport")
	}
	t := &MQTTTransport{
		opts:          o,
		logger:        o.Logger,
		subscriptions: append([]Subscription(nil), o.Subscriptions...),
	}
	t.lastError.Store("")
	return t
}

// ClientID returns the MQTT client id used for the connection.
func (t *MQTTTransport) ClientID() string {
	return t.opts.ClientID
}

func (t *MQTTTransport) IsConnected() bool {
	return t.connected.Load()
}

func (t *MQTTTransport) LastError() string {
	return t.lastError.Load().(string)
}

// Connect checks reachability and starts the handshake in the background.
// It returns ErrNetworkUnreachable without attempting the handshake when the
// network is down. Calling Connect while connected or connecting is a no-op.
func (t *MQTTTransport) Connect() error {
	if t.connected.Load() {
		return nil
	}
	if !t.connecting.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.opts.Reachability(); err != nil {
		t.connecting.Store(false)
		t.fail(ErrNetworkUnreachable.Error())
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(t.opts.BrokerURL).
		SetClientID(t.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(false).
		SetConnectTimeout(t.opts.ConnectTimeout).
		SetConnectionLostHandler(t.onConnectionLost)
	if t.opts.Username != "" {
		clientOpts.SetUsername(t.opts.Username)
		clientOpts.SetPassword(t.opts.Password)
	}
	if t.opts.TLSConfig != nil {
		clientOpts.SetTLSConfig(t.opts.TLSConfig)
	}

	client := t.opts.NewClient(clientOpts)
	t.lock.Lock()
	t.client = client
	t.lock.Unlock()

	t.logger.Info("Connecting to %s as %s", t.opts.BrokerURL, t.opts.ClientID)
	go t.handshake(client)
	return nil
}

func (t *MQTTTransport) handshake(client mqtt.Client) {
	defer t.connecting.Store(false)
	defer func() {
		if r := recover(); r != nil {
			t.fail(describeError(fmt.Errorf("handshake panicked: %v", r)))
		}
	}()

	token := client.Connect()
	if !token.WaitTimeout(t.opts.ConnectTimeout) {
		t.fail(describeError(fmt.Errorf("connect to %s timed out after %s", t.opts.BrokerURL, t.opts.ConnectTimeout)))
		return
	}
	if err := token.Error(); err != nil {
		t.fail(describeError(err))
		return
	}

	t.lock.Lock()
	subscriptions := append([]Subscription(nil), t.subscriptions...)
	t.lock.Unlock()
	if err := t.subscribe(client, subscriptions); err != nil {
		client.Disconnect(DisconnectQuiesce)
		t.fail(describeError(err))
		return
	}

	t.connected.Store(true)
	t.logger.Info("Connected to %s", t.opts.BrokerURL)
	if t.opts.Handlers.OnConnected != nil {
		t.opts.Handlers.OnConnected()
	}
}

func (t *MQTTTransport) fail(reason string) {
	t.connected.Store(false)
	t.lastError.Store(reason)
	t.logger.Error("Connection failed: %s", reason)
	if t.opts.Handlers.OnConnectionFailed != nil {
		t.opts.Handlers.OnConnectionFailed(reason)
	}
}

func (t *MQTTTransport) onConnectionLost(_ mqtt.Client, err error) {
	reason := "connection lost"
	if err != nil {
		reason = describeError(err)
	}
	t.connected.Store(false)
	t.lastError.Store(reason)
	t.logger.Warn("Disconnected from %s: %s", t.opts.BrokerURL, reason)
	if t.opts.Handlers.OnDisconnected != nil {
		t.opts.Handlers.OnDisconnected(reason)
	}
}

func (t *MQTTTransport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Recovered from panic handling message on %s: %v", msg.Topic(), r)
		}
	}()
	if t.opts.Handlers.OnMessage != nil {
		t.opts.Handlers.OnMessage(msg.Topic(), msg.Payload())
	}
}

// Disconnect closes the connection. It does not report through OnDisconnected.
func (t *MQTTTransport) Disconnect() {
	t.lock.Lock()
	client := t.client
	t.client = nil
	t.lock.Unlock()

	t.connected.Store(false)
	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(DisconnectQuiesce)
		t.logger.Info("Disconnected from %s", t.opts.BrokerURL)
	}
}

// Subscribe adds subscriptions. They are kept and made again on every
// later connect.
func (t *MQTTTransport) Subscribe(subscriptions []Subscription) error {
	t.lock.Lock()
	t.subscriptions = append(t.subscriptions, subscriptions...)
	client := t.client
	t.lock.Unlock()

	if client == nil || !t.connected.Load() {
		return ErrNotConnected
	}
	return t.subscribe(client, subscriptions)
}

func (t *MQTTTransport) subscribe(client mqtt.Client, subscriptions []Subscription) error {
	if len(subscriptions) == 0 {
		return nil
	}
	filters := make(map[string]byte, len(subscriptions))
	for _, s := range subscriptions {
		filters[s.Topic] = s.QoS
	}
	token := client.SubscribeMultiple(filters, t.onMessage)
	if !token.WaitTimeout(DefaultSubscribeTimeout) {
		return fmt.Errorf("subscribe timed out after %s", DefaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	for _, s := range subscriptions {
		t.logger.Debug("Subscribed to %s at QoS %d", s.Topic, s.QoS)
	}
	return nil
}

// Publish sends payload without waiting for the broker to acknowledge it.
// While disconnected the message is dropped with a warning.
func (t *MQTTTransport) Publish(topic string, payload []byte, qos byte, retain bool) error {
	t.lock.Lock()
	client := t.client
	t.lock.Unlock()

	if client == nil || !t.connected.Load() {
		t.logger.Warn("Dropping publish to %s: not connected", topic)
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, retain, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			t.logger.Warn("Publish to %s failed: %v", topic, err)
		}
	}()
	return nil
}

// describeError formats err and the error it wraps, if any, as
// "Type: message | Inner: Type: message".
func describeError(err error) string {
	s := fmt.Sprintf("%T: %v", err, err)
	if inner := errors.Unwrap(err); inner != nil {
		s += fmt.Sprintf(" | Inner: %T: %v", inner, inner)
	}
	return s
}
