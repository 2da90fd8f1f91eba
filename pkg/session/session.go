package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbodonnell/duelsync/pkg/config"
	"github.com/cbodonnell/duelsync/pkg/devices"
	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/queue"
	"github.com/cbodonnell/duelsync/pkg/reconcile"
	"github.com/cbodonnell/duelsync/pkg/repositories"
	"github.com/cbodonnell/duelsync/pkg/router"
	"github.com/cbodonnell/duelsync/pkg/state"
	"github.com/cbodonnell/duelsync/pkg/transport"
	"github.com/cbodonnell/duelsync/pkg/visibility"
	"github.com/cbodonnell/duelsync/pkg/workers"
)

const (
	timerLogout      = "logout"
	timerHitPrefix   = "hit:"
	matchLogInterval = 10 * time.Second
)

// TransportFactory builds the transport a session reports through.
type TransportFactory func(handlers transport.Handlers) transport.Transport

// Session owns every component of one logged-in duel client.
//
// Two goroutines touch it: the transport's I/O goroutines, which only route
// messages, answer visibility polls and apply device status, and the
// consumer, which calls Tick and is the only writer of game state.
type Session struct {
	cfg       *config.Config
	id        string
	localID   types.PlayerID
	logger    *log.Logger
	store     *state.Store
	hub       *events.Hub
	queue     queue.Queue
	router    *router.Router
	engine    *reconcile.Engine
	responder *visibility.Responder
	tracker   *devices.Tracker
	transport transport.Transport

	reconnector *transport.Reconnector
	matchLog    *workers.MatchLogWorker
	repository  repositories.Repository

	// consumer goroutine only
	scheduler *scheduler
	now       time.Time

	startOnce sync.Once
}

type NewSessionOptions struct {
	Config *config.Config
	// Transport defaults to an MQTT transport built from Config.
	Transport TransportFactory
	// Repository enables the match log when set.
	Repository repositories.Repository
	// Capture receives every inbound message, e.g. a recorder.Recorder.
	Capture router.Capture
	Logger  *log.Logger
}

func New(opts NewSessionOptions) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	localID := types.PlayerID(cfg.Session.LocalID)
	hub := events.NewHub()
	store := state.NewStore(localID, hub)

	s := &Session{
		cfg:        cfg,
		id:         uuid.NewString(),
		localID:    localID,
		logger:     logger.With("session"),
		store:      store,
		hub:        hub,
		queue:      queue.NewInMemoryQueue(cfg.Session.QueueCapacity),
		scheduler:  newScheduler(),
		repository: opts.Repository,
	}

	handlers := transport.Handlers{
		OnConnected:        s.onConnected,
		OnConnectionFailed: s.onConnectionFailed,
		OnDisconnected:     s.onDisconnected,
		OnMessage:          s.Route,
	}
	if opts.Transport != nil {
		s.transport = opts.Transport(handlers)
	} else {
		s.transport = newMQTTTransport(cfg, handlers, logger.With("transport"))
	}

	if cfg.Reconnect.Enabled {
		s.reconnector = transport.NewReconnector(s.transport, &transport.ReconnectorOptions{
			MinBackoff:  cfg.Reconnect.MinBackoff,
			MaxBackoff:  cfg.Reconnect.MaxBackoff,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			Logger:      logger.With("reconnect"),
		})
	}

	var matchLog reconcile.MatchLog
	if opts.Repository != nil {
		s.matchLog = workers.NewMatchLogWorker(workers.NewMatchLogWorkerOptions{
			Repository: opts.Repository,
			Store:      store,
			SessionID:  s.id,
			Interval:   matchLogInterval,
			Logger:     logger.With("matchlog"),
		})
		matchLog = s.matchLog
	}

	s.engine = reconcile.NewEngine(reconcile.NewEngineOptions{
		Store:    store,
		MatchLog: matchLog,
		Logger:   logger.With("reconcile"),
	})
	s.responder = visibility.NewResponder(visibility.NewResponderOptions{
		Store:         store,
		Publisher:     s.transport,
		FeedbackTopic: cfg.Topics.VisibilityFeedback,
		Logger:        logger.With("visibility"),
	})
	s.tracker = devices.NewTracker(store, logger.With("devices"))
	s.router = router.NewRouter(router.NewRouterOptions{
		Topics: router.Topics{
			GameState:         cfg.Topics.GameState,
			VisibilityRequest: cfg.Topics.VisibilityRequest,
			DeviceStatus:      cfg.Topics.DeviceStatus,
		},
		Queue:        s.queue,
		Visibility:   s.responder,
		DeviceStatus: s.tracker,
		Capture:      opts.Capture,
		Logger:       logger.With("router"),
	})

	s.subscribeInternal()
	return s, nil
}

func newMQTTTransport(cfg *config.Config, handlers transport.Handlers, logger *log.Logger) transport.Transport {
	var tlsConfig *tls.Config
	if cfg.Broker.TLS {
		tlsConfig = &tls.Config{
			ServerName: cfg.Broker.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
	return transport.NewMQTTTransport(&transport.MQTTTransportOptions{
		BrokerURL:      cfg.Broker.URL(),
		ClientID:       cfg.Broker.ClientID,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		TLSConfig:      tlsConfig,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		Subscriptions:  Subscriptions(cfg),
		Handlers:       handlers,
		Reachability:   transport.InterfaceReachability(cfg.Broker.Host),
		Logger:         logger,
	})
}

// Subscriptions are the inbound topics of a session, all at most once.
func Subscriptions(cfg *config.Config) []transport.Subscription {
	return []transport.Subscription{
		{Topic: cfg.Topics.GameState, QoS: transport.QoSAtMostOnce},
		{Topic: cfg.Topics.VisibilityRequest, QoS: transport.QoSAtMostOnce},
		{Topic: cfg.Topics.DeviceStatus, QoS: transport.QoSAtMostOnce},
	}
}

// subscribeInternal wires the session's own reactions to engine events.
// All of them run on the consumer goroutine.
func (s *Session) subscribeInternal() {
	s.hub.LocalActions.Subscribe(types.ActionLogout, func(events.ActionEvent) {
		s.scheduleLogout()
	})

	if s.cfg.Session.HitResetDelay > 0 {
		s.hub.Hits.Subscribe(func(e events.HitEvent) {
			flag := e.Flag
			s.scheduler.After(s.now, s.cfg.Session.HitResetDelay, timerHitPrefix+flag.String(), func() {
				s.store.SetHit(flag, false)
			})
		})
	}

	if s.cfg.Session.AnnounceVisibility {
		s.hub.Visibility.Subscribe(func(e events.VisibilityEvent) {
			if e.Side == types.SideLocal {
				s.responder.Announce()
			}
		})
	}
}

// scheduleLogout logs the local player out after the logout delay. A repeated
// confirmation does not push the deadline back.
func (s *Session) scheduleLogout() {
	if s.scheduler.Pending(timerLogout) {
		s.logger.Debug("Logout already pending")
		return
	}
	s.logger.Info("Logout confirmed, logging out in %s", s.cfg.Session.LogoutDelay)
	s.scheduler.After(s.now, s.cfg.Session.LogoutDelay, timerLogout, s.logout)
}

func (s *Session) logout() {
	for flag := events.HitLocalHitRemote; flag <= events.HitRemoteShieldHitLocal; flag++ {
		s.scheduler.Cancel(timerHitPrefix + flag.String())
	}
	s.store.ClearHits()
	s.store.SetLoggedIn(types.SideLocal, false)
	s.hub.Session.Publish(events.SessionEvent{
		Type:     events.SessionEventLoggedOut,
		PlayerID: s.localID,
	})
}

// ID is the unique id of this session, used to key the match log.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) LocalID() types.PlayerID {
	return s.localID
}

func (s *Session) Config() *config.Config {
	return s.cfg
}

// Store exposes the state for reading. Writes belong to the session.
func (s *Session) Store() *state.Store {
	return s.store
}

// Hub is where consumers subscribe to session events.
func (s *Session) Hub() *events.Hub {
	return s.hub
}

func (s *Session) Transport() transport.Transport {
	return s.transport
}

func (s *Session) Tracker() *devices.Tracker {
	return s.tracker
}

func (s *Session) Repository() repositories.Repository {
	return s.repository
}

// QueueSize is the number of items waiting for the next tick.
func (s *Session) QueueSize() int {
	return s.queue.Size()
}

// Route hands an inbound message to the router as the transport would.
func (s *Session) Route(topic string, payload []byte) {
	s.router.Route(topic, payload)
}

// Tick drains the inbound queue, applies every item in arrival order and
// then runs due timers. It must only be called from the consumer goroutine.
func (s *Session) Tick(now time.Time) {
	s.now = now
	items, err := s.queue.ReadAllMessages()
	if err != nil {
		s.logger.Error("Failed to read inbound queue: %v", err)
	} else {
		s.engine.ProcessAll(items)
	}
	s.scheduler.RunDue(now)
}

// Start connects, then ticks every tick interval until ctx is done.
func (s *Session) Start(ctx context.Context) error {
	started := false
	s.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("session already started")
	}

	if s.reconnector != nil {
		s.reconnector.Start(ctx)
	}
	var wg sync.WaitGroup
	if s.matchLog != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.matchLog.Start(ctx)
		}()
	}
	defer wg.Wait()
	defer s.transport.Disconnect()

	if err := s.transport.Connect(); err != nil {
		s.logger.Warn("Initial connect failed: %v", err)
	}

	ticker := time.NewTicker(s.cfg.Session.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.discardQueued()
			return nil
		case t := <-ticker.C:
			s.Tick(t)
		}
	}
}

// SubmitAction publishes a local action intent for the game server.
// The action takes effect once the server confirms it on the game state topic.
func (s *Session) SubmitAction(action string) (*messages.ActionIntent, error) {
	if action == "" {
		return nil, fmt.Errorf("action must not be empty")
	}
	intent := &messages.ActionIntent{
		ID:        uuid.NewString(),
		Action:    action,
		PlayerID:  s.localID,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := messages.Encode(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action intent: %v", err)
	}
	if err := s.transport.Publish(s.cfg.Topics.Action, payload, transport.QoSAtLeastOnce, false); err != nil {
		return nil, fmt.Errorf("failed to publish action %q: %w", action, err)
	}
	s.logger.Debug("Submitted action %s (%s)", action, intent.ID)
	return intent, nil
}

// ReportVisibility records whether the local AR tracking currently sees the
// opponent. It is applied on the next tick.
func (s *Session) ReportVisibility(visible bool) error {
	return s.enqueue(&reconcile.VisibilityObservation{Visible: visible})
}

// ReportContactCount records how many bombs the opponent is standing in.
// It is applied on the next tick.
func (s *Session) ReportContactCount(count int) error {
	return s.enqueue(&reconcile.ContactCountObservation{Count: count})
}

// discardQueued drops whatever arrived after the last tick of a stopped session.
func (s *Session) discardQueued() {
	n := s.queue.Size()
	if n == 0 {
		return
	}
	if err := s.queue.ClearQueue(); err != nil {
		s.logger.Error("Failed to clear inbound queue: %v", err)
		return
	}
	s.logger.Debug("Discarded %d queued messages on shutdown", n)
}

func (s *Session) enqueue(item interface{}) error {
	if err := s.queue.Enqueue(item); err != nil {
		return fmt.Errorf("failed to queue %T: %w", item, err)
	}
	return nil
}

func (s *Session) onConnected() {
	s.store.SetConnection(true, "")
	if s.reconnector != nil {
		s.reconnector.Reset()
	}
	s.hub.Connection.Publish(events.ConnectionEvent{Connected: true})
}

func (s *Session) onConnectionFailed(reason string) {
	s.store.SetConnection(false, reason)
	s.hub.Connection.Publish(events.ConnectionEvent{Connected: false, Reason: reason})
	if s.reconnector != nil {
		s.reconnector.Trigger(reason)
	}
}

func (s *Session) onDisconnected(reason string) {
	s.store.SetConnection(false, reason)
	s.hub.Connection.Publish(events.ConnectionEvent{Connected: false, Reason: reason})
	if s.reconnector != nil {
		s.reconnector.Trigger(reason)
	}
}
