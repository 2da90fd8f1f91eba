package events

import (
	"sync"

	"github.com/cbodonnell/duelsync/pkg/game/types"
)

// Handler receives events of type T.
type Handler[T any] func(event T)

// Registry is a typed observer list.
// Handlers are called synchronously, in registration order, on the goroutine
// that publishes the event.
type Registry[T any] struct {
	lock     sync.Mutex
	nextID   uint64
	handlers []registration[T]
}

type registration[T any] struct {
	id      uint64
	handler Handler[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Subscribe registers a handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (r *Registry[T]) Subscribe(handler Handler[T]) (unsubscribe func()) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.nextID++
	id := r.nextID
	r.handlers = append(r.handlers, registration[T]{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[T]) remove(id uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i, reg := range r.handlers {
		if reg.id == id {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every registered handler.
// The handler list is copied first so handlers may subscribe or unsubscribe
// while being called.
func (r *Registry[T]) Publish(event T) {
	r.lock.Lock()
	handlers := make([]Handler[T], len(r.handlers))
	for i, reg := range r.handlers {
		handlers[i] = reg.handler
	}
	r.lock.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Len returns the number of registered handlers.
func (r *Registry[T]) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.handlers)
}

// ActionEvent is a game action attributed to one side.
type ActionEvent struct {
	Action   string         `json:"action"`
	PlayerID types.PlayerID `json:"playerId"`
	Side     types.Side     `json:"side"`
	Hit      bool           `json:"hit"`
}

// ActionRegistry dispatches action events by action name.
// Handlers subscribed with SubscribeAll see every action.
type ActionRegistry struct {
	all    *Registry[ActionEvent]
	lock   sync.Mutex
	byName map[string]*Registry[ActionEvent]
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		all:    NewRegistry[ActionEvent](),
		byName: make(map[string]*Registry[ActionEvent]),
	}
}

// Subscribe registers a handler for a single action name.
func (r *ActionRegistry) Subscribe(action string, handler Handler[ActionEvent]) (unsubscribe func()) {
	r.lock.Lock()
	registry, ok := r.byName[action]
	if !ok {
		registry = NewRegistry[ActionEvent]()
		r.byName[action] = registry
	}
	r.lock.Unlock()
	return registry.Subscribe(handler)
}

// SubscribeAll registers a handler for every action.
func (r *ActionRegistry) SubscribeAll(handler Handler[ActionEvent]) (unsubscribe func()) {
	return r.all.Subscribe(handler)
}

// Publish delivers event to the handlers of its action name, then to the
// catch-all handlers.
func (r *ActionRegistry) Publish(event ActionEvent) {
	r.lock.Lock()
	registry := r.byName[event.Action]
	r.lock.Unlock()
	if registry != nil {
		registry.Publish(event)
	}
	r.all.Publish(event)
}

// HitFlag names one of the edge-triggered hit flags.
type HitFlag int

const (
	// HitLocalHitRemote is raised when the local player's action landed.
	HitLocalHitRemote HitFlag = iota
	// HitRemoteHitLocal is raised when the opponent's action landed.
	HitRemoteHitLocal
	// HitLocalShieldHitRemote is raised when the local player hit the opponent's shield.
	HitLocalShieldHitRemote
	// HitRemoteShieldHitLocal is raised when the opponent hit the local player's shield.
	HitRemoteShieldHitLocal
)

func (f HitFlag) String() string {
	switch f {
	case HitLocalHitRemote:
		return "local_hit_remote"
	case HitRemoteHitLocal:
		return "remote_hit_local"
	case HitLocalShieldHitRemote:
		return "local_shield_hit_remote"
	case HitRemoteShieldHitLocal:
		return "remote_shield_hit_local"
	}
	return "unknown"
}

type HitEvent struct {
	Flag HitFlag `json:"flag"`
}

type VisibilityEvent struct {
	Side    types.Side `json:"side"`
	Visible bool       `json:"visible"`
}

type DeviceStatusEvent struct {
	Player1 types.DeviceConnectivity `json:"player1"`
	Player2 types.DeviceConnectivity `json:"player2"`
}

// DevicePromptEvent asks the UI to show or hide the "connect your devices" prompt.
type DevicePromptEvent struct {
	Show bool `json:"show"`
}

type ConnectionEvent struct {
	Connected bool   `json:"connected"`
	Reason    string `json:"reason,omitempty"`
}

type SessionEventType string

const (
	SessionEventLoggedOut SessionEventType = "logged_out"
)

type SessionEvent struct {
	Type     SessionEventType `json:"type"`
	PlayerID types.PlayerID   `json:"playerId"`
}

// Hub owns every event channel a session publishes.
type Hub struct {
	LocalActions  *ActionRegistry
	RemoteActions *ActionRegistry
	Hits          *Registry[HitEvent]
	Visibility    *Registry[VisibilityEvent]
	DeviceStatus  *Registry[DeviceStatusEvent]
	DevicePrompt  *Registry[DevicePromptEvent]
	Connection    *Registry[ConnectionEvent]
	Session       *Registry[SessionEvent]
}

func NewHub() *Hub {
	return &Hub{
		LocalActions:  NewActionRegistry(),
		RemoteActions: NewActionRegistry(),
		Hits:          NewRegistry[HitEvent](),
		Visibility:    NewRegistry[VisibilityEvent](),
		DeviceStatus:  NewRegistry[DeviceStatusEvent](),
		DevicePrompt:  NewRegistry[DevicePromptEvent](),
		Connection:    NewRegistry[ConnectionEvent](),
		Session:       NewRegistry[SessionEvent](),
	}
}
