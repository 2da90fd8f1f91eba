package handlers

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/cbodonnell/duelsync/pkg/events"
	"github.com/cbodonnell/duelsync/pkg/log"
)

const (
	streamBufferSize   = 256
	streamWriteTimeout = 5 * time.Second
)

// StreamEvent is one session event as written to an event stream.
type StreamEvent struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Event     interface{} `json:"event"`
}

// subscribeStream forwards every hub event to out. Events are dropped when
// out is full so a slow reader never blocks the publisher.
func subscribeStream(hub *events.Hub, out chan<- *StreamEvent) (unsubscribe func()) {
	send := func(typ string, event interface{}) {
		select {
		case out <- &StreamEvent{Type: typ, Timestamp: time.Now().UnixMilli(), Event: event}:
		default:
			log.Warn("Event stream buffer full, dropping %s event", typ)
		}
	}

	unsubscribes := []func(){
		hub.LocalActions.SubscribeAll(func(e events.ActionEvent) { send("local_action", e) }),
		hub.RemoteActions.SubscribeAll(func(e events.ActionEvent) { send("remote_action", e) }),
		hub.Hits.Subscribe(func(e events.HitEvent) { send("hit", e.Flag.String()) }),
		hub.Visibility.Subscribe(func(e events.VisibilityEvent) { send("visibility", e) }),
		hub.DeviceStatus.Subscribe(func(e events.DeviceStatusEvent) { send("device_status", e) }),
		hub.DevicePrompt.Subscribe(func(e events.DevicePromptEvent) { send("device_prompt", e) }),
		hub.Connection.Subscribe(func(e events.ConnectionEvent) { send("connection", e) }),
		hub.Session.Subscribe(func(e events.SessionEvent) { send("session", e) }),
	}
	return func() {
		for _, u := range unsubscribes {
			u()
		}
	}
}

// HandleEvents upgrades to a websocket and streams session events as JSON
// until the client goes away.
func HandleEvents(session Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		defer conn.CloseNow()
		log.Debug("New event stream from %s", r.RemoteAddr)

		out := make(chan *StreamEvent, streamBufferSize)
		unsubscribe := subscribeStream(session.Hub(), out)
		defer unsubscribe()

		// the stream is write only; CloseRead handles pings and the close frame
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				log.Trace("Event stream closed for %s", r.RemoteAddr)
				return
			case event := <-out:
				if err := writeEvent(ctx, conn, event); err != nil {
					log.Debug("Failed to write event to %s: %v", r.RemoteAddr, err)
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event *StreamEvent) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}
