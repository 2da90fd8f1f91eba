package router

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocks "github.com/cbodonnell/duelsync/mocks/github.com/cbodonnell/duelsync/pkg/queue"
	"github.com/cbodonnell/duelsync/pkg/game/types"
	"github.com/cbodonnell/duelsync/pkg/log"
	"github.com/cbodonnell/duelsync/pkg/messages"
	"github.com/cbodonnell/duelsync/pkg/queue"
)

var testTopics = Topics{
	GameState:         "visualiser/game_state",
	VisibilityRequest: "visualiser/req_visibility",
	DeviceStatus:      "visualiser/device_status",
}

type fakeVisibility struct {
	requests []*messages.VisibilityRequest
}

func (f *fakeVisibility) OnVisibilityRequest(req *messages.VisibilityRequest) {
	f.requests = append(f.requests, req)
}

type fakeDevices struct {
	messages []*messages.DeviceStatusMessage
}

func (f *fakeDevices) OnDeviceStatus(msg *messages.DeviceStatusMessage) {
	f.messages = append(f.messages, msg)
}

type panickingDevices struct{}

func (panickingDevices) OnDeviceStatus(*messages.DeviceStatusMessage) {
	panic("tracker bug")
}

type captureList struct {
	topics []string
}

func (c *captureList) Capture(topic string, payload []byte) {
	c.topics = append(c.topics, topic)
}

func newTestRouter(q queue.Queue, v VisibilityHandler, d DeviceStatusHandler, c Capture) *Router {
	return NewRouter(NewRouterOptions{
		Topics:       testTopics,
		Queue:        q,
		Visibility:   v,
		DeviceStatus: d,
		Capture:      c,
		Logger:       log.New(&bytes.Buffer{}, "", 0, log.LogLevelTrace),
		Now:          func() time.Time { return time.UnixMilli(1700000000000) },
	})
}

func TestRouter_VisibilityRequestIsHandledImmediately(t *testing.T) {
	q := queue.NewInMemoryQueue(8)
	v := &fakeVisibility{}
	r := newTestRouter(q, v, &fakeDevices{}, nil)

	r.Route(testTopics.VisibilityRequest, []byte(`{"player_id":2}`))

	require.Len(t, v.requests, 1)
	assert.Equal(t, types.PlayerTwo, v.requests[0].PlayerID)
	assert.Equal(t, 0, q.Size())
}

func TestRouter_DeviceStatusIsHandledImmediately(t *testing.T) {
	q := queue.NewInMemoryQueue(8)
	d := &fakeDevices{}
	r := newTestRouter(q, &fakeVisibility{}, d, nil)

	r.Route(testTopics.DeviceStatus, []byte(`{"player_1":{"gun":true,"vest":true,"glove":false}}`))

	require.Len(t, d.messages, 1)
	assert.True(t, bool(d.messages[0].Player1.Gun))
	assert.Equal(t, 0, q.Size())
}

func TestRouter_GameStateIsQueued(t *testing.T) {
	q := queue.NewInMemoryQueue(8)
	r := newTestRouter(q, &fakeVisibility{}, &fakeDevices{}, nil)

	payload := []byte(`{"action":"gun","player_id":2,"hit":"true"}`)
	r.Route(testTopics.GameState, payload)
	payload[2] = 'X'

	items, err := q.ReadAllMessages()
	require.NoError(t, err)
	require.Len(t, items, 1)
	envelope, ok := items[0].(*messages.Envelope)
	require.True(t, ok)
	assert.Equal(t, testTopics.GameState, envelope.Topic)
	assert.Equal(t, `{"action":"gun","player_id":2,"hit":"true"}`, string(envelope.Payload))
	assert.Equal(t, int64(1700000000000), envelope.Timestamp)
}

func TestRouter_MalformedPayloads(t *testing.T) {
	q := queue.NewInMemoryQueue(8)
	v := &fakeVisibility{}
	d := &fakeDevices{}
	r := newTestRouter(q, v, d, nil)

	assert.NotPanics(t, func() {
		r.Route(testTopics.VisibilityRequest, []byte(`{"player_id":`))
		r.Route(testTopics.DeviceStatus, []byte(`not json`))
		r.Route("some/other/topic", []byte(`{}`))
	})
	assert.Empty(t, v.requests)
	assert.Empty(t, d.messages)
	assert.Equal(t, 0, q.Size())
}

func TestRouter_RecoversFromHandlerPanic(t *testing.T) {
	r := newTestRouter(queue.NewInMemoryQueue(8), &fakeVisibility{}, panickingDevices{}, nil)
	assert.NotPanics(t, func() {
		r.Route(testTopics.DeviceStatus, []byte(`{}`))
	})
}

func TestRouter_QueueFullIsDropped(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	mockQueue.EXPECT().Enqueue(mock.Anything).Return(queue.ErrQueueFull).Once()
	r := newTestRouter(mockQueue, &fakeVisibility{}, &fakeDevices{}, nil)

	assert.NotPanics(t, func() {
		r.Route(testTopics.GameState, []byte(`{"game_state":{}}`))
	})
}

func TestRouter_Capture(t *testing.T) {
	c := &captureList{}
	r := newTestRouter(queue.NewInMemoryQueue(8), &fakeVisibility{}, &fakeDevices{}, c)

	r.Route(testTopics.GameState, []byte(`{}`))
	r.Route("ignored", []byte(`{}`))

	assert.Equal(t, []string{testTopics.GameState, "ignored"}, c.topics)
}
