package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/media"
	"github.com/jp-hoehmann/bun/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in   chan *signaling.Message
	sent chan *signaling.Message
}

func (f *fakeConn) Send(msg *signaling.Message) error {
	f.sent <- msg
	return nil
}

func (f *fakeConn) Incoming() <-chan *signaling.Message { return f.in }

func (f *fakeConn) expect(t *testing.T, typ string) *signaling.Message {
	t.Helper()
	select {
	case msg := <-f.sent:
		require.Equal(t, typ, msg.Type)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s message sent", typ)
		return nil
	}
}

func (f *fakeConn) reply(t *testing.T, to *signaling.Message, typ string, payload any) {
	t.Helper()
	msg, err := signaling.NewMessage(typ, payload)
	require.NoError(t, err)
	msg.ID = to.ID
	f.in <- msg
}

func (f *fakeConn) push(t *testing.T, typ, streamID string, payload any) {
	t.Helper()
	msg, err := signaling.NewMessage(typ, payload)
	require.NoError(t, err)
	msg.StreamID = streamID
	f.in <- msg
}

func nextEvent(t *testing.T, r *Room) Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

func connectedRoom(t *testing.T, streams ...signaling.StreamInfo) (*Room, *fakeConn) {
	t.Helper()
	conn := &fakeConn{in: make(chan *signaling.Message, 16), sent: make(chan *signaling.Message, 16)}
	cfg := &config.Config{ConnectTimeout: 2 * time.Second}

	r := New("tok", cfg, nil)
	r.dial = func(context.Context) (signaling.Conn, func(), error) {
		return conn, func() {}, nil
	}

	go func() {
		msg := conn.expect(t, signaling.MessageTypeToken)
		var p signaling.TokenPayload
		assert.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, "tok", p.Token)
		conn.reply(t, msg, signaling.MessageTypeRoomConnected, signaling.RoomConnectedPayload{
			ClientID: "c1",
			Room:     "xkcd",
			Streams:  streams,
		})
	}()

	require.NoError(t, r.Connect(context.Background(), ConnectOptions{}))
	return r, conn
}

func TestConnectListsExistingStreams(t *testing.T) {
	r, _ := connectedRoom(t,
		signaling.StreamInfo{ID: "s1", Data: true, Attributes: map[string]string{"name": "ana"}},
		signaling.StreamInfo{ID: "s2", Data: true},
	)

	ev := nextEvent(t, r)
	connected, ok := ev.(RoomConnected)
	require.True(t, ok)
	require.Len(t, connected.Streams, 2)
	assert.Equal(t, "ana", connected.Streams[0].Attribute("name"))
	assert.False(t, connected.Streams[0].Local())
	assert.Equal(t, "c1", r.ClientID())
	assert.Len(t, r.RemoteStreams(), 2)
}

func TestConnectRejected(t *testing.T) {
	conn := &fakeConn{in: make(chan *signaling.Message, 4), sent: make(chan *signaling.Message, 4)}
	r := New("bad", &config.Config{ConnectTimeout: time.Second}, nil)
	r.dial = func(context.Context) (signaling.Conn, func(), error) {
		return conn, func() {}, nil
	}

	go func() {
		msg := conn.expect(t, signaling.MessageTypeToken)
		conn.reply(t, msg, signaling.MessageTypeError, signaling.ErrorPayload{Error: "invalid token"})
	}()

	err := r.Connect(context.Background(), ConnectOptions{})
	assert.ErrorIs(t, err, signaling.ErrServer)
}

func TestPublishWithoutDataAndStreamEvents(t *testing.T) {
	r, conn := connectedRoom(t)
	nextEvent(t, r)

	local := NewLocalStream(media.Options{}, map[string]string{"name": "bob"})
	assert.ErrorIs(t, local.SendData("x"), ErrNotPublished)

	go func() {
		msg := conn.expect(t, signaling.MessageTypePublish)
		var p signaling.PublishPayload
		assert.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, "bob", p.Attributes["name"])
		assert.Equal(t, 300, p.MaxVideoBW)
		reply := &signaling.Message{Type: signaling.MessageTypePublished, ID: msg.ID, StreamID: "mine"}
		conn.in <- reply
	}()
	require.NoError(t, r.Publish(context.Background(), local, PublishOptions{MaxVideoBW: 300}))
	assert.Equal(t, "mine", local.ID())
	assert.ErrorIs(t, local.SendData("x"), ErrChannelNotOpen)

	conn.push(t, signaling.MessageTypeStreamAdded, "", signaling.StreamInfo{ID: "mine"})
	added := nextEvent(t, r).(StreamAdded)
	assert.True(t, added.Stream.Local())

	conn.push(t, signaling.MessageTypeStreamAdded, "", signaling.StreamInfo{ID: "other", Data: true})
	added = nextEvent(t, r).(StreamAdded)
	assert.Equal(t, "other", added.Stream.ID())
	assert.False(t, added.Stream.Local())

	require.NoError(t, r.Subscribe(added.Stream, SubscribeOptions{SlideShowMode: true}))
	sub := conn.expect(t, signaling.MessageTypeSubscribe)
	assert.Equal(t, "other", sub.StreamID)
	assert.JSONEq(t, `{"slide_show_mode":true}`, string(sub.Payload))

	conn.push(t, signaling.MessageTypeStreamSubscribed, "other", nil)
	subscribed := nextEvent(t, r).(StreamSubscribed)
	assert.Same(t, added.Stream, subscribed.Stream)

	conn.push(t, signaling.MessageTypeBandwidthAlert, "other", signaling.BandwidthAlertPayload{Msg: "insufficient", Bandwidth: 12})
	alert := nextEvent(t, r).(BandwidthAlert)
	assert.Equal(t, 12, alert.Bandwidth)

	conn.push(t, signaling.MessageTypeStreamRemoved, "other", nil)
	removed := nextEvent(t, r).(StreamRemoved)
	assert.Equal(t, "other", removed.Stream.ID())
	assert.Empty(t, r.RemoteStreams())
}

func TestOwnStreamAddedBeforePublishReply(t *testing.T) {
	r, conn := connectedRoom(t)
	nextEvent(t, r)

	local := NewLocalStream(media.Options{}, nil)
	go func() {
		msg := conn.expect(t, signaling.MessageTypePublish)
		conn.push(t, signaling.MessageTypeStreamAdded, "", signaling.StreamInfo{ID: "mine", Owner: "c1"})
		conn.in <- &signaling.Message{Type: signaling.MessageTypePublished, ID: msg.ID, StreamID: "mine"}
	}()
	require.NoError(t, r.Publish(context.Background(), local, PublishOptions{}))

	added := nextEvent(t, r).(StreamAdded)
	assert.Same(t, local, added.Stream)
	assert.Equal(t, "mine", local.ID())
	assert.Empty(t, r.RemoteStreams())
}

func TestWithdrawAndRename(t *testing.T) {
	r, conn := connectedRoom(t, signaling.StreamInfo{ID: "s1", Data: true, Attributes: map[string]string{"name": "ana"}})
	connected := nextEvent(t, r).(RoomConnected)
	other := connected.Streams[0]

	local := NewLocalStream(media.Fallback, map[string]string{"name": "bob"})
	local.publishedAs("mine", r)

	require.NoError(t, r.Unsubscribe(other))
	assert.Equal(t, "s1", conn.expect(t, signaling.MessageTypeUnsubscribe).StreamID)

	require.NoError(t, r.SetAttributes(local, map[string]string{"name": "zed"}))
	msg := conn.expect(t, signaling.MessageTypeSetAttributes)
	assert.Equal(t, "mine", msg.StreamID)
	assert.JSONEq(t, `{"attributes":{"name":"zed"}}`, string(msg.Payload))
	assert.Equal(t, "zed", local.Attribute("name"))

	require.NoError(t, r.Unpublish(local))
	assert.Equal(t, "mine", conn.expect(t, signaling.MessageTypeUnpublish).StreamID)

	conn.push(t, signaling.MessageTypeStreamAttributes, "s1", signaling.AttributesPayload{Attributes: map[string]string{"name": "ada"}})
	updated := nextEvent(t, r).(StreamAttributesUpdated)
	assert.Same(t, other, updated.Stream)
	assert.Equal(t, "ada", other.Attribute("name"))
}

func TestWithdrawBeforeConnect(t *testing.T) {
	r := New("tok", &config.Config{}, nil)
	s := NewRemoteStream(signaling.StreamInfo{ID: "s1"})

	assert.ErrorIs(t, r.Unsubscribe(s), ErrNotConnected)
	assert.ErrorIs(t, r.Unpublish(s), ErrNotConnected)
	assert.ErrorIs(t, r.SetAttributes(s, nil), ErrNotConnected)
}

func TestUnknownStreamsProduceNoEvents(t *testing.T) {
	r, conn := connectedRoom(t, signaling.StreamInfo{ID: "s1"})
	nextEvent(t, r)

	conn.push(t, signaling.MessageTypeStreamSubscribed, "ghost", nil)
	conn.push(t, signaling.MessageTypeStreamFailed, "ghost", signaling.StreamFailedPayload{Reason: "unknown stream"})
	conn.push(t, signaling.MessageTypeBandwidthAlert, "ghost", signaling.BandwidthAlertPayload{Msg: "insufficient"})
	conn.push(t, signaling.MessageTypeConfigUpdated, "ghost", signaling.ConfigPayload{SlideShowMode: true})
	conn.push(t, signaling.MessageTypeStreamRemoved, "ghost", nil)

	raw, err := signaling.EncodeData("ghost", "x")
	require.NoError(t, err)
	r.handleData(raw)

	conn.push(t, signaling.MessageTypeStreamSubscribed, "s1", nil)
	subscribed := nextEvent(t, r).(StreamSubscribed)
	assert.Equal(t, "s1", subscribed.Stream.ID())
	assert.Len(t, r.RemoteStreams(), 1)
}

func TestRecordingRequests(t *testing.T) {
	r, conn := connectedRoom(t)
	nextEvent(t, r)
	local := NewLocalStream(media.Fallback, nil)
	local.publishedAs("mine", r)

	go func() {
		msg := conn.expect(t, signaling.MessageTypeStartRecording)
		assert.Equal(t, "mine", msg.StreamID)
		conn.reply(t, msg, signaling.MessageTypeRecordingStarted, signaling.RecordingPayload{RecordingID: "rec-1"})

		msg = conn.expect(t, signaling.MessageTypeStopRecording)
		var p signaling.RecordingPayload
		assert.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, "rec-1", p.RecordingID)
		conn.reply(t, msg, signaling.MessageTypeRecordingStopped, p)
	}()

	id, err := r.StartRecording(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)
	require.NoError(t, r.StopRecording(context.Background(), id))

	conn.push(t, signaling.MessageTypeRecordingStarted, "", signaling.RecordingPayload{RecordingID: "rec-2"})
	assert.Equal(t, RecordingStarted{ID: "rec-2"}, nextEvent(t, r))
}

func TestServerLossEmitsDisconnected(t *testing.T) {
	r, conn := connectedRoom(t)
	nextEvent(t, r)

	close(conn.in)

	ev := nextEvent(t, r).(Disconnected)
	assert.Error(t, ev.Err)

	_, ok := <-r.Events()
	assert.False(t, ok)
}

func TestMalformedDataFrameIgnored(t *testing.T) {
	r, _ := connectedRoom(t, signaling.StreamInfo{ID: "s1"})
	nextEvent(t, r)

	r.handleData([]byte{0xc1})

	raw, err := signaling.EncodeData("s1", map[string]string{"type": "canvas-clear"})
	require.NoError(t, err)
	r.handleData(raw)

	data := nextEvent(t, r).(StreamData)
	assert.Equal(t, "s1", data.Stream.ID())
	assert.NotEmpty(t, data.Data)
}

func TestICEServers(t *testing.T) {
	cfg := &config.Config{STUNServer: "stun:stun.example.org:3478", TURNServer: "turn:turn.example.org", TURNUser: "u", TURNPass: "p"}
	servers := iceServers(cfg)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[1].Username)

	assert.Empty(t, iceServers(&config.Config{}))
}
