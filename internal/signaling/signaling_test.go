package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeConn struct {
	in   chan *Message
	sent chan *Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan *Message, 8), sent: make(chan *Message, 8)}
}

func (f *fakeConn) Send(msg *Message) error {
	f.sent <- msg
	return nil
}

func (f *fakeConn) Incoming() <-chan *Message { return f.in }

func TestHandlerCorrelatesReplies(t *testing.T) {
	conn := newFakeConn()
	h := NewHandler(conn, nil)
	go h.Start()
	defer close(conn.in)

	done := make(chan *Message, 1)
	go func() {
		msg, err := NewMessage(MessageTypeStartRecording, nil)
		require.NoError(t, err)
		reply, err := h.Request(context.Background(), msg)
		assert.NoError(t, err)
		done <- reply
	}()

	req := <-conn.sent
	assert.NotZero(t, req.ID)

	// A notification in between goes to Notifications.
	conn.in <- &Message{Type: MessageTypeStreamAdded}
	conn.in <- &Message{Type: MessageTypeRecordingStarted, ID: req.ID, Payload: []byte(`{"recording_id":"r1"}`)}

	reply := <-done
	var p RecordingPayload
	require.NoError(t, reply.Decode(&p))
	assert.Equal(t, "r1", p.RecordingID)

	note := <-h.Notifications()
	assert.Equal(t, MessageTypeStreamAdded, note.Type)
}

func TestHandlerErrorReply(t *testing.T) {
	conn := newFakeConn()
	h := NewHandler(conn, nil)
	go h.Start()
	defer close(conn.in)

	errs := make(chan error, 1)
	go func() {
		_, err := h.Request(context.Background(), &Message{Type: MessageTypeToken})
		errs <- err
	}()

	req := <-conn.sent
	conn.in <- &Message{Type: MessageTypeError, ID: req.ID, Payload: []byte(`{"error":"invalid token"}`)}

	err := <-errs
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestHandlerRequestTimeoutAndClose(t *testing.T) {
	conn := newFakeConn()
	h := NewHandler(conn, nil)
	go h.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Request(ctx, &Message{Type: MessageTypePublish})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(conn.in)
	<-h.Done()
	_, ok := <-h.Notifications()
	assert.False(t, ok)

	_, err = h.Request(context.Background(), &Message{Type: MessageTypePublish})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnvelope(t *testing.T) {
	raw, err := EncodeData("stream-1", map[string]string{"type": "canvas-clear"})
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "stream-1", env.StreamID)

	var inner map[string]string
	require.NoError(t, msgpack.Unmarshal(env.Msg, &inner))
	assert.Equal(t, "canvas-clear", inner["type"])

	_, err = DecodeEnvelope([]byte{0xc1})
	assert.Error(t, err)
}

func TestMessagePayload(t *testing.T) {
	msg, err := NewMessage(MessageTypeUpdateConfig, ConfigPayload{SlideShowMode: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"slide_show_mode":true}`, string(msg.Payload))

	empty, err := NewMessage(MessageTypeUnpublish, nil)
	require.NoError(t, err)
	var p ConfigPayload
	assert.Error(t, empty.Decode(&p))
}

func TestClientRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "bun/"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		msg.Type = MessageTypeRoomConnected
		_ = conn.WriteJSON(&msg)
	}))
	defer srv.Close()

	c := NewClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	require.NoError(t, c.Send(&Message{Type: MessageTypeToken, ID: 7}))

	select {
	case msg := <-c.Incoming():
		require.NotNil(t, msg)
		assert.Equal(t, MessageTypeRoomConnected, msg.Type)
		assert.Equal(t, uint64(7), msg.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}

	c.Close()
	assert.ErrorIs(t, c.Send(&Message{Type: MessageTypeUnpublish}), ErrClosed)
}
