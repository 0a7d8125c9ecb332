// Package room is the client side of a conferencing room: it connects to the
// room server, publishes and subscribes to streams and delivers everything
// that happens in the room as typed events.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/signaling"
	"github.com/jp-hoehmann/bun/internal/version"
	pion "github.com/pion/webrtc/v4"
)

var (
	ErrNotConnected   = errors.New("room not connected")
	ErrNotPublished   = errors.New("stream not published")
	ErrChannelNotOpen = errors.New("data channel not open")
)

// highWaterMark is the buffered amount above which sends raise a
// BandwidthAlert.
const highWaterMark = 1 << 20

// ConnectOptions tune Connect. Zero values use the client config.
type ConnectOptions struct {
	Timeout time.Duration
}

// PublishOptions are passed with the publish request.
type PublishOptions struct {
	// MaxVideoBW caps the video bitrate in kbit/s.
	MaxVideoBW int
}

// SubscribeOptions are passed with a subscribe request.
type SubscribeOptions struct {
	SlideShowMode bool
	Metadata      map[string]string
}

// StreamConfig changes how a subscribed stream is received.
type StreamConfig struct {
	SlideShowMode bool
}

type dialFunc func(ctx context.Context) (signaling.Conn, func(), error)

// Room is a connection to one room on the server.
type Room struct {
	token  string
	cfg    *config.Config
	logger *slog.Logger
	dial   dialFunc

	handler   *signaling.Handler
	closeConn func()

	events    chan Event
	eventsMu  sync.RWMutex
	eventsOff bool
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	clientID string
	streams  map[string]*Stream
	local    *Stream
	pc       *pion.PeerConnection
	dc       *pion.DataChannel
}

// New returns an unconnected room that will authenticate with token.
func New(token string, cfg *config.Config, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		token:   token,
		cfg:     cfg,
		logger:  logger.With("component", "room"),
		dial:    dialWebSocket(cfg.WebSocketURL),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		streams: make(map[string]*Stream),
	}
}

func dialWebSocket(url string) dialFunc {
	return func(ctx context.Context) (signaling.Conn, func(), error) {
		c := signaling.NewClient(url)
		if err := c.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
}

// Events returns the channel all room events are delivered on. It is closed
// after the Disconnected event.
func (r *Room) Events() <-chan Event {
	return r.events
}

// Connect dials the server, authenticates and waits until the room is
// joined. A RoomConnected event is emitted before it returns.
func (r *Room) Connect(ctx context.Context, opts ConnectOptions) error {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = r.cfg.ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, closeConn, err := r.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial room server: %w", err)
	}

	r.handler = signaling.NewHandler(conn, r.logger)
	r.closeConn = closeConn
	go r.handler.Start()

	msg, err := signaling.NewMessage(signaling.MessageTypeToken, signaling.TokenPayload{
		Token:     r.token,
		UserAgent: version.UserAgent(),
	})
	if err != nil {
		closeConn()
		return err
	}

	reply, err := r.handler.Request(ctx, msg)
	if err != nil {
		closeConn()
		return fmt.Errorf("authenticate: %w", err)
	}

	var joined signaling.RoomConnectedPayload
	if err := reply.Decode(&joined); err != nil {
		closeConn()
		return err
	}

	streams := make([]*Stream, 0, len(joined.Streams))
	r.mu.Lock()
	r.clientID = joined.ClientID
	for _, info := range joined.Streams {
		s := NewRemoteStream(info)
		r.streams[s.id] = s
		streams = append(streams, s)
	}
	r.mu.Unlock()

	r.logger.Info("connected to room", "room", joined.Room, "client", joined.ClientID, "streams", len(streams))
	r.emit(RoomConnected{Streams: streams})

	go r.dispatch()
	return nil
}

// ClientID is the id the server assigned to this connection.
func (r *Room) ClientID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clientID
}

// RemoteStreams returns the known remote streams.
func (r *Room) RemoteStreams() []*Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// Publish announces stream to the room and, for streams with data, opens the
// data channel to the server.
func (r *Room) Publish(ctx context.Context, s *Stream, opts PublishOptions) error {
	if r.handler == nil {
		return ErrNotConnected
	}

	o := s.Options()
	msg, err := signaling.NewMessage(signaling.MessageTypePublish, signaling.PublishPayload{
		Audio:      o.Audio,
		Video:      o.Video,
		Data:       o.Data,
		Screen:     o.Screen,
		Attributes: s.Attributes(),
		MaxVideoBW: opts.MaxVideoBW,
	})
	if err != nil {
		return err
	}

	// The stream_added broadcast for s may be dispatched before the reply
	// arrives, so s is registered first and recognised by its owner.
	r.mu.Lock()
	r.local = s
	r.mu.Unlock()

	reply, err := r.handler.Request(ctx, msg)
	if err != nil {
		r.mu.Lock()
		r.local = nil
		r.mu.Unlock()
		return fmt.Errorf("publish: %w", err)
	}
	if reply.StreamID == "" {
		return fmt.Errorf("publish: server returned no stream id")
	}

	s.publishedAs(reply.StreamID, r)
	r.logger.Info("published stream", "stream", reply.StreamID)

	if !o.Data {
		return nil
	}
	return r.negotiate(ctx, s)
}

// Unpublish withdraws the local stream and closes the data channel.
func (r *Room) Unpublish(s *Stream) error {
	if err := r.notify(signaling.MessageTypeUnpublish, s.ID(), nil); err != nil {
		return err
	}
	r.closePeer()
	return nil
}

// Subscribe asks to receive s. The server answers with a StreamSubscribed
// or StreamFailed event.
func (r *Room) Subscribe(s *Stream, opts SubscribeOptions) error {
	return r.notify(signaling.MessageTypeSubscribe, s.ID(), signaling.SubscribePayload{
		SlideShowMode: opts.SlideShowMode,
		Metadata:      opts.Metadata,
	})
}

func (r *Room) Unsubscribe(s *Stream) error {
	return r.notify(signaling.MessageTypeUnsubscribe, s.ID(), nil)
}

// UpdateConfiguration changes how the subscribed stream s is received.
func (r *Room) UpdateConfiguration(s *Stream, cfg StreamConfig) error {
	return r.notify(signaling.MessageTypeUpdateConfig, s.ID(), signaling.ConfigPayload{
		SlideShowMode: cfg.SlideShowMode,
	})
}

// SetAttributes replaces the attributes of the local stream s.
func (r *Room) SetAttributes(s *Stream, attrs map[string]string) error {
	if err := r.notify(signaling.MessageTypeSetAttributes, s.ID(), signaling.AttributesPayload{Attributes: attrs}); err != nil {
		return err
	}
	s.setAttributes(attrs)
	return nil
}

// StartRecording starts recording s and returns the recording id.
func (r *Room) StartRecording(ctx context.Context, s *Stream) (string, error) {
	if r.handler == nil {
		return "", ErrNotConnected
	}
	msg := &signaling.Message{Type: signaling.MessageTypeStartRecording, StreamID: s.ID()}
	reply, err := r.handler.Request(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("start recording: %w", err)
	}

	var p signaling.RecordingPayload
	if err := reply.Decode(&p); err != nil {
		return "", err
	}
	return p.RecordingID, nil
}

func (r *Room) StopRecording(ctx context.Context, id string) error {
	if r.handler == nil {
		return ErrNotConnected
	}
	msg, err := signaling.NewMessage(signaling.MessageTypeStopRecording, signaling.RecordingPayload{RecordingID: id})
	if err != nil {
		return err
	}
	if _, err := r.handler.Request(ctx, msg); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}
	return nil
}

// Disconnect leaves the room. Events is closed once the connection is gone.
func (r *Room) Disconnect() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.closePeer()
		if r.closeConn != nil {
			r.closeConn()
		}
	})
}

func (r *Room) closePeer() {
	r.mu.Lock()
	pc := r.pc
	r.pc, r.dc = nil, nil
	r.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			r.logger.Debug("closing peer connection", "err", err)
		}
	}
}

func (r *Room) notify(typ, streamID string, payload any) error {
	if r.handler == nil {
		return ErrNotConnected
	}
	msg, err := signaling.NewMessage(typ, payload)
	if err != nil {
		return err
	}
	msg.StreamID = streamID
	return r.handler.Notify(msg)
}

// dispatch turns server notifications into events until the connection ends.
func (r *Room) dispatch() {
	for msg := range r.handler.Notifications() {
		if ev := r.translate(msg); ev != nil {
			r.emit(ev)
		}
	}

	var err error
	select {
	case <-r.done:
	default:
		err = errors.New("connection to room server lost")
	}
	r.emit(Disconnected{Err: err})
	r.Disconnect()

	r.eventsMu.Lock()
	r.eventsOff = true
	close(r.events)
	r.eventsMu.Unlock()
}

func (r *Room) translate(msg *signaling.Message) Event {
	switch msg.Type {
	case signaling.MessageTypeStreamAdded:
		var info signaling.StreamInfo
		if err := msg.Decode(&info); err != nil {
			r.logger.Warn("bad stream_added", "err", err)
			return nil
		}
		return StreamAdded{Stream: r.learn(info)}

	case signaling.MessageTypeStreamRemoved:
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		r.mu.Lock()
		delete(r.streams, msg.StreamID)
		r.mu.Unlock()
		return StreamRemoved{Stream: s}

	case signaling.MessageTypeStreamAttributes:
		var p signaling.AttributesPayload
		if err := msg.Decode(&p); err != nil {
			r.logger.Warn("bad stream_attributes", "err", err)
			return nil
		}
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		if !s.Local() {
			s.setAttributes(p.Attributes)
		}
		return StreamAttributesUpdated{Stream: s}

	case signaling.MessageTypeStreamSubscribed:
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		return StreamSubscribed{Stream: s}

	case signaling.MessageTypeStreamFailed:
		var p signaling.StreamFailedPayload
		_ = msg.Decode(&p)
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		return StreamFailed{Stream: s, Reason: p.Reason}

	case signaling.MessageTypeBandwidthAlert:
		var p signaling.BandwidthAlertPayload
		if err := msg.Decode(&p); err != nil {
			r.logger.Warn("bad bandwidth_alert", "err", err)
			return nil
		}
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		return BandwidthAlert{Stream: s, Msg: p.Msg, Bandwidth: p.Bandwidth}

	case signaling.MessageTypeRecordingStarted, signaling.MessageTypeRecordingStopped:
		var p signaling.RecordingPayload
		if err := msg.Decode(&p); err != nil {
			r.logger.Warn("bad recording notification", "err", err)
			return nil
		}
		if msg.Type == signaling.MessageTypeRecordingStarted {
			return RecordingStarted{ID: p.RecordingID}
		}
		return RecordingStopped{ID: p.RecordingID}

	case signaling.MessageTypeConfigUpdated:
		var p signaling.ConfigPayload
		if err := msg.Decode(&p); err != nil {
			r.logger.Warn("bad config_updated", "err", err)
			return nil
		}
		s := r.lookup(msg.StreamID)
		if s == nil {
			return nil
		}
		return ConfigUpdated{Stream: s, SlideShowMode: p.SlideShowMode}

	case signaling.MessageTypeError:
		return nil

	default:
		r.logger.Debug("ignoring message", "type", msg.Type)
		return nil
	}
}

// learn returns the stream for info, registering it if it is a new remote
// stream.
func (r *Room) learn(info signaling.StreamInfo) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local != nil {
		if r.local.ID() == info.ID {
			return r.local
		}
		if info.Owner != "" && info.Owner == r.clientID {
			r.local.publishedAs(info.ID, r)
			return r.local
		}
	}
	if s, ok := r.streams[info.ID]; ok {
		return s
	}
	s := NewRemoteStream(info)
	r.streams[info.ID] = s
	return s
}

// lookup returns the local or a known remote stream, or nil for an id this
// room never learned about.
func (r *Room) lookup(id string) *Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.local != nil && r.local.ID() == id {
		return r.local
	}
	if s, ok := r.streams[id]; ok {
		return s
	}
	r.logger.Debug("unknown stream", "stream", id)
	return nil
}

func (r *Room) handleData(raw []byte) {
	env, err := signaling.DecodeEnvelope(raw)
	if err != nil {
		r.logger.Warn("dropping malformed data frame", "err", err)
		return
	}
	s := r.lookup(env.StreamID)
	if s == nil {
		return
	}
	r.emit(StreamData{Stream: s, Data: env.Msg})
}

// SendData broadcasts payload on the published local stream s.
func (r *Room) SendData(s *Stream, payload any) error {
	if !s.Local() || s.ID() == "" {
		return ErrNotPublished
	}
	return r.sendData(s, payload)
}

func (r *Room) sendData(s *Stream, payload any) error {
	r.mu.RLock()
	dc := r.dc
	r.mu.RUnlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrChannelNotOpen
	}

	raw, err := signaling.EncodeData(s.ID(), payload)
	if err != nil {
		return err
	}
	if err := dc.Send(raw); err != nil {
		return fmt.Errorf("send data: %w", err)
	}

	if buffered := dc.BufferedAmount(); buffered > highWaterMark {
		r.emit(BandwidthAlert{Stream: s, Msg: "insufficient", Bandwidth: int(buffered / 1024)})
	}
	return nil
}

func (r *Room) emit(ev Event) {
	r.eventsMu.RLock()
	defer r.eventsMu.RUnlock()
	if r.eventsOff {
		return
	}

	select {
	case r.events <- ev:
		return
	default:
	}

	select {
	case r.events <- ev:
	case <-r.done:
		r.logger.Debug("dropping event after disconnect", "event", fmt.Sprintf("%T", ev))
	}
}
