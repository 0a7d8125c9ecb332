package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jp-hoehmann/bun/internal/signaling"
	"github.com/jp-hoehmann/bun/internal/token"
	pion "github.com/pion/webrtc/v4"
	"golang.org/x/time/rate"
)

const negotiateTimeout = 15 * time.Second

// HubOptions configure a Hub.
type HubOptions struct {
	Issuer     *token.Issuer
	Recorder   *Recorder
	Metrics    *Metrics
	ICEServers []pion.ICEServer
	RateLimit  float64
	RateBurst  int
	Logger     *slog.Logger
}

// Hub is the central brain of the room server.
// It manages all rooms, clients, streams and recordings.
type Hub struct {
	clients    map[*Client]bool
	byID       map[string]*Client
	rooms      map[string]*Room
	recordings map[string]*Recording

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound
	negotiated chan *negotiation
	attached   chan string
	done       chan struct{}

	issuer    *token.Issuer
	recorder  *Recorder
	router    *router
	negotiate negotiateFunc
	metrics   *Metrics
	logger    *slog.Logger

	rateLimit rate.Limit
	rateBurst int
}

// NewHub creates a new Hub instance.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	h := &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[string]*Client),
		rooms:      make(map[string]*Room),
		recordings: make(map[string]*Recording),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inbound, 64),
		negotiated: make(chan *negotiation),
		attached:   make(chan string),
		done:       make(chan struct{}),
		issuer:     opts.Issuer,
		recorder:   opts.Recorder,
		metrics:    metrics,
		logger:     logger.With("component", "hub"),
		rateLimit:  rate.Limit(opts.RateLimit),
		rateBurst:  opts.RateBurst,
	}
	if h.rateLimit <= 0 {
		h.rateLimit = rate.Inf
	}
	h.router = newRouter(metrics, h.logger)
	h.router.onAttach = h.sinkAttached
	h.negotiate = pionNegotiator(h.router, opts.ICEServers, h.logger)
	return h
}

// Run starts the hub's main processing loop.
// This is the single goroutine that owns all room state. It returns when ctx
// is cancelled, after dropping every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.byID[c.id] = c
			h.metrics.WebsocketConnections.Inc()
			c.logger.Debug("client registered", "remote", c.conn.RemoteAddr().String())

		case c := <-h.unregister:
			h.drop(c)

		case in := <-h.inbound:
			h.handle(in)

		case n := <-h.negotiated:
			h.finishNegotiation(n)

		case id := <-h.attached:
			if c, ok := h.byID[id]; ok && c.stream != nil {
				h.announce(c.room, c.stream)
			}

		case a := <-h.router.alerts:
			h.bandwidthAlert(a)
		}
	}
}

// sinkAttached runs on data channel goroutines.
func (h *Hub) sinkAttached(clientID string) {
	select {
	case h.attached <- clientID:
	case <-h.done:
	}
}

// announce tells the room about s once.
func (h *Hub) announce(room *Room, s *Stream) {
	if s.announced {
		return
	}
	s.announced = true
	h.broadcast(room, notification(signaling.MessageTypeStreamAdded, "", s.Info))
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		h.drop(c)
	}
	for _, rec := range h.recordings {
		h.closeRecording(rec)
	}
}

// drop removes c from the hub and closes its send channel, which makes its
// write pump close the connection. Dropping twice is a no-op.
func (h *Hub) drop(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	delete(h.byID, c.id)

	h.leaveRoom(c)
	if c.peer != nil {
		if err := c.peer.Close(); err != nil {
			c.logger.Debug("closing peer connection", "err", err)
		}
		c.peer = nil
	}
	h.router.removeClient(c.id)

	close(c.send)
	h.metrics.WebsocketConnections.Dec()
	c.logger.Debug("client unregistered")
}

func (h *Hub) leaveRoom(c *Client) {
	room := c.room
	if room == nil {
		return
	}

	if c.stream != nil {
		h.removeStream(room, c.stream)
	}
	for _, s := range room.streams {
		delete(s.subscribers, c)
	}
	delete(room.clients, c)
	c.room = nil

	if room.empty() {
		delete(h.rooms, room.Name)
		h.metrics.Rooms.Dec()
		h.logger.Info("room deleted", "room", room.Name)
	}
}

func (h *Hub) removeStream(room *Room, s *Stream) {
	id := s.Info.ID
	delete(room.streams, id)
	h.router.unpublish(s.owner.id, id)
	s.owner.stream = nil
	h.metrics.Streams.Dec()

	for _, rec := range h.recordings {
		if rec.StreamID == id {
			h.closeRecording(rec)
			h.broadcast(room, notification(signaling.MessageTypeRecordingStopped, id, signaling.RecordingPayload{RecordingID: rec.ID}))
		}
	}

	if s.announced {
		h.broadcast(room, notification(signaling.MessageTypeStreamRemoved, id, nil))
	} else {
		h.deliver(s.owner, notification(signaling.MessageTypeStreamRemoved, id, nil))
	}
	h.logger.Info("stream removed", "room", room.Name, "stream", id)
}

func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (h *Hub) broadcast(room *Room, msg *signaling.Message) {
	for c := range room.clients {
		h.deliver(c, msg)
	}
}

func (h *Hub) handle(in *inbound) {
	c, msg := in.client, in.msg
	if !h.clients[c] {
		return
	}
	h.metrics.SignalingMessages.WithLabelValues(msg.Type).Inc()

	if in.limited {
		h.deliver(c, errorReply(msg, "rate limit exceeded"))
		return
	}

	if !c.authenticated {
		if msg.Type != signaling.MessageTypeToken {
			h.deliver(c, errorReply(msg, "authenticate first"))
			h.drop(c)
			return
		}
		h.handleToken(c, msg)
		return
	}

	switch msg.Type {
	case signaling.MessageTypePublish:
		h.handlePublish(c, msg)
	case signaling.MessageTypeUnpublish:
		h.handleUnpublish(c, msg)
	case signaling.MessageTypeSubscribe:
		h.handleSubscribe(c, msg)
	case signaling.MessageTypeUnsubscribe:
		h.handleUnsubscribe(c, msg)
	case signaling.MessageTypeOffer:
		h.handleOffer(c, msg)
	case signaling.MessageTypeUpdateConfig:
		h.handleUpdateConfig(c, msg)
	case signaling.MessageTypeSetAttributes:
		h.handleSetAttributes(c, msg)
	case signaling.MessageTypeStartRecording:
		h.handleStartRecording(c, msg)
	case signaling.MessageTypeStopRecording:
		h.handleStopRecording(c, msg)
	case signaling.MessageTypeToken:
		h.deliver(c, errorReply(msg, "already authenticated"))
	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
		h.deliver(c, errorReply(msg, "unknown message type "+msg.Type))
	}
}

func (h *Hub) handleToken(c *Client, msg *signaling.Message) {
	var p signaling.TokenPayload
	if err := msg.Decode(&p); err != nil {
		h.deliver(c, errorReply(msg, "invalid token"))
		h.drop(c)
		return
	}

	claims, err := h.issuer.Parse(p.Token)
	if err != nil {
		c.logger.Info("rejected token", "err", err)
		h.deliver(c, errorReply(msg, "invalid token"))
		h.drop(c)
		return
	}

	c.authenticated = true
	c.username = claims.Username
	c.role = claims.Role
	c.logger = c.logger.With("room", claims.Room, "username", claims.Username)

	room, ok := h.rooms[claims.Room]
	if !ok {
		room = newRoom(claims.Room)
		h.rooms[claims.Room] = room
		h.metrics.Rooms.Inc()
		h.logger.Info("room created", "room", room.Name)
	}
	room.clients[c] = true
	c.room = room

	h.deliver(c, reply(msg, signaling.MessageTypeRoomConnected, signaling.RoomConnectedPayload{
		ClientID: c.id,
		Room:     room.Name,
		Streams:  room.streamInfos(),
	}))
	c.logger.Info("client joined room", "userAgent", p.UserAgent)
}

func (h *Hub) handlePublish(c *Client, msg *signaling.Message) {
	if c.stream != nil {
		h.deliver(c, errorReply(msg, "already publishing"))
		return
	}

	var p signaling.PublishPayload
	if err := msg.Decode(&p); err != nil {
		h.deliver(c, errorReply(msg, "invalid publish request"))
		return
	}

	attrs := p.Attributes
	if attrs == nil {
		attrs = make(map[string]string)
	}
	if attrs["name"] == "" {
		attrs["name"] = c.username
	}

	s := &Stream{
		Info: signaling.StreamInfo{
			ID:         uuid.NewString(),
			Owner:      c.id,
			Audio:      p.Audio,
			Video:      p.Video,
			Data:       p.Data,
			Screen:     p.Screen,
			Attributes: attrs,
		},
		owner:       c,
		subscribers: make(map[*Client]bool),
	}
	c.room.streams[s.Info.ID] = s
	c.stream = s
	h.router.publish(c.id, s.Info.ID)
	h.metrics.Streams.Inc()

	published := reply(msg, signaling.MessageTypePublished, nil)
	published.StreamID = s.Info.ID
	h.deliver(c, published)

	if !p.Data || h.router.attached(c.id) {
		h.announce(c.room, s)
	}
	c.logger.Info("stream published", "stream", s.Info.ID, "maxVideoBW", p.MaxVideoBW)
}

func (h *Hub) handleUnpublish(c *Client, msg *signaling.Message) {
	if c.stream == nil || (msg.StreamID != "" && msg.StreamID != c.stream.Info.ID) {
		h.deliver(c, errorReply(msg, "stream not published"))
		return
	}
	h.removeStream(c.room, c.stream)
}

func (h *Hub) handleSubscribe(c *Client, msg *signaling.Message) {
	s, ok := c.room.streams[msg.StreamID]
	if !ok {
		h.deliver(c, reply(msg, signaling.MessageTypeStreamFailed, signaling.StreamFailedPayload{Reason: "unknown stream"}))
		return
	}
	if s.owner == c {
		h.deliver(c, reply(msg, signaling.MessageTypeStreamFailed, signaling.StreamFailedPayload{Reason: "cannot subscribe to own stream"}))
		return
	}

	var p signaling.SubscribePayload
	if len(msg.Payload) > 0 {
		if err := msg.Decode(&p); err != nil {
			h.deliver(c, reply(msg, signaling.MessageTypeStreamFailed, signaling.StreamFailedPayload{Reason: "invalid subscribe request"}))
			return
		}
	}

	s.subscribers[c] = true
	h.router.subscribe(s.Info.ID, c.id)
	h.deliver(c, reply(msg, signaling.MessageTypeStreamSubscribed, nil))
	c.logger.Debug("subscribed", "stream", s.Info.ID, "slideShow", p.SlideShowMode)
}

func (h *Hub) handleUnsubscribe(c *Client, msg *signaling.Message) {
	if s, ok := c.room.streams[msg.StreamID]; ok {
		delete(s.subscribers, c)
	}
	h.router.unsubscribe(msg.StreamID, c.id)
}

func (h *Hub) handleOffer(c *Client, msg *signaling.Message) {
	var p signaling.SignalPayload
	if err := msg.Decode(&p); err != nil || p.Type != "offer" || p.SDP == "" {
		h.deliver(c, errorReply(msg, "invalid offer"))
		return
	}

	if c.peer != nil {
		_ = c.peer.Close()
		c.peer = nil
	}

	negotiate := h.negotiate
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
		defer cancel()

		answer, peer, err := negotiate(ctx, c.id, p.SDP)
		n := &negotiation{client: c, req: msg, answer: answer, peer: peer, err: err}
		select {
		case h.negotiated <- n:
		case <-h.done:
			if peer != nil {
				_ = peer.Close()
			}
		}
	}()
}

func (h *Hub) finishNegotiation(n *negotiation) {
	c := n.client
	if !h.clients[c] {
		if n.peer != nil {
			_ = n.peer.Close()
		}
		return
	}
	if n.err != nil {
		c.logger.Warn("negotiation failed", "err", n.err)
		h.deliver(c, errorReply(n.req, "negotiation failed"))
		return
	}

	c.peer = n.peer
	h.deliver(c, reply(n.req, signaling.MessageTypeAnswer, signaling.SignalPayload{Type: "answer", SDP: n.answer}))
}

func (h *Hub) handleUpdateConfig(c *Client, msg *signaling.Message) {
	s, ok := c.room.streams[msg.StreamID]
	if !ok {
		h.deliver(c, errorReply(msg, "unknown stream"))
		return
	}

	var p signaling.ConfigPayload
	if err := msg.Decode(&p); err != nil {
		h.deliver(c, errorReply(msg, "invalid configuration"))
		return
	}
	h.deliver(s.owner, notification(signaling.MessageTypeConfigUpdated, s.Info.ID, p))
}

func (h *Hub) handleSetAttributes(c *Client, msg *signaling.Message) {
	if c.stream == nil || msg.StreamID != c.stream.Info.ID {
		h.deliver(c, errorReply(msg, "stream not published"))
		return
	}

	var p signaling.AttributesPayload
	if err := msg.Decode(&p); err != nil {
		h.deliver(c, errorReply(msg, "invalid attributes"))
		return
	}
	c.stream.Info.Attributes = p.Attributes
	if c.stream.announced {
		h.broadcast(c.room, notification(signaling.MessageTypeStreamAttributes, c.stream.Info.ID, p))
	}
}

func (h *Hub) handleStartRecording(c *Client, msg *signaling.Message) {
	s, ok := c.room.streams[msg.StreamID]
	if !ok {
		h.deliver(c, errorReply(msg, "unknown stream"))
		return
	}
	for _, rec := range h.recordings {
		if rec.StreamID == s.Info.ID {
			h.deliver(c, errorReply(msg, "already recording"))
			return
		}
	}

	rec, err := h.recorder.Start(s.Info.ID)
	if err != nil {
		h.logger.Error("failed to start recording", "stream", s.Info.ID, "err", err)
		h.deliver(c, errorReply(msg, "recording failed"))
		return
	}
	h.recordings[rec.ID] = rec
	h.router.record(s.Info.ID, rec)
	h.metrics.ActiveRecordings.Inc()

	payload := signaling.RecordingPayload{RecordingID: rec.ID}
	h.deliver(c, reply(msg, signaling.MessageTypeRecordingStarted, payload))
	h.broadcast(c.room, notification(signaling.MessageTypeRecordingStarted, s.Info.ID, payload))
	h.logger.Info("recording started", "recording", rec.ID, "stream", s.Info.ID, "path", rec.Path)
}

func (h *Hub) handleStopRecording(c *Client, msg *signaling.Message) {
	var p signaling.RecordingPayload
	if err := msg.Decode(&p); err != nil {
		h.deliver(c, errorReply(msg, "invalid recording id"))
		return
	}

	rec, ok := h.recordings[p.RecordingID]
	if !ok {
		h.deliver(c, errorReply(msg, "unknown recording"))
		return
	}
	h.closeRecording(rec)

	h.deliver(c, reply(msg, signaling.MessageTypeRecordingStopped, p))
	h.broadcast(c.room, notification(signaling.MessageTypeRecordingStopped, rec.StreamID, p))
}

func (h *Hub) closeRecording(rec *Recording) {
	delete(h.recordings, rec.ID)
	h.router.unrecord(rec.StreamID)
	if err := rec.Close(); err != nil {
		h.logger.Warn("closing recording", "recording", rec.ID, "err", err)
	}
	h.metrics.ActiveRecordings.Dec()
	h.logger.Info("recording stopped", "recording", rec.ID, "frames", rec.Frames())
}

func (h *Hub) bandwidthAlert(a alert) {
	c, ok := h.byID[a.clientID]
	if !ok {
		return
	}
	h.deliver(c, notification(signaling.MessageTypeBandwidthAlert, a.streamID, signaling.BandwidthAlertPayload{
		Msg:       "insufficient",
		Bandwidth: int(a.buffered / 1024),
	}))
}
