// Package session holds everything one participant of a room owns and runs
// the join sequence: token, local media, room connection, publish and
// subscribe. Room events are applied on the goroutine running Run; UI
// controls may be called from any goroutine.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/media"
	"github.com/jp-hoehmann/bun/internal/room"
	"github.com/jp-hoehmann/bun/internal/token"
	"github.com/jp-hoehmann/bun/internal/whiteboard"
)

// RoomClient is the part of *room.Room a session uses.
type RoomClient interface {
	Connect(ctx context.Context, opts room.ConnectOptions) error
	Events() <-chan room.Event
	Publish(ctx context.Context, s *room.Stream, opts room.PublishOptions) error
	Unpublish(s *room.Stream) error
	Subscribe(s *room.Stream, opts room.SubscribeOptions) error
	Unsubscribe(s *room.Stream) error
	SetAttributes(s *room.Stream, attrs map[string]string) error
	UpdateConfiguration(s *room.Stream, cfg room.StreamConfig) error
	StartRecording(ctx context.Context, s *room.Stream) (string, error)
	StopRecording(ctx context.Context, id string) error
	SendData(s *room.Stream, payload any) error
	Disconnect()
}

// TokenSource hands out room tokens. *token.Client implements it.
type TokenSource interface {
	Create(ctx context.Context, data token.RoomData) (string, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Tokens   TokenSource
	Acquirer media.Acquirer
	NewRoom  func(token string) RoomClient
	Mount    whiteboard.MountFunc
	Logger   *slog.Logger
}

// Person is one entry of the people list.
type Person struct {
	StreamID   string
	Name       string
	Local      bool
	Subscribed bool
}

// State is a copy of what the UI shows.
type State struct {
	Connected   bool
	Recording   bool
	RecordingID string
	SlideShow   bool
	Media       media.Options
	People      []Person
	Whiteboard  bool
	Shapes      []whiteboard.Shape
	Status      string
}

// Session replaces what a browser client keeps in globals.
type Session struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	// room, local and relay are set once by Join.
	room  RoomClient
	local *room.Stream
	relay *whiteboard.Relay

	// ctlMu serialises controls that talk to the server.
	ctlMu sync.Mutex

	mu          sync.Mutex
	connected   bool
	published   bool
	recording   bool
	recordingID string
	slideShow   bool
	people      map[string]*person
	status      string

	updates chan struct{}
}

type person struct {
	stream     *room.Stream
	subscribed bool
}

// New creates a session. Nothing happens until Join is called.
func New(cfg *config.Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Mount == nil {
		deps.Mount = whiteboard.MountBoard
	}
	return &Session{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With("component", "session"),
		people:  make(map[string]*person),
		updates: make(chan struct{}, 1),
	}
}

// Join requests a token, acquires media and connects to the room. The room
// is then driven by Run.
func (s *Session) Join(ctx context.Context) error {
	s.setStatus("requesting token")
	tok, err := s.deps.Tokens.Create(ctx, token.RoomData{
		Username:           s.cfg.Username,
		Role:               s.cfg.Role,
		Room:               s.cfg.Room,
		Type:               s.cfg.RoomType,
		MediaConfiguration: s.cfg.MediaConfiguration,
	})
	if err != nil {
		return WrapError("request token", ErrTokenRequest, err.Error())
	}

	s.setStatus("acquiring media")
	opts, err := media.Acquire(ctx, s.deps.Acquirer, media.Default, media.Fallback, s.logger)
	if err != nil {
		if errors.Is(err, media.ErrAccessDenied) {
			return WrapError("acquire media", ErrMediaDenied, err.Error())
		}
		return NewError("acquire media", err)
	}

	s.local = room.NewLocalStream(opts, map[string]string{"name": s.cfg.Username})
	s.room = s.deps.NewRoom(tok)
	s.relay = whiteboard.NewRelay(localSender{s}, s.deps.Mount, s.logger)
	s.relay.OnChange(s.changed)

	s.setStatus("connecting to " + s.cfg.Room)
	if err := s.room.Connect(ctx, room.ConnectOptions{Timeout: s.cfg.ConnectTimeout}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return WrapError("connect", ErrTimeout, err.Error())
		}
		return WrapError("connect", ErrSignaling, err.Error())
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Run applies room events until the room disconnects or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.room == nil {
		return NewError("run", ErrNotConnected)
	}

	for {
		select {
		case <-ctx.Done():
			s.Leave()
			return ctx.Err()

		case ev, ok := <-s.room.Events():
			if !ok {
				s.disconnected()
				return nil
			}
			if d, isDisconnect := ev.(room.Disconnected); isDisconnect {
				s.disconnected()
				if d.Err != nil {
					return WrapError("room", ErrNotConnected, d.Err.Error())
				}
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev room.Event) {
	switch e := ev.(type) {
	case room.RoomConnected:
		s.onRoomConnected(ctx, e)

	case room.StreamAdded:
		s.addPerson(e.Stream)
		if e.Stream.Local() {
			return
		}
		s.subscribe(e.Stream)
		s.relay.PeerJoined()

	case room.StreamAttributesUpdated:
		s.logger.Debug("stream attributes changed", "stream", e.Stream.ID(), "name", e.Stream.Attribute("name"))
		s.changed()

	case room.StreamSubscribed:
		s.mu.Lock()
		if p, ok := s.people[e.Stream.ID()]; ok {
			p.subscribed = true
		}
		s.mu.Unlock()
		s.logger.Debug("subscribed to stream", "stream", e.Stream.ID())
		s.changed()

	case room.StreamRemoved:
		s.mu.Lock()
		delete(s.people, e.Stream.ID())
		s.mu.Unlock()
		s.logger.Info("stream removed", "stream", e.Stream.ID(), "name", e.Stream.Attribute("name"))
		s.changed()

	case room.StreamFailed:
		s.logger.Warn("stream failed", "stream", e.Stream.ID(), "reason", e.Reason)

	case room.BandwidthAlert:
		s.logger.Warn("bandwidth alert", "stream", e.Stream.ID(), "msg", e.Msg, "bandwidth", e.Bandwidth)

	case room.StreamData:
		if e.Stream.Local() {
			return
		}
		s.relay.HandleData(e.Data)

	case room.RecordingStarted:
		s.logger.Info("recording started", "id", e.ID)

	case room.RecordingStopped:
		s.logger.Info("recording stopped", "id", e.ID)

	case room.ConfigUpdated:
		s.logger.Debug("subscriber changed configuration", "stream", e.Stream.ID(), "slideShow", e.SlideShowMode)

	default:
		s.logger.Debug("ignoring room event", "event", ev)
	}
}

func (s *Session) onRoomConnected(ctx context.Context, e room.RoomConnected) {
	s.logger.Info("connected to room", "room", s.cfg.Room, "streams", len(e.Streams))

	if len(e.Streams) == 0 {
		s.relay.JoinedAlone()
	}

	// Subscriptions go out before the publish so the canvas-init the others
	// send when our stream shows up has somewhere to go.
	for _, st := range e.Streams {
		s.addPerson(st)
		s.subscribe(st)
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err := s.room.Publish(publishCtx, s.local, room.PublishOptions{MaxVideoBW: s.cfg.MaxVideoBW})
	cancel()
	if err != nil {
		s.logger.Error("failed to publish local stream", "err", err)
		s.setStatus("publish failed")
	} else {
		s.mu.Lock()
		s.published = true
		s.mu.Unlock()
		s.setStatus("connected to " + s.cfg.Room)
	}
}

func (s *Session) subscribe(st *room.Stream) {
	s.mu.Lock()
	slideShow := s.slideShow
	s.mu.Unlock()

	if err := s.room.Subscribe(st, room.SubscribeOptions{SlideShowMode: slideShow}); err != nil {
		s.logger.Warn("failed to subscribe", "stream", st.ID(), "err", err)
	}
}

func (s *Session) addPerson(st *room.Stream) {
	s.mu.Lock()
	if _, ok := s.people[st.ID()]; !ok {
		s.people[st.ID()] = &person{stream: st}
	}
	s.mu.Unlock()
	s.changed()
}

// ToggleRecording starts recording the local stream, or stops the running
// recording.
func (s *Session) ToggleRecording(ctx context.Context) error {
	if !s.isConnected() {
		return NewError("toggle recording", ErrNotConnected)
	}

	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	recording, id := s.recording, s.recordingID
	s.mu.Unlock()

	if !recording {
		newID, err := s.room.StartRecording(ctx, s.local)
		if err != nil {
			return WrapError("start recording", ErrSignaling, err.Error())
		}
		s.mu.Lock()
		s.recording, s.recordingID = true, newID
		s.mu.Unlock()
		s.logger.Info("recording", "id", newID)
	} else {
		if err := s.room.StopRecording(ctx, id); err != nil {
			return WrapError("stop recording", ErrSignaling, err.Error())
		}
		s.mu.Lock()
		s.recording, s.recordingID = false, ""
		s.mu.Unlock()
	}

	s.changed()
	return nil
}

// ToggleSlideShow flips slide-show mode and applies it to every remote
// stream.
func (s *Session) ToggleSlideShow() error {
	if !s.isConnected() {
		return NewError("toggle slide show", ErrNotConnected)
	}

	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	s.mu.Lock()
	s.slideShow = !s.slideShow
	mode := s.slideShow
	var remote []*room.Stream
	for _, p := range s.people {
		if !p.stream.Local() {
			remote = append(remote, p.stream)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, st := range remote {
		if err := s.room.UpdateConfiguration(st, room.StreamConfig{SlideShowMode: mode}); err != nil {
			errs = append(errs, err)
		}
	}

	s.changed()
	if err := errors.Join(errs...); err != nil {
		return WrapError("toggle slide show", ErrSignaling, err.Error())
	}
	return nil
}

// Draw adds a stroke to the local board, which broadcasts it.
func (s *Session) Draw(shape whiteboard.Shape) error {
	if s.relay == nil {
		return NewError("draw", ErrNotConnected)
	}
	b, ok := s.relay.Widget().(*whiteboard.Board)
	if !ok {
		return NewError("draw", ErrNoWhiteboard)
	}
	b.Draw(shape)
	return nil
}

// Clear empties the board here and for everyone else.
func (s *Session) Clear() error {
	if s.relay == nil || !s.relay.Initialized() {
		return NewError("clear", ErrNoWhiteboard)
	}
	s.relay.LocalClear()
	return nil
}

// Rename changes the name the others see for the local stream.
func (s *Session) Rename(name string) error {
	if !s.isConnected() {
		return NewError("rename", ErrNotConnected)
	}
	if name == "" {
		return NewError("rename", ErrEmptyName)
	}

	s.ctlMu.Lock()
	defer s.ctlMu.Unlock()

	attrs := s.local.Attributes()
	attrs["name"] = name
	if err := s.room.SetAttributes(s.local, attrs); err != nil {
		return WrapError("rename", ErrSignaling, err.Error())
	}
	s.logger.Info("renamed local stream", "name", name)
	s.changed()
	return nil
}

// Leave withdraws the local stream and the subscriptions, then disconnects
// from the room.
func (s *Session) Leave() {
	if s.room == nil {
		return
	}

	s.mu.Lock()
	connected, published := s.connected, s.published
	var subscribed []*room.Stream
	for _, p := range s.people {
		if p.subscribed && !p.stream.Local() {
			subscribed = append(subscribed, p.stream)
		}
	}
	s.mu.Unlock()

	if connected {
		for _, st := range subscribed {
			if err := s.room.Unsubscribe(st); err != nil {
				s.logger.Debug("unsubscribe on leave", "stream", st.ID(), "err", err)
			}
		}
		if published {
			if err := s.room.Unpublish(s.local); err != nil {
				s.logger.Debug("unpublish on leave", "err", err)
			}
		}
	}
	s.room.Disconnect()
}

// State returns a copy of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	st := State{
		Connected:   s.connected,
		Recording:   s.recording,
		RecordingID: s.recordingID,
		SlideShow:   s.slideShow,
		Status:      s.status,
	}
	for id, p := range s.people {
		st.People = append(st.People, Person{
			StreamID:   id,
			Name:       p.stream.Attribute("name"),
			Local:      p.stream.Local(),
			Subscribed: p.subscribed,
		})
	}
	s.mu.Unlock()

	sort.Slice(st.People, func(i, j int) bool {
		if st.People[i].Local != st.People[j].Local {
			return st.People[i].Local
		}
		return st.People[i].StreamID < st.People[j].StreamID
	})

	if s.local != nil {
		st.Media = s.local.Options()
	}
	if s.relay != nil {
		if b, ok := s.relay.Widget().(*whiteboard.Board); ok {
			st.Whiteboard = true
			st.Shapes = b.Shapes()
		}
	}
	return st
}

// Updates signals that State changed. Signals are coalesced.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) disconnected() {
	s.mu.Lock()
	s.connected = false
	s.status = "disconnected"
	s.mu.Unlock()
	s.changed()
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.changed()
}

func (s *Session) changed() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// localSender sends whiteboard messages on the local stream.
type localSender struct {
	s *Session
}

func (l localSender) SendData(payload any) error {
	return l.s.room.SendData(l.s.local, payload)
}
