package room

import (
	"sync"

	"github.com/jp-hoehmann/bun/internal/media"
	"github.com/jp-hoehmann/bun/internal/signaling"
)

// Stream is a local or remote media stream. A local stream gets its ID when
// it is published.
type Stream struct {
	mu         sync.RWMutex
	id         string
	local      bool
	options    media.Options
	attributes map[string]string
	room       *Room
}

// NewLocalStream describes the stream this client is going to publish.
func NewLocalStream(opts media.Options, attributes map[string]string) *Stream {
	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	return &Stream{local: true, options: opts, attributes: attrs}
}

// NewRemoteStream describes a stream published by someone else.
func NewRemoteStream(info signaling.StreamInfo) *Stream {
	return &Stream{
		id: info.ID,
		options: media.Options{
			Audio:  info.Audio,
			Video:  info.Video,
			Data:   info.Data,
			Screen: info.Screen,
		},
		attributes: info.Attributes,
	}
}

func (s *Stream) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Stream) Local() bool {
	return s.local
}

func (s *Stream) Options() media.Options {
	return s.options
}

// Attribute returns the attribute key, e.g. "name".
func (s *Stream) Attribute(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributes[key]
}

// Attributes returns a copy of the stream attributes.
func (s *Stream) Attributes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// SendData broadcasts payload to every subscriber of this published local
// stream.
func (s *Stream) SendData(payload any) error {
	s.mu.RLock()
	r := s.room
	s.mu.RUnlock()

	if !s.local || r == nil {
		return ErrNotPublished
	}
	return r.sendData(s, payload)
}

func (s *Stream) publishedAs(id string, r *Room) {
	s.mu.Lock()
	s.id = id
	s.room = r
	s.mu.Unlock()
}

func (s *Stream) setAttributes(attrs map[string]string) {
	s.mu.Lock()
	s.attributes = attrs
	s.mu.Unlock()
}

func (s *Stream) info() signaling.StreamInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return signaling.StreamInfo{
		ID:         s.id,
		Audio:      s.options.Audio,
		Video:      s.options.Video,
		Data:       s.options.Data,
		Screen:     s.options.Screen,
		Attributes: s.attributes,
	}
}
