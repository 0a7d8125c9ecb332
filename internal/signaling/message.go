package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is the JSON envelope of every websocket message between a client
// and the room server. ID correlates a request with its reply; notifications
// carry no ID.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	StreamID string          `json:"stream_id,omitempty"`
	ID       uint64          `json:"id,omitempty"`
}

// Message type constants.
const (
	// client to server
	MessageTypeToken          = "token"
	MessageTypePublish        = "publish"
	MessageTypeUnpublish      = "unpublish"
	MessageTypeSubscribe      = "subscribe"
	MessageTypeUnsubscribe    = "unsubscribe"
	MessageTypeOffer          = "offer"
	MessageTypeUpdateConfig   = "update_config"
	MessageTypeSetAttributes  = "set_attributes"
	MessageTypeStartRecording = "start_recording"
	MessageTypeStopRecording  = "stop_recording"

	// server to client
	MessageTypeRoomConnected    = "room_connected"
	MessageTypePublished        = "published"
	MessageTypeStreamAdded      = "stream_added"
	MessageTypeStreamRemoved    = "stream_removed"
	MessageTypeStreamAttributes = "stream_attributes"
	MessageTypeStreamSubscribed = "stream_subscribed"
	MessageTypeStreamFailed     = "stream_failed"
	MessageTypeAnswer           = "answer"
	MessageTypeRecordingStarted = "recording_started"
	MessageTypeRecordingStopped = "recording_stopped"
	MessageTypeConfigUpdated    = "config_updated"
	MessageTypeBandwidthAlert   = "bandwidth_alert"
	MessageTypeError            = "error"
)

// NewMessage builds a message of type typ with payload encoded as JSON. A nil
// payload is omitted.
func NewMessage(typ string, payload any) (*Message, error) {
	msg := &Message{Type: typ}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// StreamInfo describes a published stream.
type StreamInfo struct {
	ID         string            `json:"id"`
	Owner      string            `json:"owner,omitempty"`
	Audio      bool              `json:"audio"`
	Video      bool              `json:"video"`
	Data       bool              `json:"data"`
	Screen     bool              `json:"screen"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TokenPayload authenticates a new connection.
type TokenPayload struct {
	Token     string `json:"token"`
	UserAgent string `json:"user_agent,omitempty"`
}

// RoomConnectedPayload answers a valid token.
type RoomConnectedPayload struct {
	ClientID string       `json:"id"`
	Room     string       `json:"room"`
	Streams  []StreamInfo `json:"streams"`
}

type PublishPayload struct {
	Audio      bool              `json:"audio"`
	Video      bool              `json:"video"`
	Data       bool              `json:"data"`
	Screen     bool              `json:"screen"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MaxVideoBW int               `json:"max_video_bw,omitempty"`
}

type SubscribePayload struct {
	SlideShowMode bool              `json:"slide_show_mode"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SignalPayload carries an SDP offer or answer. ICE is not trickled.
type SignalPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type ConfigPayload struct {
	SlideShowMode bool `json:"slide_show_mode"`
}

type AttributesPayload struct {
	Attributes map[string]string `json:"attributes"`
}

type RecordingPayload struct {
	RecordingID string `json:"recording_id"`
}

type BandwidthAlertPayload struct {
	Msg       string `json:"msg"`
	Bandwidth int    `json:"bandwidth"`
}

type StreamFailedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload represents error messages from server.
type ErrorPayload struct {
	Error string `json:"error"`
}
