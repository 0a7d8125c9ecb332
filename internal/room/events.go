package room

// Event is delivered on Room.Events in arrival order.
type Event interface {
	isEvent()
}

// RoomConnected is the first event after Connect. Streams lists everything
// already published in the room.
type RoomConnected struct {
	Streams []*Stream
}

// StreamAdded is emitted for every stream published in the room, the local
// one included.
type StreamAdded struct {
	Stream *Stream
}

// StreamAttributesUpdated is emitted when the owner of a stream replaced its
// attributes.
type StreamAttributesUpdated struct {
	Stream *Stream
}

type StreamSubscribed struct {
	Stream *Stream
}

type StreamRemoved struct {
	Stream *Stream
}

type StreamFailed struct {
	Stream *Stream
	Reason string
}

// BandwidthAlert reports a stream whose data cannot be delivered fast enough.
type BandwidthAlert struct {
	Stream    *Stream
	Msg       string
	Bandwidth int
}

// StreamData carries a payload a remote stream sent on the data channel. Data
// is the msgpack encoding of what the sender passed to SendData.
type StreamData struct {
	Stream *Stream
	Data   []byte
}

type RecordingStarted struct {
	ID string
}

type RecordingStopped struct {
	ID string
}

// ConfigUpdated is sent to a publisher when a subscriber changed how it
// receives the stream.
type ConfigUpdated struct {
	Stream        *Stream
	SlideShowMode bool
}

// Disconnected is the last event. Err is nil for a local Disconnect.
type Disconnected struct {
	Err error
}

func (RoomConnected) isEvent()           {}
func (StreamAdded) isEvent()             {}
func (StreamSubscribed) isEvent()        {}
func (StreamAttributesUpdated) isEvent() {}
func (StreamRemoved) isEvent()           {}
func (StreamFailed) isEvent()            {}
func (BandwidthAlert) isEvent()          {}
func (StreamData) isEvent()              {}
func (RecordingStarted) isEvent()        {}
func (RecordingStopped) isEvent()        {}
func (ConfigUpdated) isEvent()           {}
func (Disconnected) isEvent()            {}
