package whiteboard

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind is the type tag carried by every whiteboard message.
type Kind string

const (
	KindClear Kind = "canvas-clear"
	KindDraw  Kind = "canvas-draw"
	KindInit  Kind = "canvas-init"
)

// Message is one of Clear, Draw, Init or Unknown.
type Message interface {
	Kind() Kind
	isMessage()
}

// Clear empties the receiver's board.
type Clear struct{}

// Draw replaces the receiver's board with Snapshot.
type Draw struct {
	Snapshot Snapshot
}

// Init seeds the receiver's board if it has none yet.
type Init struct {
	Snapshot Snapshot
}

// Unknown is a message with a type this client does not understand.
type Unknown struct {
	Type string
}

func (Clear) Kind() Kind     { return KindClear }
func (Draw) Kind() Kind      { return KindDraw }
func (Init) Kind() Kind      { return KindInit }
func (u Unknown) Kind() Kind { return Kind(u.Type) }

func (Clear) isMessage()   {}
func (Draw) isMessage()    {}
func (Init) isMessage()    {}
func (Unknown) isMessage() {}

// Packet is the data-channel form of a Message.
type Packet struct {
	Type string `msgpack:"type"`
	Data []byte `msgpack:"data,omitempty"`
}

// ToPacket converts m for sending.
func ToPacket(m Message) Packet {
	switch m := m.(type) {
	case Draw:
		return Packet{Type: string(KindDraw), Data: m.Snapshot}
	case Init:
		return Packet{Type: string(KindInit), Data: m.Snapshot}
	default:
		return Packet{Type: string(m.Kind())}
	}
}

// Message converts a received packet back into its variant.
func (p Packet) Message() Message {
	switch Kind(p.Type) {
	case KindClear:
		return Clear{}
	case KindDraw:
		return Draw{Snapshot: p.Data}
	case KindInit:
		return Init{Snapshot: p.Data}
	default:
		return Unknown{Type: p.Type}
	}
}

// Decode parses a msgpack-encoded packet.
func Decode(raw []byte) (Message, error) {
	var p Packet
	if err := msgpack.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode whiteboard message: %w", err)
	}
	return p.Message(), nil
}
