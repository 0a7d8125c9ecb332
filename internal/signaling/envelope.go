package signaling

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// DataChannelLabel is the label of the data channel every client opens to the
// room server.
const DataChannelLabel = "data"

// Envelope wraps every data-channel frame. The server rewrites StreamID to the
// publishing stream before forwarding.
type Envelope struct {
	StreamID string `msgpack:"stream_id"`
	Msg      []byte `msgpack:"msg"`
}

// EncodeData wraps payload, msgpack-encoded, in an envelope for streamID.
func EncodeData(streamID string, payload any) ([]byte, error) {
	msg, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode data payload: %w", err)
	}
	return EncodeEnvelope(Envelope{StreamID: streamID, Msg: msg})
}

func EncodeEnvelope(env Envelope) ([]byte, error) {
	raw, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return raw, nil
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
