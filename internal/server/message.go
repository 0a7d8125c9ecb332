package server

import (
	"github.com/jp-hoehmann/bun/internal/signaling"
)

// inbound is a message read from a client, queued for the hub.
type inbound struct {
	client *Client
	msg    *signaling.Message

	// limited is set when the client exceeded its message rate; msg is
	// dropped and the client is told so.
	limited bool
}

// reply builds a message answering req.
func reply(req *signaling.Message, typ string, payload any) *signaling.Message {
	msg := notification(typ, req.StreamID, payload)
	msg.ID = req.ID
	return msg
}

// notification builds a message that answers no request.
func notification(typ, streamID string, payload any) *signaling.Message {
	msg, err := signaling.NewMessage(typ, payload)
	if err != nil {
		// Payloads are fixed structs from the signaling package.
		panic(err)
	}
	msg.StreamID = streamID
	return msg
}

func errorReply(req *signaling.Message, text string) *signaling.Message {
	return reply(req, signaling.MessageTypeError, signaling.ErrorPayload{Error: text})
}
