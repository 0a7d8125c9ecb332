package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrServer wraps an error message sent by the room server.
var ErrServer = errors.New("server error")

// Conn is the transport a Handler runs on. *Client implements it.
type Conn interface {
	Send(msg *Message) error
	Incoming() <-chan *Message
}

// Handler routes incoming messages: replies go to the request that is
// waiting for them, everything else to Notifications.
type Handler struct {
	conn   Conn
	logger *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *Message

	notifications chan *Message
	done          chan struct{}
}

// NewHandler creates a new message handler.
func NewHandler(conn Conn, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		conn:          conn,
		logger:        logger.With("component", "signaling"),
		pending:       make(map[uint64]chan *Message),
		notifications: make(chan *Message, 64),
		done:          make(chan struct{}),
	}
}

// Start reads from the connection until it closes. It closes Notifications
// and fails every pending request on return.
func (h *Handler) Start() {
	defer func() {
		h.mu.Lock()
		close(h.done)
		h.pending = map[uint64]chan *Message{}
		h.mu.Unlock()
		close(h.notifications)
	}()

	for msg := range h.conn.Incoming() {
		if msg.ID != 0 && h.deliver(msg) {
			continue
		}
		if msg.Type == MessageTypeError {
			h.logger.Warn("server reported an error", "err", serverError(msg))
		}
		h.notifications <- msg
	}
}

func (h *Handler) deliver(msg *Message) bool {
	h.mu.Lock()
	ch, ok := h.pending[msg.ID]
	delete(h.pending, msg.ID)
	h.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

// Request sends msg and waits for the reply carrying the same ID. An error
// reply is returned as an error wrapping ErrServer.
func (h *Handler) Request(ctx context.Context, msg *Message) (*Message, error) {
	reply := make(chan *Message, 1)

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	h.nextID++
	msg.ID = h.nextID
	h.pending[msg.ID] = reply
	h.mu.Unlock()

	forget := func() {
		h.mu.Lock()
		delete(h.pending, msg.ID)
		h.mu.Unlock()
	}

	if err := h.conn.Send(msg); err != nil {
		forget()
		return nil, err
	}

	select {
	case r := <-reply:
		if r.Type == MessageTypeError {
			return nil, serverError(r)
		}
		return r, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		forget()
		return nil, fmt.Errorf("%s: %w", msg.Type, ctx.Err())
	}
}

// Notify sends msg without waiting for a reply.
func (h *Handler) Notify(msg *Message) error {
	msg.ID = 0
	return h.conn.Send(msg)
}

// Notifications returns messages that are not replies to a request.
func (h *Handler) Notifications() <-chan *Message {
	return h.notifications
}

// Done is closed once the connection ended.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func serverError(msg *Message) error {
	var p ErrorPayload
	if err := msg.Decode(&p); err != nil || p.Error == "" {
		return fmt.Errorf("%w: unknown error", ErrServer)
	}
	return fmt.Errorf("%w: %s", ErrServer, p.Error)
}
