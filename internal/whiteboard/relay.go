package whiteboard

import (
	"log/slog"
	"sync"
)

// Sender broadcasts a payload to every peer in the room.
type Sender interface {
	SendData(payload any) error
}

// Relay keeps the local widget in sync with the rest of the room. Every local
// change is broadcast as a full snapshot and every remote message overwrites
// local state; the last message to arrive wins.
//
// The only state is whether a local widget exists yet. It is created once,
// either fresh when joining an empty room or from the first canvas-init, and
// then kept for the life of the session.
type Relay struct {
	sender Sender
	mount  MountFunc
	logger *slog.Logger

	mu       sync.Mutex
	widget   Widget
	onChange func()
}

// NewRelay returns a relay that sends through sender and creates its widget
// with mount.
func NewRelay(sender Sender, mount MountFunc, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		sender: sender,
		mount:  mount,
		logger: logger.With("component", "whiteboard"),
	}
}

// OnChange registers fn to be called after the local widget changed.
func (r *Relay) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Widget returns the local widget, or nil before it was created.
func (r *Relay) Widget() Widget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.widget
}

// Initialized reports whether the local widget exists.
func (r *Relay) Initialized() bool {
	return r.Widget() != nil
}

// LocalDrawEnd broadcasts the full local snapshot after a stroke completed.
func (r *Relay) LocalDrawEnd() {
	w := r.Widget()
	if w == nil {
		return
	}
	r.send(Draw{Snapshot: w.Snapshot()})
	r.changed()
}

// LocalClear clears the local widget and tells everyone else to do the same.
func (r *Relay) LocalClear() {
	w := r.Widget()
	if w == nil {
		r.logger.Debug("clear ignored, no whiteboard yet")
		return
	}
	w.Clear()
	r.send(Clear{})
	r.changed()
}

// PeerJoined sends the current snapshot to the room so a newcomer can build
// its board. It goes to every peer, not only the newcomer.
func (r *Relay) PeerJoined() {
	w := r.Widget()
	if w == nil {
		r.logger.Debug("no whiteboard to share with new peer")
		return
	}
	r.send(Init{Snapshot: w.Snapshot()})
}

// JoinedAlone creates a fresh, empty widget. It is used when the room had no
// streams at join time so no canvas-init will ever arrive.
func (r *Relay) JoinedAlone() {
	r.mu.Lock()
	created, err := r.mountLocked(nil)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("failed to create whiteboard", "err", err)
		return
	}
	if created {
		r.logger.Info("created new whiteboard")
		r.changed()
	}
}

// HandleData decodes a payload received from a peer and applies it.
func (r *Relay) HandleData(raw []byte) {
	msg, err := Decode(raw)
	if err != nil {
		r.logger.Warn("ignoring malformed whiteboard message", "err", err)
		return
	}
	r.HandleRemote(msg)
}

// HandleRemote applies a message received from a peer.
func (r *Relay) HandleRemote(msg Message) {
	switch m := msg.(type) {
	case Clear:
		w := r.Widget()
		if w == nil {
			return
		}
		w.Clear()
		r.logger.Debug("cleared the whiteboard")

	case Draw:
		w := r.Widget()
		if w == nil {
			r.logger.Debug("whiteboard change ignored, no whiteboard yet")
			return
		}
		if err := w.Load(m.Snapshot); err != nil {
			r.logger.Warn("failed to load whiteboard change", "err", err)
			return
		}
		r.logger.Debug("loaded a whiteboard change")

	case Init:
		r.mu.Lock()
		created, err := r.mountLocked(m.Snapshot)
		r.mu.Unlock()
		if err != nil {
			r.logger.Warn("failed to create whiteboard from snapshot", "err", err)
			return
		}
		if !created {
			return
		}
		r.logger.Info("created whiteboard from existing snapshot")

	default:
		r.logger.Debug("ignoring packet of unknown type", "type", msg.Kind())
		return
	}

	r.changed()
}

// mountLocked creates the widget unless it already exists.
func (r *Relay) mountLocked(initial Snapshot) (bool, error) {
	if r.widget != nil {
		return false, nil
	}

	w, err := r.mount(initial)
	if err != nil {
		return false, err
	}
	w.OnDrawEnd(r.LocalDrawEnd)
	r.widget = w
	return true, nil
}

func (r *Relay) send(m Message) {
	if err := r.sender.SendData(ToPacket(m)); err != nil {
		r.logger.Warn("failed to send whiteboard message", "type", m.Kind(), "err", err)
	}
}

func (r *Relay) changed() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}
