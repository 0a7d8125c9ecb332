package server

import (
	"log/slog"
	"sync"

	"github.com/jp-hoehmann/bun/internal/signaling"
)

// defaultHighWater is the buffered amount above which a subscriber gets a
// bandwidth alert.
const defaultHighWater = 1 << 20

// dataSink is the sending side of a client's data channel.
type dataSink interface {
	Send(data []byte) error
	BufferedAmount() uint64
}

type alert struct {
	clientID string
	streamID string
	buffered uint64
}

// router forwards data frames from publishers to subscribers. It is called
// from data channel goroutines while the hub changes the routes, so unlike
// the rest of the room state it has its own lock.
type router struct {
	mu          sync.RWMutex
	sinks       map[string]dataSink
	publishers  map[string]string
	subscribers map[string]map[string]struct{}
	recordings  map[string]*Recording

	highWater uint64
	alerts    chan alert
	metrics   *Metrics
	logger    *slog.Logger

	// onAttach, if set, is called after a client's data channel is attached.
	onAttach func(clientID string)
}

func newRouter(metrics *Metrics, logger *slog.Logger) *router {
	return &router{
		sinks:       make(map[string]dataSink),
		publishers:  make(map[string]string),
		subscribers: make(map[string]map[string]struct{}),
		recordings:  make(map[string]*Recording),
		highWater:   defaultHighWater,
		alerts:      make(chan alert, 64),
		metrics:     metrics,
		logger:      logger,
	}
}

func (rt *router) attach(clientID string, sink dataSink) {
	rt.mu.Lock()
	rt.sinks[clientID] = sink
	rt.mu.Unlock()

	if rt.onAttach != nil {
		rt.onAttach(clientID)
	}
}

func (rt *router) attached(clientID string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.sinks[clientID]
	return ok
}

// detach removes sink unless it was already replaced by a newer one.
func (rt *router) detach(clientID string, sink dataSink) {
	rt.mu.Lock()
	if rt.sinks[clientID] == sink {
		delete(rt.sinks, clientID)
	}
	rt.mu.Unlock()
}

func (rt *router) publish(clientID, streamID string) {
	rt.mu.Lock()
	rt.publishers[clientID] = streamID
	rt.subscribers[streamID] = make(map[string]struct{})
	rt.mu.Unlock()
}

func (rt *router) unpublish(clientID, streamID string) {
	rt.mu.Lock()
	if rt.publishers[clientID] == streamID {
		delete(rt.publishers, clientID)
	}
	delete(rt.subscribers, streamID)
	delete(rt.recordings, streamID)
	rt.mu.Unlock()
}

func (rt *router) subscribe(streamID, clientID string) {
	rt.mu.Lock()
	if subs, ok := rt.subscribers[streamID]; ok {
		subs[clientID] = struct{}{}
	}
	rt.mu.Unlock()
}

func (rt *router) unsubscribe(streamID, clientID string) {
	rt.mu.Lock()
	if subs, ok := rt.subscribers[streamID]; ok {
		delete(subs, clientID)
	}
	rt.mu.Unlock()
}

// removeClient forgets everything routed to or from clientID.
func (rt *router) removeClient(clientID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	delete(rt.sinks, clientID)
	if streamID, ok := rt.publishers[clientID]; ok {
		delete(rt.subscribers, streamID)
		delete(rt.recordings, streamID)
		delete(rt.publishers, clientID)
	}
	for _, subs := range rt.subscribers {
		delete(subs, clientID)
	}
}

func (rt *router) record(streamID string, rec *Recording) {
	rt.mu.Lock()
	rt.recordings[streamID] = rec
	rt.mu.Unlock()
}

func (rt *router) unrecord(streamID string) {
	rt.mu.Lock()
	delete(rt.recordings, streamID)
	rt.mu.Unlock()
}

// forward relays a frame received from clientID to every subscriber of its
// published stream and returns how many subscribers it reached. The envelope's
// stream id is replaced with the publisher's stream.
func (rt *router) forward(clientID string, raw []byte) int {
	env, err := signaling.DecodeEnvelope(raw)
	if err != nil {
		rt.logger.Warn("dropping malformed data frame", "client", clientID, "err", err)
		rt.metrics.DataFrames.WithLabelValues("malformed").Inc()
		return 0
	}

	type target struct {
		id   string
		sink dataSink
	}

	rt.mu.RLock()
	streamID, ok := rt.publishers[clientID]
	var targets []target
	var rec *Recording
	if ok {
		for sub := range rt.subscribers[streamID] {
			if sink, ok := rt.sinks[sub]; ok {
				targets = append(targets, target{sub, sink})
			}
		}
		rec = rt.recordings[streamID]
	}
	rt.mu.RUnlock()

	if !ok {
		rt.logger.Debug("dropping data from client without a stream", "client", clientID)
		rt.metrics.DataFrames.WithLabelValues("unpublished").Inc()
		return 0
	}

	env.StreamID = streamID
	out, err := signaling.EncodeEnvelope(env)
	if err != nil {
		rt.logger.Warn("re-encoding data frame failed", "err", err)
		return 0
	}

	if rec != nil {
		if err := rec.Write(env); err != nil {
			rt.logger.Warn("writing recording failed", "recording", rec.ID, "err", err)
		}
	}

	delivered := 0
	for _, t := range targets {
		if err := t.sink.Send(out); err != nil {
			rt.logger.Debug("forwarding data failed", "client", t.id, "err", err)
			rt.metrics.DataFrames.WithLabelValues("failed").Inc()
			continue
		}
		delivered++
		rt.metrics.DataFrames.WithLabelValues("forwarded").Inc()
		rt.metrics.DataBytes.Add(float64(len(out)))

		if buffered := t.sink.BufferedAmount(); buffered > rt.highWater {
			select {
			case rt.alerts <- alert{clientID: t.id, streamID: streamID, buffered: buffered}:
			default:
			}
		}
	}
	return delivered
}
