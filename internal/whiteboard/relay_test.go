package whiteboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// recordingSender keeps every packet the relay sends.
type recordingSender struct {
	packets []Packet
	err     error
}

func (s *recordingSender) SendData(payload any) error {
	s.packets = append(s.packets, payload.(Packet))
	return s.err
}

// loopback delivers every payload to all other peers, encoded the way the data
// channel would carry it.
type loopback struct {
	peers []*Relay
}

type loopbackSender struct {
	room *loopback
	from int
}

func (s loopbackSender) SendData(payload any) error {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	for i, peer := range s.room.peers {
		if i != s.from {
			peer.HandleData(raw)
		}
	}
	return nil
}

func (l *loopback) join() *Relay {
	r := NewRelay(loopbackSender{room: l, from: len(l.peers)}, MountBoard, nil)
	l.peers = append(l.peers, r)
	return r
}

func snapshotOf(t *testing.T, shapes ...Shape) Snapshot {
	t.Helper()
	b := NewBoard()
	for _, s := range shapes {
		b.Draw(s)
	}
	return b.Snapshot()
}

func line(id string) Shape {
	return Shape{ID: id, Type: "line", X1: 0.1, Y1: 0.2, X2: 0.8, Y2: 0.9, StrokeColor: "#000000", StrokeWidth: 2}
}

func board(t *testing.T, r *Relay) *Board {
	t.Helper()
	w := r.Widget()
	require.NotNil(t, w)
	return w.(*Board)
}

func TestRemoteDrawReplacesSnapshot(t *testing.T) {
	snapshots := []Snapshot{
		snapshotOf(t),
		snapshotOf(t, line("a")),
		snapshotOf(t, line("a"), line("b"), line("c")),
	}

	for _, s := range snapshots {
		r := NewRelay(&recordingSender{}, MountBoard, nil)
		r.JoinedAlone()
		board(t, r).Draw(line("local"))

		r.HandleRemote(Draw{Snapshot: s})

		assert.JSONEq(t, string(s), string(r.Widget().Snapshot()))
	}
}

func TestRemoteClearEmptiesBoard(t *testing.T) {
	r := NewRelay(&recordingSender{}, MountBoard, nil)
	r.HandleRemote(Init{Snapshot: snapshotOf(t, line("a"), line("b"))})
	require.Len(t, board(t, r).Shapes(), 2)

	r.HandleRemote(Clear{})

	assert.Empty(t, board(t, r).Shapes())
	assert.JSONEq(t, `{"shapes":[]}`, string(r.Widget().Snapshot()))
}

func TestInitOnlyAppliesWithoutWidget(t *testing.T) {
	first := snapshotOf(t, line("first"))
	second := snapshotOf(t, line("second"), line("third"))

	r := NewRelay(&recordingSender{}, MountBoard, nil)
	assert.False(t, r.Initialized())

	r.HandleRemote(Init{Snapshot: first})
	require.True(t, r.Initialized())
	assert.JSONEq(t, string(first), string(r.Widget().Snapshot()))

	r.HandleRemote(Init{Snapshot: second})
	assert.JSONEq(t, string(first), string(r.Widget().Snapshot()))
}

func TestUnknownTypeNeverMutates(t *testing.T) {
	r := NewRelay(&recordingSender{}, MountBoard, nil)

	r.HandleRemote(Unknown{Type: "unknown"})
	assert.False(t, r.Initialized())

	r.HandleRemote(Init{Snapshot: snapshotOf(t, line("a"))})
	before := r.Widget().Snapshot()

	raw, err := msgpack.Marshal(Packet{Type: "canvas-rotate", Data: snapshotOf(t)})
	require.NoError(t, err)
	r.HandleData(raw)

	assert.Equal(t, before, r.Widget().Snapshot())
}

func TestMalformedDataIgnored(t *testing.T) {
	r := NewRelay(&recordingSender{}, MountBoard, nil)
	r.JoinedAlone()
	board(t, r).Draw(line("a"))
	before := r.Widget().Snapshot()

	r.HandleData([]byte{0xc1})
	r.HandleRemote(Draw{Snapshot: Snapshot("{broken")})

	assert.Equal(t, before, r.Widget().Snapshot())
}

func TestRemoteMessagesBeforeWidgetAreDropped(t *testing.T) {
	r := NewRelay(&recordingSender{}, MountBoard, nil)

	r.HandleRemote(Draw{Snapshot: snapshotOf(t, line("a"))})
	r.HandleRemote(Clear{})

	assert.False(t, r.Initialized())
}

func TestLocalDrawEndBroadcastsFullSnapshot(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender, MountBoard, nil)
	r.JoinedAlone()

	board(t, r).Draw(line("a"))
	board(t, r).Draw(line("b"))

	require.Len(t, sender.packets, 2)
	assert.Equal(t, string(KindDraw), sender.packets[1].Type)
	assert.JSONEq(t, string(snapshotOf(t, line("a"), line("b"))), string(sender.packets[1].Data))
}

func TestLocalClearClearsThenSends(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender, MountBoard, nil)
	r.JoinedAlone()
	board(t, r).Draw(line("a"))

	r.LocalClear()

	assert.Empty(t, board(t, r).Shapes())
	last := sender.packets[len(sender.packets)-1]
	assert.Equal(t, Packet{Type: string(KindClear)}, last)
}

func TestSendFailureIsNotFatal(t *testing.T) {
	sender := &recordingSender{err: errors.New("channel closed")}
	r := NewRelay(sender, MountBoard, nil)
	r.JoinedAlone()

	board(t, r).Draw(line("a"))

	assert.Len(t, board(t, r).Shapes(), 1)
	assert.Len(t, sender.packets, 1)
}

func TestPeerJoinedSendsInit(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender, MountBoard, nil)

	r.PeerJoined()
	assert.Empty(t, sender.packets)

	r.JoinedAlone()
	board(t, r).Draw(line("a"))
	sender.packets = nil

	r.PeerJoined()

	require.Len(t, sender.packets, 1)
	assert.Equal(t, string(KindInit), sender.packets[0].Type)
	assert.JSONEq(t, string(snapshotOf(t, line("a"))), string(sender.packets[0].Data))
}

func TestJoinedAloneCreatesEmptyBoardOnce(t *testing.T) {
	r := NewRelay(&recordingSender{}, MountBoard, nil)
	changes := 0
	r.OnChange(func() { changes++ })

	r.JoinedAlone()
	first := r.Widget()
	r.JoinedAlone()

	assert.Same(t, first, r.Widget())
	assert.JSONEq(t, `{"shapes":[]}`, string(first.Snapshot()))
	assert.Equal(t, 1, changes)
}

func TestMountFailureLeavesRelayUninitialized(t *testing.T) {
	r := NewRelay(&recordingSender{}, func(Snapshot) (Widget, error) {
		return nil, errors.New("no canvas")
	}, nil)

	r.JoinedAlone()
	r.HandleRemote(Init{Snapshot: snapshotOf(t)})

	assert.False(t, r.Initialized())
}

func TestTwoPeersDraw(t *testing.T) {
	room := &loopback{}
	a := room.join()
	b := room.join()
	a.JoinedAlone()
	b.JoinedAlone()

	board(t, a).Draw(line("s1"))

	assert.JSONEq(t, string(a.Widget().Snapshot()), string(b.Widget().Snapshot()))
	assert.Len(t, board(t, b).Shapes(), 1)
}

func TestTwoPeersClear(t *testing.T) {
	room := &loopback{}
	a := room.join()
	b := room.join()
	a.JoinedAlone()
	b.JoinedAlone()
	board(t, a).Draw(line("s1"))
	require.Len(t, board(t, b).Shapes(), 1)

	a.LocalClear()

	assert.Empty(t, board(t, b).Shapes())
}

func TestNewcomerInitializedByExistingPeer(t *testing.T) {
	room := &loopback{}
	a := room.join()
	a.JoinedAlone()
	board(t, a).Draw(line("s1"))
	board(t, a).Draw(line("s2"))

	b := room.join()
	assert.False(t, b.Initialized())

	// a observes b's stream.
	a.PeerJoined()

	require.True(t, b.Initialized())
	assert.JSONEq(t, string(a.Widget().Snapshot()), string(b.Widget().Snapshot()))

	// b's own strokes flow back to a.
	board(t, b).Draw(line("s3"))
	assert.Len(t, board(t, a).Shapes(), 3)
}
