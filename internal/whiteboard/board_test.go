package whiteboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEmptyBoardSnapshot(t *testing.T) {
	assert.JSONEq(t, `{"shapes":[]}`, string(NewBoard().Snapshot()))
}

func TestBoardDrawFiresHandlers(t *testing.T) {
	b := NewBoard()
	fired := 0
	b.OnDrawEnd(func() { fired++ })
	b.OnDrawEnd(func() { fired++ })

	b.Draw(line("a"))

	assert.Equal(t, 2, fired)
	assert.Equal(t, []Shape{line("a")}, b.Shapes())
}

func TestBoardLoadAndClear(t *testing.T) {
	b := NewBoard()
	require.NoError(t, b.Load(Snapshot(`{"shapes":[{"id":"x","type":"line","x1":0,"y1":0,"x2":1,"y2":1,"strokeColor":"#fff","strokeWidth":1}]}`)))
	assert.Len(t, b.Shapes(), 1)

	b.Clear()
	assert.Empty(t, b.Shapes())

	assert.Error(t, b.Load(Snapshot("nope")))
}

func TestMountBoardWithSnapshot(t *testing.T) {
	w, err := MountBoard(snapshotOf(t, line("a")))
	require.NoError(t, err)
	assert.Len(t, w.(*Board).Shapes(), 1)

	_, err = MountBoard(Snapshot("[]x"))
	assert.Error(t, err)
}

func TestPacketVariants(t *testing.T) {
	s := snapshotOf(t, line("a"))

	assert.Equal(t, Packet{Type: "canvas-clear"}, ToPacket(Clear{}))
	assert.Equal(t, Packet{Type: "canvas-draw", Data: s}, ToPacket(Draw{Snapshot: s}))
	assert.Equal(t, Packet{Type: "canvas-init", Data: s}, ToPacket(Init{Snapshot: s}))

	raw, err := msgpack.Marshal(ToPacket(Draw{Snapshot: s}))
	require.NoError(t, err)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Draw{Snapshot: s}, msg)

	raw, err = msgpack.Marshal(Packet{Type: "canvas-clear"})
	require.NoError(t, err)
	msg, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Clear{}, msg)

	msg = Packet{Type: "cursor"}.Message()
	assert.Equal(t, Unknown{Type: "cursor"}, msg)
	assert.Equal(t, Kind("cursor"), msg.Kind())
}
