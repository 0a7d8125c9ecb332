package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jp-hoehmann/bun/internal/signaling"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame is one data frame of a recording file.
type Frame struct {
	At       time.Time `msgpack:"at"`
	StreamID string    `msgpack:"stream_id"`
	Msg      []byte    `msgpack:"msg"`
}

// Recorder creates recordings in a directory.
type Recorder struct {
	dir string
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Recording appends the data frames of one stream to <dir>/<id>.rec.
type Recording struct {
	ID       string
	StreamID string
	Path     string
	Started  time.Time

	mu     sync.Mutex
	f      *os.File
	enc    *msgpack.Encoder
	frames int
	closed bool
}

// Start opens a new recording of streamID.
func (r *Recorder) Start(streamID string) (*Recording, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(r.dir, id+".rec")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	return &Recording{
		ID:       id,
		StreamID: streamID,
		Path:     path,
		Started:  time.Now(),
		f:        f,
		enc:      msgpack.NewEncoder(f),
	}, nil
}

// Write appends env to the recording.
func (rec *Recording) Write(env signaling.Envelope) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.closed {
		return os.ErrClosed
	}
	if err := rec.enc.Encode(&Frame{At: time.Now().UTC(), StreamID: env.StreamID, Msg: env.Msg}); err != nil {
		return err
	}
	rec.frames++
	return nil
}

// Frames returns how many frames were written.
func (rec *Recording) Frames() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.frames
}

func (rec *Recording) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.closed {
		return nil
	}
	rec.closed = true
	return rec.f.Close()
}

// ReadFrames reads a recording file back.
func ReadFrames(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	var frames []Frame
	for {
		var fr Frame
		if err := dec.Decode(&fr); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, fmt.Errorf("read frame %d: %w", len(frames), err)
		}
		frames = append(frames, fr)
	}
}
