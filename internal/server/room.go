package server

import (
	"sort"

	"github.com/jp-hoehmann/bun/internal/signaling"
)

// Room is a set of clients that see each other's streams.
type Room struct {
	Name    string
	clients map[*Client]bool
	streams map[string]*Stream
}

func newRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]bool),
		streams: make(map[string]*Stream),
	}
}

// Stream is a stream published by one client of the room.
type Stream struct {
	Info        signaling.StreamInfo
	owner       *Client
	subscribers map[*Client]bool

	// announced is set once the room has been told about the stream. Data
	// streams are announced after the owner's data channel is attached.
	announced bool
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

// streamInfos lists the room's announced streams sorted by id.
func (r *Room) streamInfos() []signaling.StreamInfo {
	infos := make([]signaling.StreamInfo, 0, len(r.streams))
	for _, s := range r.streams {
		if s.announced {
			infos = append(infos, s.Info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
