package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// iceServers builds the ICE configuration from the client config.
func iceServers(cfg *config.Config) []pion.ICEServer {
	var servers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		servers = append(servers, pion.ICEServer{URLs: stun})
	}

	if turn := cfg.GetTURNServers(); turn != nil {
		username, password := cfg.GetTURNCredentials()
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

func newPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

func createDataChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(signaling.DataChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return dc, nil
}

// createOffer sets a local offer and waits until ICE gathering is complete,
// so the returned description carries every candidate.
func createOffer(ctx context.Context, pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(pc)
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, fmt.Errorf("ice gathering: %w", ctx.Err())
	}

	return pc.LocalDescription(), nil
}

// negotiate connects the local peer connection to the server for the
// published stream and waits until the data channel is open.
func (r *Room) negotiate(ctx context.Context, s *Stream) error {
	pc, err := newPeerConnection(r.cfg)
	if err != nil {
		return err
	}

	dc, err := createDataChannel(pc)
	if err != nil {
		pc.Close()
		return err
	}

	opened := make(chan struct{})
	var once sync.Once
	dc.OnOpen(func() {
		once.Do(func() { close(opened) })
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		r.handleData(msg.Data)
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		r.logger.Debug("peer connection state changed", "state", state.String())
		if state == pion.PeerConnectionStateFailed {
			r.emit(StreamFailed{Stream: s, Reason: "peer connection failed"})
		}
	})

	offer, err := createOffer(ctx, pc)
	if err != nil {
		pc.Close()
		return err
	}

	msg, err := signaling.NewMessage(signaling.MessageTypeOffer, signaling.SignalPayload{
		Type: offer.Type.String(),
		SDP:  offer.SDP,
	})
	if err != nil {
		pc.Close()
		return err
	}
	msg.StreamID = s.ID()

	reply, err := r.handler.Request(ctx, msg)
	if err != nil {
		pc.Close()
		return fmt.Errorf("send offer: %w", err)
	}

	var answer signaling.SignalPayload
	if err := reply.Decode(&answer); err != nil {
		pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}

	select {
	case <-opened:
	case <-ctx.Done():
		pc.Close()
		return fmt.Errorf("open data channel: %w", ctx.Err())
	}

	r.mu.Lock()
	r.pc = pc
	r.dc = dc
	r.mu.Unlock()

	r.logger.Info("data channel open", "stream", s.ID())
	return nil
}
