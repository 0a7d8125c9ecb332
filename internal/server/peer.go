package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jp-hoehmann/bun/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// negotiateFunc answers a client's offer and returns the answer SDP together
// with the peer connection to close when the client leaves.
type negotiateFunc func(ctx context.Context, clientID, offer string) (string, io.Closer, error)

// negotiation is the result of a negotiateFunc, handed back to the hub.
type negotiation struct {
	client *Client
	req    *signaling.Message
	answer string
	peer   io.Closer
	err    error
}

// pionNegotiator creates one peer connection per client. The client's data
// channel becomes its sink in rt and every frame it sends is forwarded by rt.
func pionNegotiator(rt *router, iceServers []pion.ICEServer, logger *slog.Logger) negotiateFunc {
	return func(ctx context.Context, clientID, offer string) (string, io.Closer, error) {
		pc, err := pion.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
		if err != nil {
			return "", nil, fmt.Errorf("create peer connection: %w", err)
		}

		log := logger.With("client", clientID)

		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != signaling.DataChannelLabel {
				log.Warn("ignoring data channel", "label", dc.Label())
				return
			}
			dc.OnOpen(func() {
				log.Debug("data channel open")
				rt.attach(clientID, dc)
			})
			dc.OnClose(func() {
				log.Debug("data channel closed")
				rt.detach(clientID, dc)
			})
			dc.OnMessage(func(msg pion.DataChannelMessage) {
				rt.forward(clientID, msg.Data)
			})
		})

		pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
			log.Debug("peer connection state changed", "state", state.String())
		})

		if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer}); err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("set remote description: %w", err)
		}

		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("create answer: %w", err)
		}

		gathered := pion.GatheringCompletePromise(pc)
		if err := pc.SetLocalDescription(answer); err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("set local description: %w", err)
		}

		select {
		case <-gathered:
		case <-ctx.Done():
			pc.Close()
			return "", nil, fmt.Errorf("ice gathering: %w", ctx.Err())
		}

		return pc.LocalDescription().SDP, pc, nil
	}
}
