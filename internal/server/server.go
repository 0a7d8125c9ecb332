// Package server is the room server: it issues room tokens, runs websocket
// signaling, relays data channel frames between published and subscribed
// streams and writes recordings.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/token"
	pion "github.com/pion/webrtc/v4"
)

// Server ties the hub to an HTTP listener.
type Server struct {
	cfg     *config.ServerConfig
	hub     *Hub
	handler http.Handler
	logger  *slog.Logger
}

func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	var ice []pion.ICEServer
	if cfg.STUNServer != "" {
		ice = append(ice, pion.ICEServer{URLs: []string{cfg.STUNServer}})
	}

	hub := NewHub(HubOptions{
		Issuer:     token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Recorder:   NewRecorder(cfg.RecordingsDir),
		Metrics:    NewMetrics(),
		ICEServers: ice,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		Logger:     logger,
	})

	return &Server{
		cfg:     cfg,
		hub:     hub,
		handler: NewRouter(hub, cfg.DefaultRoom, logger),
		logger:  logger,
	}
}

// Handler returns the HTTP handler of the server. The hub must be running
// for websocket connections to be served.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting room server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down room server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; stopping
	// the hub closes them.
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
