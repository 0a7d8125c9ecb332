package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jp-hoehmann/bun/internal/signaling"
	"github.com/jp-hoehmann/bun/internal/token"
	"golang.org/x/time/rate"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Terminal clients send no Origin; browsers on other hosts are allowed
	// too since every connection must present a token first.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter registers the HTTP routes of the room server.
func NewRouter(hub *Hub, defaultRoom string, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(hub.metrics.Middleware)

	createToken := CreateToken(hub.issuer, hub.metrics, defaultRoom, logger)
	r.HandleFunc("/nuve/createToken/", createToken).Methods(http.MethodPost)
	r.HandleFunc("/nuve/createToken", createToken).Methods(http.MethodPost)
	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	r.Handle("/metrics", hub.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", ServeWs(hub))

	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	r.NotFoundHandler = http.HandlerFunc(methodNotFoundHandler)
	return r
}

// Health Check endpoint
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Room server is healthy."))
}

// CreateToken issues a room token for a JSON token request. The response body
// is the bare token.
func CreateToken(issuer *token.Issuer, metrics *Metrics, defaultRoom string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data token.RoomData
		if err := json.NewDecoder(io.LimitReader(r.Body, 16*1024)).Decode(&data); err != nil {
			http.Error(w, "invalid token request", http.StatusBadRequest)
			return
		}
		if data.Room == "" {
			data.Room = defaultRoom
		}

		tok, err := issuer.Issue(data)
		if err != nil {
			logger.Warn("token request rejected", "err", err)
			http.Error(w, "invalid token request", http.StatusBadRequest)
			return
		}
		metrics.TokensIssued.Inc()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, tok)
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
// It takes the hub as a dependency.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("failed to upgrade connection", "err", err)
			return
		}

		id := uuid.NewString()
		client := &Client{
			hub:     hub,
			conn:    conn,
			id:      id,
			send:    make(chan *signaling.Message, 256),
			limiter: rate.NewLimiter(hub.rateLimit, hub.rateBurst),
			logger:  hub.logger.With("client", id),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		// Start the client's read and write pumps in separate goroutines
		// These methods will handle the client's lifecycle
		go client.WritePump()
		go client.ReadPump()
	}
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
}

func methodNotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "404 Not Found", http.StatusNotFound)
}
