package config

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values (production)
const (
	DefaultServerURL          = "https://tanura.hhmn.de"
	DefaultRoom               = "xkcd"
	DefaultRole               = "presenter"
	DefaultRoomType           = "erizo"
	DefaultMediaConfiguration = "default"
	DefaultSTUN               = "stun:stun.l.google.com:19302"
	DefaultConnectTimeout     = 30 * time.Second

	// DefaultMaxVideoBW is the publish bandwidth cap in kbit/s.
	DefaultMaxVideoBW = 300
)

// Config holds the client configuration.
type Config struct {
	// ServerURL is the base URL of the room server.
	ServerURL string

	// TokenURL and WebSocketURL are derived from ServerURL
	TokenURL     string
	WebSocketURL string

	Room               string
	Username           string
	Role               string
	RoomType           string
	MediaConfiguration string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	ConnectTimeout time.Duration
	MaxVideoBW     int
	Headless       bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL          string
	Room               string
	Username           string
	Role               string
	RoomType           string
	MediaConfiguration string
	STUNServer         string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	ConnectTimeout     time.Duration
	Headless           bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables, including a .env file in the working directory
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	loadDotEnv()

	serverURL := pick(opts.ServerURL, "BUN_SERVER", DefaultServerURL)
	tokenURL, wsURL, err := deriveURLs(serverURL)
	if err != nil {
		return nil, err
	}

	username := pick(opts.Username, "BUN_USERNAME", "")
	if username == "" {
		username = fmt.Sprintf("user %d", rand.IntN(100))
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
		if v := os.Getenv("BUN_CONNECT_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid BUN_CONNECT_TIMEOUT: %w", err)
			}
			timeout = d
		}
	}

	return &Config{
		ServerURL:          serverURL,
		TokenURL:           tokenURL,
		WebSocketURL:       wsURL,
		Room:               pick(opts.Room, "BUN_ROOM", DefaultRoom),
		Username:           username,
		Role:               pick(opts.Role, "BUN_ROLE", DefaultRole),
		RoomType:           pick(opts.RoomType, "BUN_ROOM_TYPE", DefaultRoomType),
		MediaConfiguration: pick(opts.MediaConfiguration, "BUN_MEDIA_CONFIGURATION", DefaultMediaConfiguration),
		STUNServer:         pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:         pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:           pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:           pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ConnectTimeout:     timeout,
		MaxVideoBW:         DefaultMaxVideoBW,
		Headless:           opts.Headless || os.Getenv("BUN_HEADLESS") == "1",
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// deriveURLs builds the token endpoint base and the websocket URL from the
// server base URL.
func deriveURLs(serverURL string) (string, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}

	base := strings.TrimSuffix(u.Path, "/")

	ws := *u
	switch u.Scheme {
	case "https":
		ws.Scheme = "wss"
	case "http":
		ws.Scheme = "ws"
	default:
		return "", "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", serverURL, u.Scheme)
	}
	ws.Path = base + "/ws"

	token := *u
	token.Path = base + "/nuve"

	return token.String(), ws.String(), nil
}

func loadDotEnv() {
	// A missing .env is the normal case.
	_ = godotenv.Load(".env")
}

// pick returns the flag value, then the environment value, then the default.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v
	}
	return def
}
