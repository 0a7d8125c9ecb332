package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server defaults
const (
	DefaultAddr          = ":8080"
	DefaultJWTSecret     = "bun-development-secret"
	DefaultTokenTTL      = 12 * time.Hour
	DefaultRecordingsDir = "recordings"
	DefaultRateLimit     = 50
	DefaultRateBurst     = 100
)

// ServerConfig holds the room server configuration.
type ServerConfig struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	RecordingsDir string
	DefaultRoom   string
	STUNServer    string

	// RateLimit is the number of signaling messages per second a single
	// connection may send, with RateBurst as the bucket size.
	RateLimit float64
	RateBurst int
}

// ServerOptions carries flag overrides for LoadServer.
type ServerOptions struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	RecordingsDir string
	DefaultRoom   string
	STUNServer    string
}

// LoadServer reads the server configuration: flags, then environment, then
// defaults.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	loadDotEnv()

	ttl := opts.TokenTTL
	if ttl == 0 {
		ttl = DefaultTokenTTL
		if v := os.Getenv("TOKEN_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
			}
			ttl = d
		}
	}

	rateLimit := float64(DefaultRateLimit)
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		rateLimit = f
	}

	rateBurst := DefaultRateBurst
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_BURST: %w", err)
		}
		rateBurst = n
	}

	return &ServerConfig{
		Addr:          pick(opts.Addr, "ADDR", DefaultAddr),
		JWTSecret:     pick(opts.JWTSecret, "JWT_SECRET", DefaultJWTSecret),
		TokenTTL:      ttl,
		RecordingsDir: pick(opts.RecordingsDir, "RECORDINGS_DIR", DefaultRecordingsDir),
		DefaultRoom:   pick(opts.DefaultRoom, "DEFAULT_ROOM", DefaultRoom),
		STUNServer:    pick(opts.STUNServer, "STUN_SERVER", ""),
		RateLimit:     rateLimit,
		RateBurst:     rateBurst,
	}, nil
}
