package version

// Version is the current version of bun.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/jp-hoehmann/bun/internal/version.Version=v1.0.0'"
var Version = "dev"

// UserAgent is sent with token requests and the signaling handshake.
func UserAgent() string {
	return "bun/" + Version
}
