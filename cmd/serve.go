package cmd

import (
	"log/slog"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/logging"
	"github.com/jp-hoehmann/bun/internal/server"
	"github.com/spf13/cobra"
)

var serveOpts config.ServerOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room server",
	Long: `Run the room server. It issues room tokens, relays signaling over
WebSocket, forwards data channel messages between streams and records
them on request.

Examples:
  bun serve
  bun serve --addr :9000 --recordings /var/lib/bun`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(slog.LevelInfo)

		cfg, err := config.LoadServer(serveOpts)
		if err != nil {
			return err
		}
		slog.Debug("room server configuration", "recordings", cfg.RecordingsDir, "defaultRoom", cfg.DefaultRoom)
		return server.New(cfg, slog.Default()).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.Addr, "addr", "a", "", "Listen address")
	f.StringVar(&serveOpts.JWTSecret, "secret", "", "Token signing secret")
	f.DurationVar(&serveOpts.TokenTTL, "token-ttl", 0, "Token lifetime")
	f.StringVar(&serveOpts.RecordingsDir, "recordings", "", "Directory for recordings")
	f.StringVar(&serveOpts.DefaultRoom, "default-room", "", "Room used when a token request names none")
	f.StringVarP(&serveOpts.STUNServer, "stun", "s", "", "STUN server offered to peers")
}
