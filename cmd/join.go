package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jp-hoehmann/bun/internal/config"
	"github.com/jp-hoehmann/bun/internal/logging"
	"github.com/jp-hoehmann/bun/internal/media"
	"github.com/jp-hoehmann/bun/internal/room"
	"github.com/jp-hoehmann/bun/internal/session"
	"github.com/jp-hoehmann/bun/internal/theme"
	"github.com/jp-hoehmann/bun/internal/token"
	"github.com/jp-hoehmann/bun/internal/ui"
	"github.com/spf13/cobra"
)

var (
	joinOpts    config.Options
	flagLogFile string
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a room and share its whiteboard",
	Long: `Join a conferencing room. A token is requested from the server, the local
stream is published and every other stream in the room is subscribed to.

Examples:
  bun join
  bun join --room standup --name ada
  bun join --server http://localhost:8080 --headless`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context())
	},
}

func joinRoom(ctx context.Context) error {
	cfg, err := config.Load(joinOpts)
	if err != nil {
		return session.NewError("load config", err)
	}

	scheme, store := loadScheme()

	sess := session.New(cfg, session.Deps{
		Tokens:   token.NewClient(cfg.TokenURL),
		Acquirer: media.Headless{},
		NewRoom: func(tok string) session.RoomClient {
			return room.New(tok, cfg, slog.Default())
		},
		Logger: slog.Default(),
	})

	sp := ui.NewConnectionSpinner(fmt.Sprintf("Joining %s...", cfg.Room))
	sp.Start()
	if err := sess.Join(ctx); err != nil {
		sp.Stop()
		return err
	}
	sp.Success(fmt.Sprintf("Joined %s as %s", cfg.Room, cfg.Username))

	if cfg.Headless {
		return ignoreCancel(sess.Run(ctx))
	}

	closer, err := logging.InitFile(flagLogFile, slog.LevelInfo)
	if err != nil {
		sess.Leave()
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- sess.Run(ctx)
	}()

	uiErr := ui.RunRoom(ctx, sess, ui.RoomOptions{
		Room:   cfg.Room,
		Scheme: scheme,
		Store:  store,
	})
	cancel()

	return errors.Join(uiErr, ignoreCancel(<-runErr))
}

// loadScheme returns the persisted colour scheme. A missing or unreadable
// store falls back to the default scheme.
func loadScheme() (theme.Scheme, theme.Store) {
	path, err := theme.DefaultPath()
	if err != nil {
		slog.Warn("theme store unavailable", "err", err)
		return theme.Scheme{}, nil
	}
	store := theme.NewFileStore(path)

	scheme, ok, err := theme.Load(store)
	if err != nil {
		slog.Warn("failed to load colour scheme", "err", err)
	}
	if !ok {
		return theme.Scheme{}, store
	}
	return scheme, store
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(joinCmd)

	f := joinCmd.Flags()
	f.StringVarP(&joinOpts.ServerURL, "server", "S", "", "Room server base URL")
	f.StringVarP(&joinOpts.Room, "room", "r", "", "Room name")
	f.StringVarP(&joinOpts.Username, "name", "n", "", "Display name")
	f.StringVar(&joinOpts.Role, "role", "", "Role requested in the token")
	f.StringVar(&joinOpts.RoomType, "type", "", "Room type requested in the token")
	f.StringVar(&joinOpts.MediaConfiguration, "media-config", "", "Media configuration requested in the token")
	f.StringVarP(&joinOpts.STUNServer, "stun", "s", "", "Custom STUN server")
	f.StringVarP(&joinOpts.TURNServer, "turn", "t", "", "Custom TURN server")
	f.StringVarP(&joinOpts.TURNUser, "turn-user", "u", "", "TURN username")
	f.StringVarP(&joinOpts.TURNPass, "turn-pass", "p", "", "TURN password")
	f.DurationVar(&joinOpts.ConnectTimeout, "timeout", 0, "Connect timeout")
	f.BoolVar(&joinOpts.Headless, "headless", false, "Run without the terminal UI")
	f.StringVar(&flagLogFile, "log-file", os.Getenv("BUN_LOG_FILE"), "Write logs here while the terminal UI is shown")
}
