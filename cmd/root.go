package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jp-hoehmann/bun/internal/ui"
	"github.com/jp-hoehmann/bun/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bun",
	Short: "Video conferencing rooms with a shared whiteboard",
	Long: `Bun joins conferencing rooms from the terminal and keeps a shared whiteboard
in sync with everyone else in the room. It also ships the room server that
issues tokens, relays signaling and forwards data channel traffic.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
