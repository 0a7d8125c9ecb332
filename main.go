package main

import (
	"log/slog"

	"github.com/jp-hoehmann/bun/cmd"
	"github.com/jp-hoehmann/bun/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	cmd.Execute()
}
