// Package media describes what a local stream captures and acquires it,
// falling back to a reduced request when the first one is denied.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAccessDenied is returned by an Acquirer that refuses a request.
var ErrAccessDenied = errors.New("media access denied")

// Options selects the capabilities of a local stream.
type Options struct {
	Audio  bool
	Video  bool
	Data   bool
	Screen bool

	// VideoSize is min width, min height, max width, max height.
	VideoSize [4]int
}

var (
	// Default asks for everything a participant normally publishes.
	Default = Options{
		Audio:     true,
		Video:     true,
		Data:      true,
		VideoSize: [4]int{320, 240, 640, 480},
	}

	// Fallback is used when Default is denied. Only the data channel is kept
	// so the whiteboard keeps working.
	Fallback = Options{
		Data: true,
	}
)

// Acquirer grants or denies access to capture devices.
type Acquirer interface {
	Acquire(ctx context.Context, opts Options) error
}

// Acquire tries primary and, if access is denied, retries exactly once with
// fallback. It returns the options that were granted.
func Acquire(ctx context.Context, a Acquirer, primary, fallback Options, logger *slog.Logger) (Options, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := a.Acquire(ctx, primary)
	if err == nil {
		return primary, nil
	}
	if !errors.Is(err, ErrAccessDenied) {
		return Options{}, err
	}

	logger.Info("media access denied, retrying with fallback options", "err", err)

	if err := a.Acquire(ctx, fallback); err != nil {
		logger.Error("stream creation failed", "err", err)
		return Options{}, err
	}
	return fallback, nil
}

// Headless is the Acquirer of a terminal session. There are no cameras,
// microphones or screens to capture, so any request for them is denied.
type Headless struct{}

func (Headless) Acquire(ctx context.Context, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Audio || opts.Video || opts.Screen {
		return fmt.Errorf("%w: no capture devices", ErrAccessDenied)
	}
	return nil
}
