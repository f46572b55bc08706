package main

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"os/signal"
	"syscall"

	"github.com/cli/browser"
	"github.com/julez-dev/chatoverlay/chatlog"
	"github.com/julez-dev/chatoverlay/relay"
	"github.com/julez-dev/chatoverlay/save"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func init() {
	browser.Stderr = io.Discard
	browser.Stdout = io.Discard
}

const defaultLogFileName = "chatoverlay.log"

func main() {
	app := &cli.Command{
		Name:        "chatoverlay",
		Description: "Chat overlay for the multi platform chat relay",
		Usage:       "Shows Twitch and YouTube chat from the local relay as a browser overlay",
		Authors: []any{
			&mail.Address{
				Name:    "julez-dev",
				Address: "julez-dev@pm.me",
			},
		},
		Commands: []*cli.Command{
			versionCMD,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "WebSocket URL of the chat relay",
				Value:   relay.DefaultURL,
				Sources: cli.EnvVars("CHATOVERLAY_RELAY_URL"),
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "The address the overlay page is served at",
				Value:   "localhost:8081",
				Sources: cli.EnvVars("CHATOVERLAY_ADDR"),
			},
			&cli.DurationFlag{
				Name:    "reconnect-delay",
				Usage:   "How long to wait before reconnecting to the relay",
				Value:   relay.DefaultReconnectDelay,
				Sources: cli.EnvVars("CHATOVERLAY_RECONNECT_DELAY"),
			},
			&cli.IntFlag{
				Name:    "history",
				Usage:   "Number of log entries replayed to a newly opened overlay page",
				Value:   chatlog.DefaultHistory,
				Sources: cli.EnvVars("CHATOVERLAY_HISTORY"),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File the application log is written to",
				Value: defaultLogFileName,
			},
			&cli.StringFlag{
				Name:  "config-dir",
				Usage: "Directory the preferences are stored in",
				Value: save.DefaultConfigDir(),
			},
			&cli.BoolFlag{
				Name:  "open-browser",
				Usage: "Open the overlay page in the default browser",
				Value: false,
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			if command.Int("history") <= 0 {
				return ctx, fmt.Errorf("history must be positive, got %d", command.Int("history"))
			}

			if command.Duration("reconnect-delay") <= 0 {
				return ctx, fmt.Errorf("reconnect-delay must be positive, got %s", command.Duration("reconnect-delay"))
			}

			return ctx, nil
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			f, err := setupLogFile(command.String("log-file"))
			if err != nil {
				return fmt.Errorf("error while opening log file: %w", err)
			}

			defer func() {
				_ = f.Close()
			}()

			logger := zerolog.New(f).With().Timestamp().Logger()
			log.Logger = logger

			return runOverlay(ctx, logger, overlayConfig{
				relayURL:       command.String("relay-url"),
				addr:           command.String("addr"),
				reconnectDelay: command.Duration("reconnect-delay"),
				history:        int(command.Int("history")),
				configDir:      command.String("config-dir"),
				openBrowser:    command.Bool("open-browser"),
			})
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Printf("error while running chatoverlay: %v\n", err)
		os.Exit(1)
	}
}

func setupLogFile(name string) (*os.File, error) {
	f, err := os.OpenFile(name, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	return f, nil
}
