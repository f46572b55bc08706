package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cli/browser"
	"github.com/julez-dev/chatoverlay/badge"
	"github.com/julez-dev/chatoverlay/chatlog"
	"github.com/julez-dev/chatoverlay/emote"
	"github.com/julez-dev/chatoverlay/httputil"
	"github.com/julez-dev/chatoverlay/input"
	"github.com/julez-dev/chatoverlay/relay"
	"github.com/julez-dev/chatoverlay/save"
	"github.com/julez-dev/chatoverlay/server"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

type overlayConfig struct {
	relayURL       string
	addr           string
	reconnectDelay time.Duration
	history        int
	configDir      string
	openBrowser    bool
}

// runOverlay wires the relay connection, the chat log and the overlay page server together
// and blocks until ctx is cancelled or one of them fails.
func runOverlay(ctx context.Context, logger zerolog.Logger, conf overlayConfig) error {
	prefs := save.NewPreferenceStore(logger, afero.NewOsFs(), conf.configDir)

	chatLog := chatlog.NewLog(conf.history, prefs.LoadFontSize())
	badges := badge.NewCache()
	renderer := chatlog.NewRenderer(logger, chatLog, emote.NewReplacer(emote.TwitchURLTemplate), badge.NewReplacer(badges))

	httpClient := &http.Client{
		Transport: httputil.NewOverlayRoundTrip(http.DefaultTransport, logger, Version),
	}

	conn := relay.NewConn(logger,
		relay.Config{
			URL:            conf.relayURL,
			ReconnectDelay: conf.reconnectDelay,
		},
		renderer,
		badges,
		relay.WithHTTPClient(httpClient),
		relay.WithStateListener(chatLog.SetConnectionState),
	)

	controller := input.NewController(logger, conn, renderer)

	api := server.New(logger, server.Config{HostAndPort: conf.addr}, chatLog, conn, controller, prefs)

	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return conn.Run(ctx)
	})

	wg.Go(func() error {
		if err := api.Launch(ctx); err != nil {
			return fmt.Errorf("overlay server failed: %w", err)
		}
		return nil
	})

	if conf.openBrowser {
		url := "http://" + conf.addr
		if err := browser.OpenURL(url); err != nil {
			logger.Warn().Err(err).Str("url", url).Msg("could not open browser")
		}
	}

	logger.Info().Str("addr", conf.addr).Str("relay", conf.relayURL).Msg("overlay running")

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
