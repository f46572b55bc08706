package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julez-dev/chatoverlay/chatlog"
	"github.com/julez-dev/chatoverlay/input"
	"github.com/julez-dev/chatoverlay/relay"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	HostAndPort string
}

type Relay interface {
	Connect()
	State() relay.State
}

type InputController interface {
	Submit(ctx context.Context, field input.Field) bool
	RequestStreamSearch(ctx context.Context) bool
}

type Preferences interface {
	SaveFontSize(size int) error
}

type API struct {
	logger zerolog.Logger
	conf   Config

	log   *chatlog.Log
	relay Relay
	input InputController
	prefs Preferences
}

func New(logger zerolog.Logger, config Config, log *chatlog.Log, relay Relay, input InputController, prefs Preferences) *API {
	return &API{
		logger: logger.With().Str("component", "server").Logger(),
		conf:   config,
		log:    log,
		relay:  relay,
		input:  input,
		prefs:  prefs,
	}
}

func (a *API) Handler() http.Handler {
	return router(a.logger, a)
}

func (a *API) Launch(ctx context.Context) error {
	// no read/write timeouts, the live stream connections are long lived
	httpSrv := &http.Server{
		Addr:              a.conf.HostAndPort,
		ReadHeaderTimeout: time.Second * 15,
		IdleTimeout:       time.Second * 60,
		MaxHeaderBytes:    8 * 1024,
		Handler:           a.Handler(),
	}

	httpSrv.RegisterOnShutdown(func() {
		a.logger.Info().Msg("http shutdown started")
	})

	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		a.logger.Info().
			Str("addr", httpSrv.Addr).
			Msg("starting overlay http server")

		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	wg.Go(func() error {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
		defer cancel()

		if err := httpSrv.Shutdown(ctx); err != nil {
			return err
		}

		a.logger.Info().Msg("shutdown done")

		return nil
	})

	if err := wg.Wait(); err != nil {
		return err
	}

	return nil
}

func (a *API) getLoggerFrom(ctx context.Context) zerolog.Logger {
	if logger := ctx.Value(loggerKey); logger != nil {
		typed, ok := logger.(zerolog.Logger)

		if ok {
			return typed
		}
	}

	return a.logger
}
