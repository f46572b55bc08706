package httputil

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RoundTripperFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// OverlayRoundTrip tags every outgoing request with the client's User-Agent and logs the result.
// The relay handshake is the main user, so a 101 is the expected status.
type OverlayRoundTrip struct {
	rt      http.RoundTripper
	logger  zerolog.Logger
	version string
}

func NewOverlayRoundTrip(rt http.RoundTripper, logger zerolog.Logger, userAgentVersion string) *OverlayRoundTrip {
	return &OverlayRoundTrip{
		rt:      rt,
		logger:  logger.With().Str("component", "http").Logger(),
		version: userAgentVersion,
	}
}

func (t *OverlayRoundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.rt

	if rt == nil {
		rt = http.DefaultTransport
	}

	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", fmt.Sprintf("chatoverlay/%s", t.version))

	now := time.Now()
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.logger.Error().Err(err).Str("url", req.URL.String()).Msg("error while making request")
		return nil, err
	}

	t.logger.Info().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("took", time.Since(now)).
		Int("status", resp.StatusCode).Msg("request made")

	return resp, nil
}
