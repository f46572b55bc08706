package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/julez-dev/chatoverlay/chatlog"
	"github.com/julez-dev/chatoverlay/input"
)

type indexPage struct {
	FontSize int
}

type snapshotMessage struct {
	Type string `json:"type"`
	chatlog.Snapshot
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse carries the value the input field has to show after the submit.
type chatResponse struct {
	Message string `json:"message"`
	Sent    bool   `json:"sent"`
}

type streamStartResponse struct {
	Sent bool `json:"sent"`
}

type fontSizeRequest struct {
	Size *int `json:"size"`
}

func (a *API) handleGetIndex() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := a.getLoggerFrom(r.Context())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexTemplate.Execute(w, indexPage{FontSize: a.log.Snapshot().FontSize}); err != nil {
			logger.Err(err).Msg("could not render index page")
		}
	})
}

func (a *API) handleGetHealth() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "UP")
	})
}

// handleGetStream streams the log to one overlay page. The page first receives a snapshot,
// then every update. A page that can't keep up is disconnected and has to reload the snapshot.
func (a *API) handleGetStream() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := a.getLoggerFrom(r.Context())

		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Err(err).Msg("could not accept stream connection")
			return
		}
		defer ws.CloseNow()

		snapshot, updates, cancel := a.log.Subscribe()
		defer cancel()

		// the page never writes, CloseRead handles control frames and cancels ctx once the page leaves
		ctx := ws.CloseRead(r.Context())

		if err := wsjson.Write(ctx, ws, snapshotMessage{Type: "snapshot", Snapshot: snapshot}); err != nil {
			logger.Debug().Err(err).Msg("could not write snapshot")
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.Warn().Msg("stream subscriber fell behind, closing")
					_ = ws.Close(websocket.StatusTryAgainLater, "too slow")
					return
				}

				if err := wsjson.Write(ctx, ws, update); err != nil {
					logger.Debug().Err(err).Msg("could not write update")
					return
				}
			}
		}
	})
}

func (a *API) handlePostChat() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := a.getLoggerFrom(r.Context())

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug().Err(err).Msg("invalid chat request")
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		field := input.NewTextField(req.Message)
		sent := a.input.Submit(r.Context(), field)

		writeJSON(w, http.StatusOK, chatResponse{Message: field.Value(), Sent: sent})
	})
}

func (a *API) handlePostConnect() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.relay.Connect()
		w.WriteHeader(http.StatusAccepted)
	})
}

func (a *API) handlePostStreamStart() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent := a.input.RequestStreamSearch(r.Context())
		writeJSON(w, http.StatusOK, streamStartResponse{Sent: sent})
	})
}

func (a *API) handlePutFontSize() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := a.getLoggerFrom(r.Context())

		var req fontSizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Size == nil {
			writeError(w, http.StatusBadRequest, "size must be an integer")
			return
		}

		a.log.SetFontSize(*req.Size)

		if err := a.prefs.SaveFontSize(*req.Size); err != nil {
			logger.Err(err).Int("size", *req.Size).Msg("could not persist font size")
			writeError(w, http.StatusInternalServerError, "could not persist font size")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
