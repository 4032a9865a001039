package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/questlab/player/internal/backend"
	"github.com/questlab/player/internal/player"
	"github.com/questlab/player/internal/questlab"
)

type CreateSessionRequest struct {
	GameID string `json:"gameId"`
}

func handleCreateSession(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.GameID = strings.TrimSpace(req.GameID)
		if req.GameID == "" {
			writeError(w, http.StatusBadRequest, "gameId is required")
			return
		}

		sess, err := sessions.Create(r.Context(), req.GameID, bearerToken(r))
		if err != nil {
			status, msg := createErrorStatus(err)
			writeError(w, status, msg)
			return
		}

		snap, err := sess.Snapshot()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		w.Header().Set("Location", "/api/sessions/"+sess.ID())
		writeJSON(w, http.StatusCreated, snap)
	}
}

func createErrorStatus(err error) (int, string) {
	var ce *questlab.ConfigError
	var ae *backend.AuthError
	switch {
	case errors.Is(err, errShuttingDown):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, "game not found"
	case errors.As(err, &ae):
		return http.StatusUnauthorized, ae.Message
	case errors.As(err, &ce), errors.Is(err, questlab.ErrUnknownGameType):
		return http.StatusUnprocessableEntity, err.Error()
	}
	var le *player.LoadError
	if errors.As(err, &le) {
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := sessionFrom(r).Snapshot()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleDeleteSession(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Remove(sessionFrom(r).ID())
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleFinish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Finish(); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, sess)
	}
}

func handleRestart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if err := sess.Restart(); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, sess)
	}
}

func writeSnapshot(w http.ResponseWriter, sess *player.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// sessionErrorStatus maps session errors onto HTTP statuses.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, player.ErrBusy),
		errors.Is(err, player.ErrNotPlaying),
		errors.Is(err, player.ErrNotFinished):
		return http.StatusConflict
	case errors.Is(err, player.ErrWrongInput), errors.Is(err, player.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrClosed):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := sessionErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}
