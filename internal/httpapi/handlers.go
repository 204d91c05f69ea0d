package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/arena"
	"github.com/DoyleJ11/duel-arena-backend/internal/coupon"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/DoyleJ11/duel-arena-backend/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBody = 4 << 10

type sessionRequest struct {
	Coupon   string `json:"coupon"`
	PlayerID string `json:"player_id"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"player_id"`
	Coupon   string `json:"coupon"`
}

// CreateSession exchanges a coupon and player ID for a session token.
func CreateSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}

		ticket, err := d.Validator.Check(r.Context(), req.Coupon, req.PlayerID)
		switch {
		case err == nil:
		case errors.Is(err, coupon.ErrInvalid):
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		case errors.Is(err, coupon.ErrUsed):
			writeError(w, http.StatusConflict, err.Error())
			return
		default:
			d.Logger.Warn("coupon check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, coupon.ErrUnavailable.Error())
			return
		}

		token, err := d.Sessions.Issue(ticket)
		if err != nil {
			d.Logger.Error("issue session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to issue session")
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Token: token, PlayerID: ticket.PlayerID, Coupon: ticket.Coupon})
	}
}

func CreateDuel(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seed, err := engine.NewSeed()
		if err != nil {
			d.Logger.Error("seed duel", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create duel")
			return
		}

		duel := engine.NewDuel(uuid.NewString(), d.Rules, engine.NewRand(seed))
		if d.Hub.Create(duel) == nil {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			ID string `json:"id"`
		}{ID: duel.ID})
	}
}

type duelResponse struct {
	Version    int         `json:"version"`
	NumClients int         `json:"num_clients"`
	State      engine.View `json:"state"`
}

func GetDuel(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := d.Hub.Get(chi.URLParam(r, "id"))
		if a == nil {
			writeError(w, http.StatusNotFound, "duel not found")
			return
		}

		reply := make(chan arena.View, 1)
		if !a.Send(arena.GetState{Reply: reply}) {
			writeError(w, http.StatusNotFound, "duel not found")
			return
		}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, duelResponse{Version: v.Version, NumClients: v.NumClients, State: v.State})
		case <-a.Done():
			writeError(w, http.StatusNotFound, "duel not found")
		case <-r.Context().Done():
		}
	}
}

func DeleteDuel(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Hub.Remove(chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "duel not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetResult(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := d.Repo.GetResult(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			d.Logger.Error("get result", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load result")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func ListPlayerResults(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "bad limit")
				return
			}
			limit = n
		}

		playerID := coupon.Sanitize(chi.URLParam(r, "playerID"))
		recs, err := d.Repo.ListByPlayer(r.Context(), playerID, limit)
		if err != nil {
			d.Logger.Error("list results", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load results")
			return
		}
		if recs == nil {
			recs = []storage.DuelRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}{Status: "ok", Time: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
