package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/arena"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/DoyleJ11/duel-arena-backend/internal/hub"
	"github.com/DoyleJ11/duel-arena-backend/internal/session"
	"github.com/DoyleJ11/duel-arena-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

type Options struct {
	// OriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
	OriginPatterns []string
	// IdleTimeout closes connections that send nothing for this long.
	IdleTimeout time.Duration
}

func Handler(h *hub.Hub, sessions TokenVerifier, log *zap.Logger, opts Options) http.HandlerFunc {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}

	return func(w http.ResponseWriter, r *http.Request) {
		duelID := r.URL.Query().Get("duel")
		if duelID == "" {
			http.Error(w, "missing duel", http.StatusBadRequest)
			return
		}

		a := h.Get(duelID)
		if a == nil {
			http.Error(w, "duel not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan arena.Snapshot, 32)
		clientID := uuid.NewString()
		clog := log.With(zap.String("duel_id", duelID), zap.String("client_id", clientID))

		if !a.Send(arena.Join{ClientID: clientID, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "duel closed")
			return
		}
		defer a.Send(arena.Leave{ClientID: clientID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// arena is gone or dropped us as too slow
						conn.Close(websocket.StatusGoingAway, "stream ended")
						return
					}
					msg := types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.State}
					if err := writeJSON(writeCtx, conn, msg); err != nil {
						clog.Debug("snapshot write failed", zap.Error(err))
					}
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.IdleTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, types.ErrorMessage("bad json"))
				continue
			}

			msg, ok := toArenaMessage(cm, sessions)
			if !ok {
				_ = writeJSON(r.Context(), conn, types.ErrorMessage("unknown type"))
				continue
			}
			msg.ClientID = clientID
			msg.Reply = make(chan error, 1)

			if !a.Send(msg) {
				return
			}
			select {
			case err := <-msg.Reply:
				if err != nil {
					_ = writeJSON(r.Context(), conn, types.ErrorMessage(err.Error()))
				}
			case <-a.Done():
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// toArenaMessage maps a client message onto an engine command. A start
// command whose token fails verification still reaches the engine, which
// rejects it as unauthorized.
func toArenaMessage(m types.ClientMessage, sessions TokenVerifier) (arena.FromClient, bool) {
	switch m.Type {
	case "SelectSide":
		side, ok := engine.ParseSide(m.Side)
		if !ok {
			return arena.FromClient{}, false
		}
		return arena.FromClient{Cmd: engine.Command{Type: engine.CmdSelectSide, Side: side}}, true

	case "StartDuel":
		claims, err := sessions.Verify(m.Token)
		auth := engine.Authorization{Authorized: err == nil, Token: m.Token}
		if err != nil {
			claims = nil
		}
		return arena.FromClient{Cmd: engine.Command{Type: engine.CmdStartDuel, Auth: auth}, Claims: claims}, true

	default:
		return arena.FromClient{}, false
	}
}
