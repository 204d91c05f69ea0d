package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/coupon"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/DoyleJ11/duel-arena-backend/internal/hub"
	"github.com/DoyleJ11/duel-arena-backend/internal/session"
	"github.com/DoyleJ11/duel-arena-backend/internal/storage"
	"github.com/DoyleJ11/duel-arena-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Sessions interface {
	Issue(t coupon.Ticket) (string, error)
	Verify(token string) (*session.Claims, error)
}

type Deps struct {
	Hub       *hub.Hub
	Validator coupon.Validator
	Sessions  Sessions
	Repo      storage.Repository
	Rules     engine.Rules
	Logger    *zap.Logger
	WS        ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Post("/sessions", CreateSession(d))

	r.Route("/duels", func(r chi.Router) {
		r.Post("/", CreateDuel(d))
		r.Get("/{id}", GetDuel(d))
		r.Delete("/{id}", DeleteDuel(d))
	})

	r.Get("/results/{id}", GetResult(d))
	r.Get("/players/{playerID}/results", ListPlayerResults(d))

	r.Get("/ws", ws.Handler(d.Hub, d.Sessions, d.Logger, d.WS))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}
