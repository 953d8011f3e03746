package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/btc-parachain/core/internal/dispatcher"
	"github.com/btc-parachain/core/internal/world"
)

// Server is the node's HTTP front door: read-only views over World plus a
// thin JSON encoding of the dispatcher's call surface, gated by
// Authenticator.
type Server struct {
	world *world.World
	disp  *dispatcher.Dispatcher
	auth  *Authenticator
	log   *slog.Logger
}

// NewServer wires a Server around w, disp, and auth. log may be nil.
func NewServer(w *world.World, disp *dispatcher.Dispatcher, auth *Authenticator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{world: w, disp: disp, auth: auth, log: log}
}

// Router builds the chi router exposing every route this server handles.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/relay/tip", s.handleRelayTip)
		v1.Get("/vault/{account}/{collateral}/{wrapped}", s.handleVault)
		v1.Get("/lending/markets/{currency}", s.handleMarket)
		v1.Get("/amm/pools/{id}", s.handlePool)

		v1.Group(func(signed chi.Router) {
			if s.auth != nil {
				signed.Use(s.auth.Middleware)
			}
			signed.Post("/vault/register", s.handleRegisterVault)
		})

		v1.Group(func(admin chi.Router) {
			if s.auth != nil {
				admin.Use(s.auth.Middleware)
			}
			admin.Post("/admin/vault/pair-params", s.handleSetPairParams)
		})
	})

	return r
}

// dispatchHTTP is the common path every mutating handler funnels through:
// resolve the request's Origin and subject from context, dispatch, and
// translate the result to an HTTP response.
func (s *Server) dispatchHTTP(w http.ResponseWriter, r *http.Request, method string, a dispatcher.Args) {
	origin := OriginFromContext(r.Context())
	if subject, ok := r.Context().Value(ContextKeySubject).(string); ok && subject != "" {
		if addr, err := decodeAccount(subject); err == nil {
			a.Caller = addr
		}
	}
	result, err := s.disp.Dispatch(r.Context(), origin, method, s.world.Height, s.world.Now, a)
	if err != nil {
		if err == dispatcher.ErrUnauthorized {
			writeError(w, http.StatusForbidden, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
