package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// UserHeader carries the already authenticated user id of a request
const UserHeader = "X-User-ID"

// Server holds dependencies for HTTP handlers.
type Server struct {
	matches interfaces.MatchService
	config  *config.Config
}

// NewServer creates the ledger API over a transactional match service
func NewServer(matches interfaces.MatchService, cfg *config.Config) *Server {
	return &Server{matches: matches, config: cfg}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", UserHeader},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.Post("/", s.createMatch)
			r.Get("/{matchId}", s.getMatch)
			r.Get("/{matchId}/public", s.getMatchPublic)
			r.Post("/{matchId}/join", s.joinMatch)
			r.Post("/{matchId}/leave", s.leaveMatch)
			r.Post("/{matchId}/cancel", s.cancelMatch)
			r.Post("/{matchId}/ready", s.setReady)
			r.Post("/{matchId}/result", s.declareResult)
			r.Post("/{matchId}/dispute", s.raiseDispute)
			r.Post("/{matchId}/lock", s.lockFunds)
		})

		r.Post("/admin/matches/{matchId}/resolve", s.adminResolve)
		r.Get("/admin/matches/{matchId}/ledger", s.getMatchLedger)
		r.Get("/wallet", s.getWallet)
		r.Get("/wallet/history", s.getWalletHistory)
	})

	return r
}

type actorKey struct{}

// requireUser resolves the actor from the identity header
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			respondResult(w, entities.Failed(entities.ReasonNotAuthenticated, "missing "+UserHeader))
			return
		}
		actor := lifecycle.Actor{UserID: userID, IsAdmin: s.config.IsAdmin(userID)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) lifecycle.Actor {
	actor, _ := r.Context().Value(actorKey{}).(lifecycle.Actor)
	return actor
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start),
			"requestID": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondResult writes an action result with the status its reason class maps to
func respondResult(w http.ResponseWriter, result entities.ActionResult) {
	respondJSON(w, statusForResult(result), result)
}

func statusForResult(result entities.ActionResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ReasonCode {
	case entities.ReasonNotAuthenticated:
		return http.StatusUnauthorized
	case entities.ReasonMatchNotFound:
		return http.StatusNotFound
	}
	switch result.ReasonCode.Class() {
	case entities.ClassAuth:
		return http.StatusForbidden
	case entities.ClassState:
		return http.StatusConflict
	case entities.ClassValidation, entities.ClassFunds:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondFailure writes an unexpected service error
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	log.WithFields(log.Fields{
		"path":      r.URL.Path,
		"requestID": middleware.GetReqID(r.Context()),
		"error":     err,
	}).Error("Request failed")
	respondJSON(w, http.StatusInternalServerError, entities.Failed(entities.ReasonUnknown, "internal error"))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptionalBody accepts an empty body as the zero value
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if err := decodeBody(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
