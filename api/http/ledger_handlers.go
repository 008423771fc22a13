package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gambler/arena/domain/entities"

	"github.com/go-chi/chi/v5"
)

const maxListLimit = 100

// listLimit reads the limit query parameter, clamped to maxListLimit
func listLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// listMatches serves the lobby, GET /v1/matches?status=open,ready_check&limit=20
func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := listLimit(r, 20)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	var statuses []entities.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			status := entities.MatchStatus(strings.TrimSpace(name))
			if !status.IsValid() {
				respondError(w, http.StatusBadRequest, "invalid_query", "unknown status "+string(status))
				return
			}
			statuses = append(statuses, status)
		}
	}

	matches, err := s.matches.ListMatches(r.Context(), actorFrom(r), statuses, limit)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if matches == nil {
		matches = []*entities.Match{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

func (s *Server) getWalletHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := listLimit(r, 50)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	entries, err := s.matches.GetWalletHistory(r.Context(), actorFrom(r), limit)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondEntries(w, entries)
}

func (s *Server) getMatchLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.matches.GetMatchLedger(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"))
	switch {
	case errors.Is(err, entities.ErrAccessDenied):
		respondError(w, http.StatusForbidden, entities.ErrAccessDenied.Error(), "admin only")
	case errors.Is(err, entities.ErrMatchNotFound):
		respondError(w, http.StatusNotFound, string(entities.ReasonMatchNotFound), err.Error())
	case err != nil:
		respondFailure(w, r, err)
	default:
		respondEntries(w, entries)
	}
}

func respondEntries(w http.ResponseWriter, entries []*entities.LedgerEntry) {
	if entries == nil {
		entries = []*entities.LedgerEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
