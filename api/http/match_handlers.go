package httpapi

import (
	"errors"
	"net/http"

	"gambler/arena/domain/entities"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type declareResultRequest struct {
	Choice entities.ResultChoice `json:"choice"`
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

type lockFundsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type resolveRequest struct {
	Action entities.AdminAction `json:"action"`
	Notes  *string              `json:"notes,omitempty"`
}

// invalidBody answers a malformed request body in the action result shape
func invalidBody(w http.ResponseWriter, err error) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   "invalid_body",
		"message": err.Error(),
	})
}

// action runs a match call and writes its result
func (s *Server) action(w http.ResponseWriter, r *http.Request, result entities.ActionResult, err error) {
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondResult(w, result)
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var params entities.CreateMatchParams
	if err := decodeBody(r, &params); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.CreateMatch(r.Context(), actorFrom(r), params)
	s.action(w, r, result, err)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.matches.ReadMatch(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"))
	switch {
	case errors.Is(err, entities.ErrAccessDenied):
		respondError(w, http.StatusForbidden, entities.ErrAccessDenied.Error(), "match is private")
	case errors.Is(err, entities.ErrMatchNotFound):
		respondError(w, http.StatusNotFound, string(entities.ReasonMatchNotFound), err.Error())
	case err != nil:
		respondFailure(w, r, err)
	default:
		respondJSON(w, http.StatusOK, snapshot)
	}
}

func (s *Server) getMatchPublic(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.matches.ReadMatchPublic(r.Context(), chi.URLParam(r, "matchId"))
	switch {
	case errors.Is(err, entities.ErrMatchNotFound):
		respondError(w, http.StatusNotFound, string(entities.ReasonMatchNotFound), err.Error())
	case err != nil:
		respondFailure(w, r, err)
	default:
		respondJSON(w, http.StatusOK, snapshot)
	}
}

func (s *Server) joinMatch(w http.ResponseWriter, r *http.Request) {
	var opts entities.JoinOptions
	if err := decodeOptionalBody(r, &opts); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.JoinMatch(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"), opts)
	s.action(w, r, result, err)
}

func (s *Server) leaveMatch(w http.ResponseWriter, r *http.Request) {
	result, err := s.matches.LeaveMatch(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"))
	s.action(w, r, result, err)
}

func (s *Server) cancelMatch(w http.ResponseWriter, r *http.Request) {
	result, err := s.matches.CancelMatch(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"))
	s.action(w, r, result, err)
}

func (s *Server) setReady(w http.ResponseWriter, r *http.Request) {
	result, err := s.matches.SetReady(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"))
	s.action(w, r, result, err)
}

func (s *Server) declareResult(w http.ResponseWriter, r *http.Request) {
	var req declareResultRequest
	if err := decodeBody(r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.DeclareResult(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"), req.Choice)
	s.action(w, r, result, err)
}

func (s *Server) raiseDispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.RaiseDispute(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"), req.Reason)
	s.action(w, r, result, err)
}

func (s *Server) lockFunds(w http.ResponseWriter, r *http.Request) {
	var req lockFundsRequest
	if err := decodeBody(r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.LockFunds(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"), req.Amount)
	s.action(w, r, result, err)
}

func (s *Server) adminResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		invalidBody(w, err)
		return
	}
	result, err := s.matches.AdminResolve(r.Context(), actorFrom(r), chi.URLParam(r, "matchId"), req.Action, req.Notes)
	s.action(w, r, result, err)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.matches.GetWallet(r.Context(), actorFrom(r))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}
