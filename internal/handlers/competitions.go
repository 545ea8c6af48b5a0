package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/services"
)

func (h *Handlers) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.CreateCompetitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Competitions.Create(r.Context(), chi.URLParam(r, "id"), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, c)
}

func (h *Handlers) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	list, err := h.Competitions.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.ElementCompetition{}
	}
	respondOK(w, CompetitionListResponse{Competitions: list})
}

func (h *Handlers) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	c, err := h.Competitions.Get(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, c)
}

func (h *Handlers) handleCompetitionResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Competitions.Results(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, results)
}

// competitionAction adapts a staff-only status change into a handler
func (h *Handlers) competitionAction(fn func(ctx context.Context, id, userID string) (*models.ElementCompetition, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c, err := fn(r.Context(), chi.URLParam(r, "cid"), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondOK(w, c)
	}
}

func (h *Handlers) handleOpenCompetition(w http.ResponseWriter, r *http.Request) {
	h.competitionAction(h.Competitions.Open)(w, r)
}

func (h *Handlers) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	h.competitionAction(h.Competitions.StartVoting)(w, r)
}

func (h *Handlers) handleCancelCompetition(w http.ResponseWriter, r *http.Request) {
	h.competitionAction(h.Competitions.Cancel)(w, r)
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.SubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Competitions.Submit(r.Context(), chi.URLParam(r, "cid"), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, result)
}

func (h *Handlers) handleVoteSubmission(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	index, err := parseIntParam(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.Competitions.Vote(r.Context(), chi.URLParam(r, "cid"), index, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, sub)
}

func (h *Handlers) handleCloseCompetition(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Competitions.Close(r.Context(), chi.URLParam(r, "cid"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}
