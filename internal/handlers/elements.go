package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/services"
)

func (h *Handlers) handleSeedOptions(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SeedOptionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.Options) == 0 {
		h.fail(w, r, BadRequest("At least one option is required"))
		return
	}
	options, err := h.Elements.SeedOptions(r.Context(), chi.URLParam(r, "id"), userID, req.Options)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, OptionListResponse{Options: options})
}

func (h *Handlers) handleSubmitOption(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in services.OptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	option, err := h.Elements.SubmitOption(r.Context(), chi.URLParam(r, "id"), userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, option)
}

func (h *Handlers) handleListOptions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	songID := r.URL.Query().Get("songId")

	grouped := false
	if raw := r.URL.Query().Get("grouped"); raw != "" {
		var err error
		if grouped, err = strconv.ParseBool(raw); err != nil {
			h.fail(w, r, BadRequest("Invalid grouped parameter"))
			return
		}
	}

	if grouped {
		groups, err := h.Elements.GroupedOptions(r.Context(), sessionID, songID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if groups == nil {
			groups = []models.OptionGroup{}
		}
		respondOK(w, OptionGroupsResponse{Groups: groups})
		return
	}

	options, err := h.Elements.ListOptions(r.Context(), sessionID, songID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if options == nil {
		options = []models.ElementOption{}
	}
	respondOK(w, OptionListResponse{Options: options})
}

func (h *Handlers) handleVoteOption(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// An empty body is a plain approval
	req := services.OptionVoteRequest{VoteValue: models.VoteApprove}
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.SessionID = chi.URLParam(r, "id")
	req.OptionID = chi.URLParam(r, "optionID")
	req.UserID = userID

	result, err := h.Elements.Vote(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleUnvoteOption(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	option, err := h.Elements.Unvote(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "optionID"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, option)
}

func (h *Handlers) handleElementVote(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req := services.ElementVoteRequest{VoteValue: models.VoteApprove}
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.SessionID = chi.URLParam(r, "id")
	req.UserID = userID
	req.ElementType = models.ElementType(chi.URLParam(r, "type"))
	req.ElementID = chi.URLParam(r, "elementID")

	result, err := h.Elements.CastElementVote(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Elements.Results(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("songId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, results)
}

func (h *Handlers) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Elements.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, progress)
}

func (h *Handlers) handleFinalize(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Elements.Finalize(r.Context(), chi.URLParam(r, "id"), userID, models.ElementType(chi.URLParam(r, "type")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleMyVotes(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	votes, err := h.Elements.MyVotes(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if votes == nil {
		votes = []models.ElementVote{}
	}
	respondOK(w, VotesResponse{Votes: votes})
}

func (h *Handlers) handleRecompute(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.Elements.RecomputeTallies(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}
