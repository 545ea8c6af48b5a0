package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/services"
)

type restriction func(ctx context.Context, sessionID, actorID, target string, req services.ModerationRequest) (*models.ModerationEntry, error)

type release func(ctx context.Context, sessionID, actorID, target string) error

type roleChange func(ctx context.Context, sessionID, actorID, target string) (*models.Participant, error)

func (h *Handlers) restrict(fn restriction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := currentUser(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		var req services.ModerationRequest
		if err := decodeOptionalJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
		entry, err := fn(r.Context(), chi.URLParam(r, "id"), actorID, chi.URLParam(r, "userID"), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondCreated(w, entry)
	}
}

func (h *Handlers) lift(fn release) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := currentUser(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := fn(r.Context(), chi.URLParam(r, "id"), actorID, chi.URLParam(r, "userID")); err != nil {
			h.fail(w, r, err)
			return
		}
		respondDeleted(w)
	}
}

func (h *Handlers) changeRole(fn roleChange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := currentUser(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		p, err := fn(r.Context(), chi.URLParam(r, "id"), actorID, chi.URLParam(r, "userID"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondOK(w, p)
	}
}

func (h *Handlers) handleBan(w http.ResponseWriter, r *http.Request) {
	h.restrict(h.Moderation.Ban)(w, r)
}

func (h *Handlers) handleUnban(w http.ResponseWriter, r *http.Request) {
	h.lift(h.Moderation.Unban)(w, r)
}

func (h *Handlers) handleMute(w http.ResponseWriter, r *http.Request) {
	h.restrict(h.Moderation.Mute)(w, r)
}

func (h *Handlers) handleUnmute(w http.ResponseWriter, r *http.Request) {
	h.lift(h.Moderation.Unmute)(w, r)
}

func (h *Handlers) handlePromote(w http.ResponseWriter, r *http.Request) {
	h.changeRole(h.Moderation.Promote)(w, r)
}

func (h *Handlers) handleDemote(w http.ResponseWriter, r *http.Request) {
	h.changeRole(h.Moderation.Demote)(w, r)
}

func (h *Handlers) handleKick(w http.ResponseWriter, r *http.Request) {
	actorID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req KickRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Moderation.Kick(r.Context(), chi.URLParam(r, "id"), actorID, chi.URLParam(r, "userID"), req.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, StatusResponse{Status: "kicked"})
}
