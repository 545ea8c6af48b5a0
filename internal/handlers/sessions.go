package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/services"
)

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.Sessions.CreateSession(r.Context(), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, session)
}

func (h *Handlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SessionFilter{
		Status:     models.SessionStatus(q.Get("status")),
		Genre:      q.Get("genre"),
		Visibility: models.Visibility(q.Get("visibility")),
		HostID:     q.Get("host"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, BadRequest("Invalid "+name+" parameter"))
			return
		}
		*dst = n
	}

	sessions, err := h.Sessions.ListSessions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondOK(w, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, session)
}

func (h *Handlers) handleGetSessionByCode(w http.ResponseWriter, r *http.Request) {
	session, err := h.Sessions.GetSessionByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, session)
}

func (h *Handlers) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.UpdateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.Sessions.UpdateSession(r.Context(), chi.URLParam(r, "id"), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, session)
}

// stageAction adapts a host-only stage operation into a handler
func (h *Handlers) stageAction(fn func(ctx context.Context, id, userID string) (*models.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		session, err := fn(r.Context(), chi.URLParam(r, "id"), userID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondOK(w, session)
	}
}

func (h *Handlers) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.stageAction(h.Sessions.Advance)(w, r)
}

func (h *Handlers) handleStart(w http.ResponseWriter, r *http.Request) {
	h.stageAction(h.Sessions.Start)(w, r)
}

func (h *Handlers) handlePause(w http.ResponseWriter, r *http.Request) {
	h.stageAction(h.Sessions.Pause)(w, r)
}

func (h *Handlers) handleResume(w http.ResponseWriter, r *http.Request) {
	h.stageAction(h.Sessions.Resume)(w, r)
}

func (h *Handlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.stageAction(h.Sessions.Cancel)(w, r)
}

func (h *Handlers) handleJoin(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.Sessions.Join(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, p)
}

func (h *Handlers) handleLeave(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Sessions.Leave(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	respondDeleted(w)
}

func (h *Handlers) handlePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	perms, err := h.Sessions.Permissions(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, perms)
}

func (h *Handlers) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Sessions.JoinQRCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (h *Handlers) handleAddSong(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req services.AddSongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	song, err := h.Sessions.AddSong(r.Context(), chi.URLParam(r, "id"), userID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, song)
}

func (h *Handlers) handleVoteSong(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SongVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	song, err := h.Sessions.VoteSong(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "songID"), userID, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, song)
}

func (h *Handlers) handleFeedback(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	fb, err := h.Sessions.AddFeedback(r.Context(), chi.URLParam(r, "id"), userID, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, fb)
}
