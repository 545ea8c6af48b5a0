package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crowdsong/crowdsong/internal/auth"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			h.Log.Error("Health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
			return
		}
	}
	respondOK(w, StatusResponse{Status: "ok"})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	r.Get("/healthz", h.handleHealth)

	// WebSocket connections are long lived, so they sit outside the timeout group
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Public reads
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalUser)
			r.Get("/sessions", h.handleListSessions)
			r.Get("/sessions/code/{code}", h.handleGetSessionByCode)
			r.Get("/sessions/{id}", h.handleGetSession)
			r.Get("/sessions/{id}/qr", h.handleSessionQR)
			r.Get("/sessions/{id}/options", h.handleListOptions)
			r.Get("/sessions/{id}/results", h.handleResults)
			r.Get("/sessions/{id}/progress", h.handleProgress)
			r.Get("/sessions/{id}/competitions", h.handleListCompetitions)
			r.Get("/competitions/{cid}", h.handleGetCompetition)
			r.Get("/competitions/{cid}/results", h.handleCompetitionResults)
		})

		// Everything else acts on behalf of the caller
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			// Sessions
			r.Post("/sessions", h.handleCreateSession)
			r.Patch("/sessions/{id}", h.handleUpdateSession)
			r.Post("/sessions/{id}/advance", h.handleAdvance)
			r.Post("/sessions/{id}/start", h.handleStart)
			r.Post("/sessions/{id}/pause", h.handlePause)
			r.Post("/sessions/{id}/resume", h.handleResume)
			r.Post("/sessions/{id}/cancel", h.handleCancel)
			r.Post("/sessions/{id}/join", h.handleJoin)
			r.Post("/sessions/{id}/leave", h.handleLeave)
			r.Get("/sessions/{id}/permissions", h.handlePermissions)
			r.Post("/sessions/{id}/songs", h.handleAddSong)
			r.Post("/sessions/{id}/songs/{songID}/votes", h.handleVoteSong)
			r.Post("/sessions/{id}/feedback", h.handleFeedback)

			// Elements
			r.Post("/sessions/{id}/options", h.handleSeedOptions)
			r.Post("/sessions/{id}/options/submit", h.handleSubmitOption)
			r.Post("/sessions/{id}/options/{optionID}/votes", h.handleVoteOption)
			r.Delete("/sessions/{id}/options/{optionID}/votes", h.handleUnvoteOption)
			r.Post("/sessions/{id}/elements/{type}/{elementID}/votes", h.handleElementVote)
			r.Post("/sessions/{id}/elements/{type}/finalize", h.handleFinalize)
			r.Get("/sessions/{id}/votes/me", h.handleMyVotes)
			r.Post("/sessions/{id}/tallies/recompute", h.handleRecompute)

			// Competitions
			r.Post("/sessions/{id}/competitions", h.handleCreateCompetition)
			r.Post("/competitions/{cid}/open", h.handleOpenCompetition)
			r.Post("/competitions/{cid}/submissions", h.handleSubmit)
			r.Post("/competitions/{cid}/submissions/{index}/votes", h.handleVoteSubmission)
			r.Post("/competitions/{cid}/start-voting", h.handleStartVoting)
			r.Post("/competitions/{cid}/close", h.handleCloseCompetition)
			r.Post("/competitions/{cid}/cancel", h.handleCancelCompetition)

			// Moderation
			r.Post("/sessions/{id}/bans/{userID}", h.handleBan)
			r.Delete("/sessions/{id}/bans/{userID}", h.handleUnban)
			r.Post("/sessions/{id}/mutes/{userID}", h.handleMute)
			r.Delete("/sessions/{id}/mutes/{userID}", h.handleUnmute)
			r.Post("/sessions/{id}/participants/{userID}/kick", h.handleKick)
			r.Post("/sessions/{id}/participants/{userID}/promote", h.handlePromote)
			r.Post("/sessions/{id}/participants/{userID}/demote", h.handleDemote)
		})
	})

	return r
}
