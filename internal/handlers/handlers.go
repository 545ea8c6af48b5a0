package handlers

import (
	"context"
	"net/http"

	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/services"
	"github.com/crowdsong/crowdsong/internal/websocket"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Sessions     services.SessionServicer
	Elements     services.ElementServicer
	Competitions services.CompetitionServicer
	Moderation   services.ModerationServicer
	Hub          *websocket.Hub
	Log          logger.Logger

	// Health reports whether storage is reachable; nil skips the check
	Health func(ctx context.Context) error
}

// New creates a new Handlers instance with all dependencies
func New(
	sessions services.SessionServicer,
	elements services.ElementServicer,
	competitions services.CompetitionServicer,
	moderation services.ModerationServicer,
	hub *websocket.Hub,
	log logger.Logger,
) *Handlers {
	if log == nil {
		log = logger.Discard()
	}
	return &Handlers{
		Sessions:     sessions,
		Elements:     elements,
		Competitions: competitions,
		Moderation:   moderation,
		Hub:          hub,
		Log:          log,
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(h.Log, w, r, err)
}
