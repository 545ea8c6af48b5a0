package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/handlers"
)

func TestAPIError_Error(t *testing.T) {
	err := handlers.NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "test message")

	if err.Error() != "test message" {
		t.Errorf("expected 'test message', got %q", err.Error())
	}
	if err.Code != "BAD_REQUEST" {
		t.Errorf("expected code 'BAD_REQUEST', got %q", err.Code)
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", errors.NotFound("Session not found"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"validation", errors.Validation("title is required"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"invalid input", errors.InvalidInput("bad"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"bad request", errors.BadRequest("Voting is closed"), http.StatusBadRequest, handlers.ErrCodeBadRequest},
		{"forbidden", errors.Forbidden("Only the host can do this"), http.StatusForbidden, handlers.ErrCodeForbidden},
		{"conflict", errors.Conflict("already voted"), http.StatusConflict, handlers.ErrCodeConflict},
		{"invalid transition", errors.InvalidTransition("cannot advance"), http.StatusConflict, handlers.ErrCodeInvalidTransition},
		{"rate limited", errors.RateLimited("slow down"), http.StatusTooManyRequests, handlers.ErrCodeRateLimited},
		{"internal", errors.Internal(fmt.Errorf("disk full")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"wrapped app error", fmt.Errorf("ctx: %w", errors.NotFound("gone")), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"api error", handlers.BadRequest("Invalid JSON"), http.StatusBadRequest, handlers.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := handlers.ToAPIError(tt.err)
			if apiErr.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
		})
	}
}

func TestToAPIError_HidesInternalCause(t *testing.T) {
	apiErr := handlers.ToAPIError(errors.Internal(fmt.Errorf("password=hunter2")))
	if apiErr.Message != "Internal server error" {
		t.Errorf("internal cause leaked: %q", apiErr.Message)
	}
}
