package errors

import (
	"errors"
	"fmt"
	"testing"
)

// =============================================================================
// Test Error Types and Constructors
// =============================================================================

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		kind    Kind
		message string
	}{
		{"NotFound", NotFound("session not found"), ErrNotFound, "session not found"},
		{"NotFoundf", NotFoundf("option %s not found", "tempo-90"), ErrNotFound, "option tempo-90 not found"},
		{"Validation", Validation("title is required"), ErrValidation, "title is required"},
		{"Validationf", Validationf("title must be at most %d characters", 120), ErrValidation, "title must be at most 120 characters"},
		{"Conflict", Conflict("already voted"), ErrConflict, "already voted"},
		{"Conflictf", Conflictf("user %s already voted", "u1"), ErrConflict, "user u1 already voted"},
		{"InvalidInput", InvalidInput("bad value"), ErrInvalidInput, "bad value"},
		{"InvalidInputf", InvalidInputf("bad value %d", 7), ErrInvalidInput, "bad value 7"},
		{"Forbidden", Forbidden("only the host can do that"), ErrForbidden, "only the host can do that"},
		{"Forbiddenf", Forbiddenf("user %s is banned", "u2"), ErrForbidden, "user u2 is banned"},
		{"BadRequest", BadRequest("Submission deadline has passed"), ErrBadRequest, "Submission deadline has passed"},
		{"BadRequestf", BadRequestf("Maximum submissions reached (%d)", 1), ErrBadRequest, "Maximum submissions reached (1)"},
		{"InvalidTransition", InvalidTransition("no next stage"), ErrInvalidTransition, "no next stage"},
		{"InvalidTransitionf", InvalidTransitionf("cannot advance from %s", "completed"), ErrInvalidTransition, "cannot advance from completed"},
		{"RateLimited", RateLimited("slow down"), ErrRateLimited, "slow down"},
		{"Internalf", Internalf("failed after %d attempts", 3), ErrInternal, "failed after 3 attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("expected Kind %s, got %s", tt.kind, tt.err.Kind)
			}
			if tt.err.Message != tt.message {
				t.Errorf("expected Message '%s', got '%s'", tt.message, tt.err.Message)
			}
			if tt.err.Err != nil {
				t.Errorf("expected Err to be nil, got %v", tt.err.Err)
			}
		})
	}
}

func TestInternal_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)

	if err.Kind != ErrInternal {
		t.Errorf("expected ErrInternal, got %s", err.Kind)
	}
	if err.Error() != "internal error: disk full" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed")
	err := Wrap(cause, ErrConflict, "already joined")

	if err.Kind != ErrConflict {
		t.Errorf("expected ErrConflict, got %s", err.Kind)
	}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

// =============================================================================
// Kind helpers
// =============================================================================

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", Forbidden("banned"))

	if KindOf(wrapped) != ErrForbidden {
		t.Errorf("expected ErrForbidden through wrapping, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != ErrInternal {
		t.Error("expected plain errors to classify as internal")
	}
	if KindOf(nil) != ErrInternal {
		t.Error("expected nil to classify as internal")
	}
}

func TestIsHelpers(t *testing.T) {
	if !IsNotFound(NotFound("x")) {
		t.Error("IsNotFound")
	}
	if !IsConflict(Conflict("x")) {
		t.Error("IsConflict")
	}
	if !IsForbidden(Forbidden("x")) {
		t.Error("IsForbidden")
	}
	if !IsBadRequest(BadRequest("x")) {
		t.Error("IsBadRequest")
	}
	if !IsInvalidTransition(InvalidTransition("x")) {
		t.Error("IsInvalidTransition")
	}
	if IsConflict(nil) {
		t.Error("nil must not match any kind")
	}
	if IsNotFound(Conflict("x")) {
		t.Error("kinds must not cross-match")
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		ErrInternal:          "Internal",
		ErrNotFound:          "NotFound",
		ErrValidation:        "Validation",
		ErrConflict:          "Conflict",
		ErrInvalidInput:      "InvalidInput",
		ErrForbidden:         "Forbidden",
		ErrBadRequest:        "BadRequest",
		ErrInvalidTransition: "InvalidTransition",
		ErrRateLimited:       "RateLimited",
	}
	for kind, want := range tests {
		if kind.String() != want {
			t.Errorf("expected %s, got %s", want, kind.String())
		}
	}
}
