package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/crowdsong/crowdsong/internal/lifecycle"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SeedSession stores a session hosted by hostID in the given status and
// returns it with its version set
func SeedSession(t *testing.T, repo repository.SessionRepository, code, hostID string, status models.SessionStatus) *models.Session {
	t.Helper()

	now := time.Now().UTC()
	stage, _ := lifecycle.StageOf(status)
	s := &models.Session{
		Code:       code,
		HostID:     hostID,
		Title:      "Session " + code,
		Visibility: models.VisibilityPublic,
		Status:     status,
		Stage:      stage,
		Settings: models.SessionSettings{
			MaxParticipants:   50,
			VotingSystem:      models.VotingWeighted,
			AllowUserOptions:  true,
			AllowSongRequests: true,
			AllowFeedback:     true,
		},
		Participants: []models.Participant{
			{UserID: hostID, Role: models.RoleHost, IsActive: true, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return s
}

// SeedOption stores a pending option for elementType
func SeedOption(t *testing.T, repo repository.OptionRepository, sessionID string, elementType models.ElementType, optionID string, order int) *models.ElementOption {
	t.Helper()

	now := time.Now().UTC()
	o := &models.ElementOption{
		SessionID:   sessionID,
		ElementType: elementType,
		OptionID:    optionID,
		Label:       optionID,
		CreatedBy:   "system",
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateOption(context.Background(), o); err != nil {
		t.Fatalf("CreateOption failed: %v", err)
	}
	return o
}
