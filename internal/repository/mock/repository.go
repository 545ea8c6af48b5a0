package mock

import (
	"context"
	"time"

	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.CastOptionVoteError = errors.New("database error")
//	svc := services.NewElementService(log, mockRepo, reputation.Offline{})
//	_, err := svc.Vote(ctx, req)
//	// err will now contain the injected error
//
// StaleUpdates makes the next N UpdateSession/UpdateCompetition calls fail
// with ErrStaleVersion before reaching the real repository.
type Repository struct {
	repository.FullRepository

	// ===== Session Errors =====
	CreateSessionError            error
	GetSessionError               error
	GetSessionByCodeError         error
	SessionCodeExistsError        error
	ListSessionsError             error
	UpdateSessionError            error
	ListSessionsEndingBeforeError error

	// ===== Option Errors =====
	CreateOptionError      error
	GetOptionError         error
	ListOptionsError       error
	CountUserOptionsError  error
	SetOptionStatusesError error

	// ===== Vote Ledger Errors =====
	CastOptionVoteError       error
	RemoveOptionVoteError     error
	UpsertElementVoteError    error
	ListElementVotesError     error
	ListUserElementVotesError error
	RecomputeTalliesError     error

	// ===== Competition Errors =====
	CreateCompetitionError   error
	GetCompetitionError      error
	ListCompetitionsError    error
	UpdateCompetitionError   error
	ListCompetitionsDueError error

	StaleUpdates int

	// SessionCodeTaken reports codes as taken for the first N lookups
	SessionCodeTaken int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

func (m *Repository) stale() bool {
	if m.StaleUpdates > 0 {
		m.StaleUpdates--
		return true
	}
	return false
}

// ===== Session Methods =====

func (m *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	if m.CreateSessionError != nil {
		return m.CreateSessionError
	}
	return m.FullRepository.CreateSession(ctx, s)
}

func (m *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	return m.FullRepository.GetSession(ctx, id)
}

func (m *Repository) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	if m.GetSessionByCodeError != nil {
		return nil, m.GetSessionByCodeError
	}
	return m.FullRepository.GetSessionByCode(ctx, code)
}

func (m *Repository) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	if m.SessionCodeExistsError != nil {
		return false, m.SessionCodeExistsError
	}
	if m.SessionCodeTaken > 0 {
		m.SessionCodeTaken--
		return true, nil
	}
	return m.FullRepository.SessionCodeExists(ctx, code)
}

func (m *Repository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	if m.ListSessionsError != nil {
		return nil, m.ListSessionsError
	}
	return m.FullRepository.ListSessions(ctx, filter)
}

func (m *Repository) UpdateSession(ctx context.Context, s *models.Session) error {
	if m.UpdateSessionError != nil {
		return m.UpdateSessionError
	}
	if m.stale() {
		return repository.ErrStaleVersion
	}
	return m.FullRepository.UpdateSession(ctx, s)
}

func (m *Repository) ListSessionsEndingBefore(ctx context.Context, t time.Time) ([]models.Session, error) {
	if m.ListSessionsEndingBeforeError != nil {
		return nil, m.ListSessionsEndingBeforeError
	}
	return m.FullRepository.ListSessionsEndingBefore(ctx, t)
}

// ===== Option Methods =====

func (m *Repository) CreateOption(ctx context.Context, o *models.ElementOption) error {
	if m.CreateOptionError != nil {
		return m.CreateOptionError
	}
	return m.FullRepository.CreateOption(ctx, o)
}

func (m *Repository) GetOption(ctx context.Context, sessionID, optionID string) (*models.ElementOption, error) {
	if m.GetOptionError != nil {
		return nil, m.GetOptionError
	}
	return m.FullRepository.GetOption(ctx, sessionID, optionID)
}

func (m *Repository) ListOptions(ctx context.Context, filter repository.OptionFilter) ([]models.ElementOption, error) {
	if m.ListOptionsError != nil {
		return nil, m.ListOptionsError
	}
	return m.FullRepository.ListOptions(ctx, filter)
}

func (m *Repository) CountUserOptions(ctx context.Context, sessionID, userID string) (int, error) {
	if m.CountUserOptionsError != nil {
		return 0, m.CountUserOptionsError
	}
	return m.FullRepository.CountUserOptions(ctx, sessionID, userID)
}

func (m *Repository) SetOptionStatuses(ctx context.Context, sessionID string, statuses map[string]models.OptionStatus) error {
	if m.SetOptionStatusesError != nil {
		return m.SetOptionStatusesError
	}
	return m.FullRepository.SetOptionStatuses(ctx, sessionID, statuses)
}

// ===== Vote Ledger Methods =====

func (m *Repository) CastOptionVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error) {
	if m.CastOptionVoteError != nil {
		return nil, m.CastOptionVoteError
	}
	return m.FullRepository.CastOptionVote(ctx, v)
}

func (m *Repository) RemoveOptionVote(ctx context.Context, sessionID, userID, optionID string) (*models.ElementVote, error) {
	if m.RemoveOptionVoteError != nil {
		return nil, m.RemoveOptionVoteError
	}
	return m.FullRepository.RemoveOptionVote(ctx, sessionID, userID, optionID)
}

func (m *Repository) UpsertElementVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error) {
	if m.UpsertElementVoteError != nil {
		return nil, m.UpsertElementVoteError
	}
	return m.FullRepository.UpsertElementVote(ctx, v)
}

func (m *Repository) ListElementVotes(ctx context.Context, sessionID string) ([]models.ElementVote, error) {
	if m.ListElementVotesError != nil {
		return nil, m.ListElementVotesError
	}
	return m.FullRepository.ListElementVotes(ctx, sessionID)
}

func (m *Repository) ListUserElementVotes(ctx context.Context, sessionID, userID string) ([]models.ElementVote, error) {
	if m.ListUserElementVotesError != nil {
		return nil, m.ListUserElementVotesError
	}
	return m.FullRepository.ListUserElementVotes(ctx, sessionID, userID)
}

func (m *Repository) RecomputeTallies(ctx context.Context, sessionID string) error {
	if m.RecomputeTalliesError != nil {
		return m.RecomputeTalliesError
	}
	return m.FullRepository.RecomputeTallies(ctx, sessionID)
}

// ===== Competition Methods =====

func (m *Repository) CreateCompetition(ctx context.Context, c *models.ElementCompetition) error {
	if m.CreateCompetitionError != nil {
		return m.CreateCompetitionError
	}
	return m.FullRepository.CreateCompetition(ctx, c)
}

func (m *Repository) GetCompetition(ctx context.Context, id string) (*models.ElementCompetition, error) {
	if m.GetCompetitionError != nil {
		return nil, m.GetCompetitionError
	}
	return m.FullRepository.GetCompetition(ctx, id)
}

func (m *Repository) ListCompetitions(ctx context.Context, sessionID string) ([]models.ElementCompetition, error) {
	if m.ListCompetitionsError != nil {
		return nil, m.ListCompetitionsError
	}
	return m.FullRepository.ListCompetitions(ctx, sessionID)
}

func (m *Repository) UpdateCompetition(ctx context.Context, c *models.ElementCompetition) error {
	if m.UpdateCompetitionError != nil {
		return m.UpdateCompetitionError
	}
	if m.stale() {
		return repository.ErrStaleVersion
	}
	return m.FullRepository.UpdateCompetition(ctx, c)
}

func (m *Repository) ListCompetitionsDue(ctx context.Context, now time.Time) ([]models.ElementCompetition, error) {
	if m.ListCompetitionsDueError != nil {
		return nil, m.ListCompetitionsDueError
	}
	return m.FullRepository.ListCompetitionsDue(ctx, now)
}
