package repository

import (
	"context"
	"time"

	"github.com/crowdsong/crowdsong/internal/models"
)

// OptionFilter narrows option listings. Empty fields match everything.
type OptionFilter struct {
	SessionID   string
	SongID      string
	ElementType models.ElementType
}

// SessionRepository defines session document operations
type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	SessionCodeExists(ctx context.Context, code string) (bool, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	// UpdateSession writes s only if its version is unchanged, then bumps s.Version
	UpdateSession(ctx context.Context, s *models.Session) error
	ListSessionsEndingBefore(ctx context.Context, t time.Time) ([]models.Session, error)
}

// OptionRepository defines element option operations
type OptionRepository interface {
	CreateOption(ctx context.Context, o *models.ElementOption) error
	GetOption(ctx context.Context, sessionID, optionID string) (*models.ElementOption, error)
	ListOptions(ctx context.Context, filter OptionFilter) ([]models.ElementOption, error)
	CountUserOptions(ctx context.Context, sessionID, userID string) (int, error)
	SetOptionStatuses(ctx context.Context, sessionID string, statuses map[string]models.OptionStatus) error
}

// VoteLedgerRepository defines vote ledger operations. Option votes keep the
// ledger and the option counters consistent inside one transaction.
type VoteLedgerRepository interface {
	CastOptionVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error)
	RemoveOptionVote(ctx context.Context, sessionID, userID, optionID string) (*models.ElementVote, error)
	UpsertElementVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error)
	ListElementVotes(ctx context.Context, sessionID string) ([]models.ElementVote, error)
	ListUserElementVotes(ctx context.Context, sessionID, userID string) ([]models.ElementVote, error)
	RecomputeTallies(ctx context.Context, sessionID string) error
}

// CompetitionRepository defines competition document operations
type CompetitionRepository interface {
	CreateCompetition(ctx context.Context, c *models.ElementCompetition) error
	GetCompetition(ctx context.Context, id string) (*models.ElementCompetition, error)
	ListCompetitions(ctx context.Context, sessionID string) ([]models.ElementCompetition, error)
	// UpdateCompetition writes c only if its version is unchanged, then bumps c.Version
	UpdateCompetition(ctx context.Context, c *models.ElementCompetition) error
	ListCompetitionsDue(ctx context.Context, now time.Time) ([]models.ElementCompetition, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	SessionRepository
	OptionRepository
	VoteLedgerRepository
	CompetitionRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
