package services

import (
	"context"

	"github.com/crowdsong/crowdsong/internal/access"
	"github.com/crowdsong/crowdsong/internal/models"
)

// SessionServicer defines the interface for session operations
type SessionServicer interface {
	CreateSession(ctx context.Context, hostID string, req CreateSessionRequest) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*models.Session, error)
	UpdateSession(ctx context.Context, id, userID string, req UpdateSessionRequest) (*models.Session, error)
	Advance(ctx context.Context, id, userID string) (*models.Session, error)
	Start(ctx context.Context, id, userID string) (*models.Session, error)
	Pause(ctx context.Context, id, userID string) (*models.Session, error)
	Resume(ctx context.Context, id, userID string) (*models.Session, error)
	Cancel(ctx context.Context, id, userID string) (*models.Session, error)
	Join(ctx context.Context, id, userID string) (*models.Participant, error)
	Leave(ctx context.Context, id, userID string) error
	Permissions(ctx context.Context, id, userID string) (*access.Permissions, error)
	JoinQRCode(ctx context.Context, id string) ([]byte, error)
	AddSong(ctx context.Context, id, userID string, req AddSongRequest) (*models.Song, error)
	VoteSong(ctx context.Context, id, songID, userID string, value int) (*models.Song, error)
	AddFeedback(ctx context.Context, id, userID string, rating int, comment string) (*models.Feedback, error)
	SetBroadcaster(b Broadcaster)
}

// ElementServicer defines the interface for element option and ledger operations
type ElementServicer interface {
	SeedOptions(ctx context.Context, sessionID, userID string, inputs []OptionInput) ([]models.ElementOption, error)
	SubmitOption(ctx context.Context, sessionID, userID string, in OptionInput) (*models.ElementOption, error)
	ListOptions(ctx context.Context, sessionID, songID string) ([]models.ElementOption, error)
	GroupedOptions(ctx context.Context, sessionID, songID string) ([]models.OptionGroup, error)
	Vote(ctx context.Context, req OptionVoteRequest) (*VoteResult, error)
	Unvote(ctx context.Context, sessionID, optionID, userID string) (*models.ElementOption, error)
	CastElementVote(ctx context.Context, req ElementVoteRequest) (*VoteResult, error)
	Results(ctx context.Context, sessionID, songID string) (*models.ElementResults, error)
	Progress(ctx context.Context, sessionID string) (*models.ElementProgress, error)
	Finalize(ctx context.Context, sessionID, userID string, elementType models.ElementType) (*FinalizeResult, error)
	MyVotes(ctx context.Context, sessionID, userID string) ([]models.ElementVote, error)
	RecomputeTallies(ctx context.Context, sessionID, userID string) (*RecomputeResult, error)
	SetBroadcaster(b Broadcaster)
}

// CompetitionServicer defines the interface for competition operations
type CompetitionServicer interface {
	Create(ctx context.Context, sessionID, userID string, req CreateCompetitionRequest) (*models.ElementCompetition, error)
	List(ctx context.Context, sessionID string) ([]models.ElementCompetition, error)
	Get(ctx context.Context, id string) (*models.ElementCompetition, error)
	Open(ctx context.Context, id, userID string) (*models.ElementCompetition, error)
	Submit(ctx context.Context, id, userID string, req SubmissionRequest) (*SubmissionResult, error)
	StartVoting(ctx context.Context, id, userID string) (*models.ElementCompetition, error)
	Vote(ctx context.Context, id string, index int, userID string) (*models.Submission, error)
	Close(ctx context.Context, id, userID string) (*CloseResult, error)
	Cancel(ctx context.Context, id, userID string) (*models.ElementCompetition, error)
	Results(ctx context.Context, id string) (*models.CompetitionResults, error)
	SetBroadcaster(b Broadcaster)
}

// ModerationServicer defines the interface for moderation operations
type ModerationServicer interface {
	Ban(ctx context.Context, sessionID, actorID, target string, req ModerationRequest) (*models.ModerationEntry, error)
	Unban(ctx context.Context, sessionID, actorID, target string) error
	Mute(ctx context.Context, sessionID, actorID, target string, req ModerationRequest) (*models.ModerationEntry, error)
	Unmute(ctx context.Context, sessionID, actorID, target string) error
	Kick(ctx context.Context, sessionID, actorID, target, reason string) error
	Promote(ctx context.Context, sessionID, actorID, target string) (*models.Participant, error)
	Demote(ctx context.Context, sessionID, actorID, target string) (*models.Participant, error)
	SetBroadcaster(b Broadcaster)
}

// Ensure concrete types implement interfaces
var (
	_ SessionServicer     = (*SessionService)(nil)
	_ ElementServicer     = (*ElementService)(nil)
	_ CompetitionServicer = (*CompetitionService)(nil)
	_ ModerationServicer  = (*ModerationService)(nil)
)
