package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crowdsong/crowdsong/internal/competition"
	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

// CompetitionServiceRepository defines the repository methods needed by CompetitionService
type CompetitionServiceRepository interface {
	repository.SessionRepository
	repository.CompetitionRepository
}

// CompetitionService runs element competitions and pays out prizes
type CompetitionService struct {
	core
	repo CompetitionServiceRepository
}

// NewCompetitionService creates a new CompetitionService
func NewCompetitionService(log logger.Logger, repo CompetitionServiceRepository, rep reputation.Client) *CompetitionService {
	return &CompetitionService{
		core: newCore(log, repo, rep),
		repo: repo,
	}
}

// CreateCompetitionRequest describes a new competition
type CreateCompetitionRequest struct {
	ElementType           models.ElementType `json:"element_type"`
	Title                 string             `json:"title"`
	Description           string             `json:"description"`
	SubmissionDeadline    *time.Time         `json:"submission_deadline"`
	VotingDeadline        *time.Time         `json:"voting_deadline"`
	MaxSubmissionsPerUser int                `json:"max_submissions_per_user"`
	Prize                 models.Prize       `json:"prize"`
	Open                  bool               `json:"open"`
}

// SubmissionRequest is an entry to a competition
type SubmissionRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AudioURL     string    `json:"audio_url"`
	Waveform     []float64 `json:"waveform"`
	DurationSecs float64   `json:"duration_secs"`
}

// SubmissionResult reports an accepted submission and its index
type SubmissionResult struct {
	Index      int               `json:"index"`
	Submission models.Submission `json:"submission"`
}

// CloseResult reports the frozen winner and whether the prize was paid
type CloseResult struct {
	Competition  *models.ElementCompetition `json:"competition"`
	Winner       models.CompetitionWinner   `json:"winner"`
	PrizeAwarded bool                       `json:"prize_awarded"`
}

// CompetitionEvent is the payload of competition events
type CompetitionEvent struct {
	CompetitionID string                   `json:"competition_id"`
	Status        models.CompetitionStatus `json:"status"`
	Index         *int                     `json:"index,omitempty"`
	UserID        string                   `json:"user_id,omitempty"`
}

func (s *CompetitionService) loadCompetition(ctx context.Context, id string) (*models.ElementCompetition, error) {
	c, err := s.repo.GetCompetition(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrCompetitionNotFound)
	}
	return c, nil
}

// mutateCompetition re-reads the competition, applies fn and writes it back
// with compare-and-set, retrying when another writer got there first
func (s *CompetitionService) mutateCompetition(ctx context.Context, id string, fn func(c *models.ElementCompetition, now time.Time) error) (*models.ElementCompetition, error) {
	for attempt := 1; ; attempt++ {
		c, err := s.loadCompetition(ctx, id)
		if err != nil {
			return nil, err
		}
		now := s.now()
		if err := fn(c, now); err != nil {
			return nil, err
		}
		c.UpdatedAt = now
		err = s.repo.UpdateCompetition(ctx, c)
		if err == nil {
			return c, nil
		}
		if !stderrors.Is(err, repository.ErrStaleVersion) || attempt == maxUpdateAttempts {
			if !stderrors.Is(err, repository.ErrStaleVersion) {
				s.log.Error("Failed to update competition", "competition_id", id, "error", err)
			}
			return nil, mapRepoError(err, ErrCompetitionNotFound)
		}
		s.log.Debug("Competition changed during update, retrying", "competition_id", id, "attempt", attempt)
	}
}

// staffAction loads the competition's session and checks userID is staff
// there. Unless cancelling, the session must also still be running.
func (s *CompetitionService) staffAction(ctx context.Context, id, userID string, cancelling bool) error {
	c, err := s.loadCompetition(ctx, id)
	if err != nil {
		return err
	}
	session, err := s.loadSession(ctx, c.SessionID)
	if err != nil {
		return err
	}
	if err := requireStaff(session, userID, s.now()); err != nil {
		return err
	}
	if cancelling {
		return nil
	}
	return sessionRunning(session)
}

// sessionRunning refuses competition activity in a paused or finished session
func sessionRunning(session *models.Session) error {
	switch {
	case session.Status.IsTerminal():
		return errors.BadRequestf("Session has been %s", session.Status)
	case session.Status == models.StatusPaused:
		return errors.BadRequest("Session is paused")
	}
	return nil
}

// Create adds a competition to a session, in draft unless req.Open is set
func (s *CompetitionService) Create(ctx context.Context, sessionID, userID string, req CreateCompetitionRequest) (*models.ElementCompetition, error) {
	if !req.ElementType.Valid() {
		return nil, errors.Validationf("unknown element type %q", req.ElementType)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, errors.Validation("title is required")
	}
	if req.MaxSubmissionsPerUser < 0 {
		return nil, errors.Validation("max_submissions_per_user must not be negative")
	}
	if req.MaxSubmissionsPerUser == 0 {
		req.MaxSubmissionsPerUser = 1
	}
	if req.Prize.Reputation < 0 {
		return nil, errors.Validation("prize reputation must not be negative")
	}
	if req.SubmissionDeadline != nil && req.VotingDeadline != nil && !req.VotingDeadline.After(*req.SubmissionDeadline) {
		return nil, errors.Validation("voting_deadline must be after submission_deadline")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := requireStaff(session, userID, now); err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, errors.BadRequestf("Session has been %s", session.Status)
	}

	c := &models.ElementCompetition{
		ID:                    uuid.NewString(),
		SessionID:             sessionID,
		ElementType:           req.ElementType,
		Title:                 req.Title,
		Description:           req.Description,
		SubmissionDeadline:    req.SubmissionDeadline,
		VotingDeadline:        req.VotingDeadline,
		MaxSubmissionsPerUser: req.MaxSubmissionsPerUser,
		Submissions:           []models.Submission{},
		Status:                models.CompetitionDraft,
		Prize:                 req.Prize,
		CreatedBy:             userID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.Open {
		if err := competition.Open(c, now); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreateCompetition(ctx, c); err != nil {
		s.log.Error("Failed to create competition", "session_id", sessionID, "error", err)
		return nil, mapRepoError(err, ErrCompetitionNotFound)
	}

	s.log.Info("Competition created", "session_id", sessionID, "competition_id", c.ID, "element_type", c.ElementType, "status", c.Status)
	s.publish(models.EventCompetitionCreated, sessionID, c)
	return c, nil
}

// List returns the session's competitions
func (s *CompetitionService) List(ctx context.Context, sessionID string) ([]models.ElementCompetition, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListCompetitions(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return list, nil
}

// Get retrieves a competition by ID
func (s *CompetitionService) Get(ctx context.Context, id string) (*models.ElementCompetition, error) {
	return s.loadCompetition(ctx, id)
}

func (s *CompetitionService) statusEvent(eventType string, c *models.ElementCompetition) {
	s.publish(eventType, c.SessionID, CompetitionEvent{CompetitionID: c.ID, Status: c.Status})
}

// Open starts accepting submissions
func (s *CompetitionService) Open(ctx context.Context, id, userID string) (*models.ElementCompetition, error) {
	if err := s.staffAction(ctx, id, userID, false); err != nil {
		return nil, err
	}
	c, err := s.mutateCompetition(ctx, id, competition.Open)
	if err != nil {
		return nil, err
	}
	s.log.Info("Competition opened", "competition_id", id, "user_id", userID)
	s.statusEvent(models.EventCompetitionOpened, c)
	return c, nil
}

// Submit adds the caller's entry
func (s *CompetitionService) Submit(ctx context.Context, id, userID string, req SubmissionRequest) (*SubmissionResult, error) {
	if err := s.throttle(userID, "submit"); err != nil {
		return nil, err
	}
	c, err := s.loadCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, c.SessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := requireMember(session, userID); err != nil {
		return nil, err
	}
	if err := sessionRunning(session); err != nil {
		return nil, err
	}
	if moderation.IsBanned(session, userID, now) {
		return nil, errors.Forbidden("You are banned from this session")
	}
	if moderation.IsMuted(session, userID, now) {
		return nil, errors.Forbidden("You are muted in this session")
	}

	var result SubmissionResult
	c, err = s.mutateCompetition(ctx, id, func(c *models.ElementCompetition, now time.Time) error {
		sub := models.Submission{
			ID:           uuid.NewString(),
			UserID:       userID,
			Title:        strings.TrimSpace(req.Title),
			Description:  req.Description,
			AudioURL:     strings.TrimSpace(req.AudioURL),
			Waveform:     req.Waveform,
			DurationSecs: req.DurationSecs,
		}
		index, err := competition.AddSubmission(c, sub, now)
		if err != nil {
			return err
		}
		result = SubmissionResult{Index: index, Submission: c.Submissions[index]}
		return nil
	})
	if err != nil {
		if errors.IsBadRequest(err) {
			s.log.Debug("Submission refused", "competition_id", id, "user_id", userID, "reason", err)
		}
		return nil, err
	}

	if _, err := s.mutateSession(ctx, c.SessionID, func(session *models.Session, now time.Time) error {
		participants.RecordSubmission(session, userID)
		return nil
	}); err != nil {
		s.log.Warn("Failed to record submission stats", "session_id", c.SessionID, "user_id", userID, "error", err)
	}

	s.log.Info("Submission added", "competition_id", id, "index", result.Index, "user_id", userID)
	idx := result.Index
	s.publish(models.EventSubmissionAdded, c.SessionID, CompetitionEvent{CompetitionID: id, Status: c.Status, Index: &idx, UserID: userID})
	return &result, nil
}

// StartVoting closes submissions and opens voting
func (s *CompetitionService) StartVoting(ctx context.Context, id, userID string) (*models.ElementCompetition, error) {
	if err := s.staffAction(ctx, id, userID, false); err != nil {
		return nil, err
	}
	c, err := s.mutateCompetition(ctx, id, competition.StartVoting)
	if err != nil {
		return nil, err
	}
	s.log.Info("Competition voting started", "competition_id", id, "submissions", len(c.Submissions))
	s.statusEvent(models.EventCompetitionVoting, c)
	return c, nil
}

// Vote records the caller's weighted vote for the submission at index
func (s *CompetitionService) Vote(ctx context.Context, id string, index int, userID string) (*models.Submission, error) {
	if err := s.throttle(userID, "vote"); err != nil {
		return nil, err
	}
	c, err := s.loadCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, c.SessionID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(session, userID); err != nil {
		return nil, err
	}
	if err := sessionRunning(session); err != nil {
		return nil, err
	}
	if moderation.IsBanned(session, userID, s.now()) {
		return nil, errors.Forbidden("You are banned from this session")
	}
	score, weight := s.standing(ctx, userID)
	if userID != session.HostID && score < session.Settings.MinReputation {
		return nil, errors.Forbiddenf("Reputation %.0f is below the session minimum of %.0f", score, session.Settings.MinReputation)
	}
	if session.Settings.VotingSystem == models.VotingSimple {
		weight = 1.0
	}

	var sub models.Submission
	c, err = s.mutateCompetition(ctx, id, func(c *models.ElementCompetition, now time.Time) error {
		if err := competition.Vote(c, index, userID, weight, now); err != nil {
			return err
		}
		sub = c.Submissions[index]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Competition vote recorded", "competition_id", id, "index", index, "user_id", userID, "weight", weight)
	s.publish(models.EventCompetitionVote, c.SessionID, CompetitionEvent{CompetitionID: id, Status: c.Status, Index: &index, UserID: userID})
	return &sub, nil
}

// Close determines the winner and pays out the prize
func (s *CompetitionService) Close(ctx context.Context, id, userID string) (*CloseResult, error) {
	if err := s.staffAction(ctx, id, userID, false); err != nil {
		return nil, err
	}
	return s.close(ctx, id)
}

// close freezes the winner. Exactly one concurrent caller succeeds; the
// others re-read a closed competition and get Conflict.
func (s *CompetitionService) close(ctx context.Context, id string) (*CloseResult, error) {
	var winner models.CompetitionWinner
	c, err := s.mutateCompetition(ctx, id, func(c *models.ElementCompetition, now time.Time) error {
		var err error
		winner, err = competition.DetermineWinner(c, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Competition closed", "competition_id", id, "winner", winner.UserID, "weighted_votes", winner.WeightedVotes)
	result := &CloseResult{Competition: c, Winner: winner}
	if c.Prize.Reputation > 0 {
		reason := fmt.Sprintf("Won competition %q", c.Title)
		if _, err := s.reputation.AwardReputation(ctx, winner.UserID, c.Prize.Reputation, reason); err != nil {
			s.log.Error("Failed to award competition prize", "competition_id", id, "user_id", winner.UserID, "error", err)
		} else {
			result.PrizeAwarded = true
			s.log.Info("Competition prize awarded", "competition_id", id, "user_id", winner.UserID, "points", c.Prize.Reputation)
		}
	}
	s.publish(models.EventCompetitionClosed, c.SessionID, result)
	return result, nil
}

// Cancel ends a competition that has not closed
func (s *CompetitionService) Cancel(ctx context.Context, id, userID string) (*models.ElementCompetition, error) {
	if err := s.staffAction(ctx, id, userID, true); err != nil {
		return nil, err
	}
	c, err := s.mutateCompetition(ctx, id, competition.Cancel)
	if err != nil {
		return nil, err
	}
	s.log.Info("Competition cancelled", "competition_id", id, "user_id", userID)
	s.statusEvent(models.EventCompetitionCancelled, c)
	return c, nil
}

// Results returns the competition with its ranked submissions
func (s *CompetitionService) Results(ctx context.Context, id string) (*models.CompetitionResults, error) {
	c, err := s.loadCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CompetitionResults{Competition: *c, Ranking: competition.Ranked(c)}, nil
}

// SweepResult counts what one deadline sweep changed
type SweepResult struct {
	VotingStarted int `json:"voting_started"`
	Closed        int `json:"closed"`
	Cancelled     int `json:"cancelled"`
}

// AdvanceDue moves competitions past their deadlines: open ones start voting
// and voting ones close. Empty competitions and those of a cancelled session
// are cancelled instead; a paused session's competitions wait.
func (s *CompetitionService) AdvanceDue(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	due, err := s.repo.ListCompetitionsDue(ctx, s.now())
	if err != nil {
		return res, errors.Internal(err)
	}

	for _, d := range due {
		session, err := s.loadSession(ctx, d.SessionID)
		if err != nil {
			s.log.Warn("Failed to load session for competition deadline", "competition_id", d.ID, "session_id", d.SessionID, "error", err)
			continue
		}
		if session.Status == models.StatusPaused {
			continue
		}
		switch {
		case len(d.Submissions) == 0 || session.Status == models.StatusCancelled:
			var c *models.ElementCompetition
			c, err = s.mutateCompetition(ctx, d.ID, competition.Cancel)
			if err == nil {
				res.Cancelled++
				s.log.Info("Competition cancelled at deadline", "competition_id", d.ID, "submissions", len(d.Submissions), "session_status", session.Status)
				s.statusEvent(models.EventCompetitionCancelled, c)
			}
		case d.Status == models.CompetitionOpen:
			var c *models.ElementCompetition
			c, err = s.mutateCompetition(ctx, d.ID, competition.StartVoting)
			if err == nil {
				res.VotingStarted++
				s.log.Info("Competition voting started at submission deadline", "competition_id", d.ID)
				s.statusEvent(models.EventCompetitionVoting, c)
			}
		default:
			_, err = s.close(ctx, d.ID)
			if err == nil {
				res.Closed++
			}
		}
		if err != nil && !errors.IsConflict(err) && !errors.IsInvalidTransition(err) {
			s.log.Warn("Failed to advance competition at deadline", "competition_id", d.ID, "error", err)
		}
	}
	return res, nil
}
