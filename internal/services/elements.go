package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crowdsong/crowdsong/internal/access"
	"github.com/crowdsong/crowdsong/internal/elements"
	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/lifecycle"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

// ElementServiceRepository defines the repository methods needed by ElementService
type ElementServiceRepository interface {
	repository.SessionRepository
	repository.OptionRepository
	repository.VoteLedgerRepository
}

// ElementService handles element options, the vote ledger and finalisation
type ElementService struct {
	core
	repo ElementServiceRepository
}

// NewElementService creates a new ElementService
func NewElementService(log logger.Logger, repo ElementServiceRepository, rep reputation.Client) *ElementService {
	return &ElementService{
		core: newCore(log, repo, rep),
		repo: repo,
	}
}

// OptionInput describes one option to create
type OptionInput struct {
	ElementType models.ElementType `json:"element_type"`
	OptionID    string             `json:"option_id"`
	SongID      string             `json:"song_id"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	Value       json.RawMessage    `json:"value"`
	Order       *int               `json:"order"`
}

// OptionVoteRequest is a vote on an option
type OptionVoteRequest struct {
	SessionID string `json:"-"`
	OptionID  string `json:"-"`
	UserID    string `json:"-"`
	VoteValue int    `json:"vote_value"`
	Comment   string `json:"comment"`
}

// ElementVoteRequest is a ledger-only vote on any element, such as a lyric line
type ElementVoteRequest struct {
	SessionID   string             `json:"-"`
	UserID      string             `json:"-"`
	ElementType models.ElementType `json:"-"`
	ElementID   string             `json:"-"`
	SongID      string             `json:"song_id"`
	Value       json.RawMessage    `json:"value"`
	VoteValue   int                `json:"vote_value"`
	Comment     string             `json:"comment"`
}

// VoteResult reports a recorded vote with the state it replaced
type VoteResult struct {
	Vote     models.ElementVote    `json:"vote"`
	Previous *models.ElementVote   `json:"previous,omitempty"`
	Option   *models.ElementOption `json:"option,omitempty"`
}

// RecomputeResult reports what a tally rebuild changed
type RecomputeResult struct {
	Options int `json:"options"`
	Drifted int `json:"drifted"`
}

// FinalizeResult is the outcome of deciding one element type
type FinalizeResult struct {
	ElementType models.ElementType     `json:"element_type"`
	Selected    models.ElementOption   `json:"selected"`
	Options     []models.ElementOption `json:"options"`
}

func (s *ElementService) newOption(sessionID, userID string, in OptionInput, order int, userSubmitted bool, now time.Time) (*models.ElementOption, error) {
	if !in.ElementType.Valid() {
		return nil, errors.Validationf("unknown element type %q", in.ElementType)
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return nil, errors.Validation("label is required")
	}
	if len(in.Value) > 0 && !json.Valid(in.Value) {
		return nil, errors.Validation("value must be valid JSON")
	}
	optionID := strings.TrimSpace(in.OptionID)
	if optionID == "" {
		optionID = uuid.NewString()
	}
	if in.Order != nil {
		order = *in.Order
	}
	return &models.ElementOption{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		SongID:          in.SongID,
		ElementType:     in.ElementType,
		OptionID:        optionID,
		Label:           label,
		Description:     in.Description,
		Value:           in.Value,
		Status:          models.OptionPending,
		CreatedBy:       userID,
		IsUserSubmitted: userSubmitted,
		Order:           order,
		VoterIDs:        []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *ElementService) createOption(ctx context.Context, o *models.ElementOption) error {
	if err := s.repo.CreateOption(ctx, o); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return errors.Conflictf("Option %s already exists in this session", o.OptionID)
		}
		s.log.Error("Failed to create option", "session_id", o.SessionID, "option_id", o.OptionID, "error", err)
		return errors.Internal(err)
	}
	return nil
}

func requireStaff(session *models.Session, userID string, now time.Time) error {
	if !access.IsStaff(session, userID) || moderation.IsBanned(session, userID, now) {
		return ErrStaffOnly
	}
	return nil
}

// SeedOptions lets the host or a moderator create the candidate options
func (s *ElementService) SeedOptions(ctx context.Context, sessionID, userID string, inputs []OptionInput) ([]models.ElementOption, error) {
	if len(inputs) == 0 {
		return nil, errors.Validation("at least one option is required")
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

	options := make([]*models.ElementOption, 0, len(inputs))
	for i, in := range inputs {
		o, err := s.newOption(sessionID, userID, in, i, false, now)
		if err != nil {
			return nil, err
		}
		options = append(options, o)
	}

	created := make([]models.ElementOption, 0, len(options))
	for _, o := range options {
		if err := s.createOption(ctx, o); err != nil {
			return created, err
		}
		created = append(created, *o)
		s.publish(models.EventOptionCreated, sessionID, o)
	}

	s.log.Info("Options seeded", "session_id", sessionID, "user_id", userID, "count", len(created))
	return created, nil
}

// SubmitOption lets a participant propose an option. Lyric elements follow
// the lyrics rules; other elements require voting to be open and user
// options to be enabled.
func (s *ElementService) SubmitOption(ctx context.Context, sessionID, userID string, in OptionInput) (*models.ElementOption, error) {
	if err := s.throttle(userID, "submit_option"); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := requireMember(session, userID); err != nil {
		return nil, err
	}
	score, _ := s.standing(ctx, userID)

	if isLyric(in.ElementType) {
		d := lifecycle.CanSubmitLyrics(session, userID, score, now)
		if err := refusal(session, userID, score, d, true, now); err != nil {
			return nil, err
		}
	} else {
		d := lifecycle.CanVote(session, userID, score, now)
		if err := refusal(session, userID, score, d, false, now); err != nil {
			return nil, err
		}
		if moderation.IsMuted(session, userID, now) {
			return nil, errors.Forbidden("You are muted in this session")
		}
		if !session.Settings.AllowUserOptions {
			return nil, errors.BadRequest("User-submitted options are disabled for this session")
		}
	}

	if max := session.Settings.MaxSubmissionsPerUser; max > 0 {
		count, err := s.repo.CountUserOptions(ctx, sessionID, userID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		if count >= max {
			return nil, errors.BadRequestf("Maximum submissions reached (%d)", max)
		}
	}

	o, err := s.newOption(sessionID, userID, in, 0, true, now)
	if err != nil {
		return nil, err
	}
	if in.Order == nil {
		existing, err := s.repo.ListOptions(ctx, repository.OptionFilter{SessionID: sessionID, ElementType: in.ElementType})
		if err != nil {
			return nil, errors.Internal(err)
		}
		o.Order = len(existing)
	}
	if err := s.createOption(ctx, o); err != nil {
		return nil, err
	}

	if _, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		participants.RecordSubmission(session, userID)
		return nil
	}); err != nil {
		s.log.Warn("Failed to record submission stats", "session_id", sessionID, "user_id", userID, "error", err)
	}

	s.log.Info("Option submitted", "session_id", sessionID, "option_id", o.OptionID, "element_type", o.ElementType, "user_id", userID)
	s.publish(models.EventOptionCreated, sessionID, o)
	return o, nil
}

func isLyric(t models.ElementType) bool {
	switch t {
	case models.ElementLyricTheme, models.ElementLyricVerse, models.ElementLyricChorus, models.ElementLyricBridge, models.ElementHook:
		return true
	}
	return false
}

// ListOptions returns the session's options, optionally for one song
func (s *ElementService) ListOptions(ctx context.Context, sessionID, songID string) ([]models.ElementOption, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	options, err := s.repo.ListOptions(ctx, repository.OptionFilter{SessionID: sessionID, SongID: songID})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return options, nil
}

// GroupedOptions returns options grouped by element type with percentages
func (s *ElementService) GroupedOptions(ctx context.Context, sessionID, songID string) ([]models.OptionGroup, error) {
	options, err := s.ListOptions(ctx, sessionID, songID)
	if err != nil {
		return nil, err
	}
	return elements.Group(options), nil
}

// gateVote loads the session and checks that userID may vote right now.
// It returns the session and the weight to snapshot.
func (s *ElementService) gateVote(ctx context.Context, sessionID, userID string) (*models.Session, float64, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	if err := requireMember(session, userID); err != nil {
		return nil, 0, err
	}
	score, weight := s.standing(ctx, userID)
	d := lifecycle.CanVote(session, userID, score, now)
	if err := refusal(session, userID, score, d, false, now); err != nil {
		return nil, 0, err
	}
	if session.Settings.VotingSystem == models.VotingSimple {
		weight = 1.0
	}
	return session, weight, nil
}

// recordVoteStats keeps the participant and session vote counters in step
func (s *ElementService) recordVoteStats(ctx context.Context, sessionID, userID string, delta int) {
	if _, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		participants.RecordVote(session, userID, delta)
		return nil
	}); err != nil {
		s.log.Warn("Failed to record vote stats", "session_id", sessionID, "user_id", userID, "error", err)
	}
}

// Vote casts a vote on an option. The ledger is upserted and the option's
// counters reconciled atomically; repeating the same value is a Conflict.
func (s *ElementService) Vote(ctx context.Context, req OptionVoteRequest) (*VoteResult, error) {
	if err := elements.ValidateVoteValue(req.VoteValue); err != nil {
		return nil, err
	}
	if err := s.throttle(req.UserID, "vote"); err != nil {
		return nil, err
	}
	_, weight, err := s.gateVote(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	option, err := s.repo.GetOption(ctx, req.SessionID, req.OptionID)
	if err != nil {
		return nil, mapRepoError(err, ErrOptionNotFound)
	}
	if option.Status != models.OptionPending {
		return nil, errors.BadRequestf("Voting on %s has been finalized", option.ElementType)
	}

	vote := &models.ElementVote{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		ElementType: option.ElementType,
		ElementID:   option.OptionID,
		SongID:      option.SongID,
		Value:       option.Value,
		VoteValue:   req.VoteValue,
		Weight:      weight,
		Comment:     strings.TrimSpace(req.Comment),
	}
	prev, err := s.repo.CastOptionVote(ctx, vote)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict("You have already cast this vote")
		}
		if !stderrors.Is(err, repository.ErrNotFound) {
			s.log.Error("Failed to cast vote", "session_id", req.SessionID, "option_id", req.OptionID, "user_id", req.UserID, "error", err)
		}
		return nil, mapRepoError(err, ErrOptionNotFound)
	}
	if prev == nil {
		s.recordVoteStats(ctx, req.SessionID, req.UserID, 1)
	}

	updated, _ := s.repo.GetOption(ctx, req.SessionID, req.OptionID)

	s.log.Info("Option vote recorded", "session_id", req.SessionID, "option_id", req.OptionID, "user_id", req.UserID,
		"vote_value", req.VoteValue, "weight", weight, "changed", prev != nil)
	result := &VoteResult{Vote: *vote, Previous: prev, Option: updated}
	s.publish(models.EventOptionVoteRecorded, req.SessionID, result)
	return result, nil
}

// Unvote removes the caller's vote on an option
func (s *ElementService) Unvote(ctx context.Context, sessionID, optionID, userID string) (*models.ElementOption, error) {
	if err := s.throttle(userID, "vote"); err != nil {
		return nil, err
	}
	if _, _, err := s.gateVote(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	current, err := s.repo.GetOption(ctx, sessionID, optionID)
	if err != nil {
		return nil, mapRepoError(err, ErrOptionNotFound)
	}
	if current.Status != models.OptionPending {
		return nil, errors.BadRequestf("Voting on %s has been finalized", current.ElementType)
	}
	if _, err := s.repo.RemoveOptionVote(ctx, sessionID, userID, optionID); err != nil {
		return nil, mapRepoError(err, errors.NotFound("You have not voted on this option"))
	}
	s.recordVoteStats(ctx, sessionID, userID, -1)

	option, err := s.repo.GetOption(ctx, sessionID, optionID)
	if err != nil {
		return nil, mapRepoError(err, ErrOptionNotFound)
	}

	s.log.Info("Option vote removed", "session_id", sessionID, "option_id", optionID, "user_id", userID)
	s.publish(models.EventOptionVoteRemoved, sessionID, option)
	return option, nil
}

// CastElementVote records a ledger-only vote on any element slot, upserting
// an earlier vote by the same user on the same slot
func (s *ElementService) CastElementVote(ctx context.Context, req ElementVoteRequest) (*VoteResult, error) {
	if !req.ElementType.Valid() {
		return nil, errors.Validationf("unknown element type %q", req.ElementType)
	}
	if strings.TrimSpace(req.ElementID) == "" {
		return nil, errors.Validation("element id is required")
	}
	if err := elements.ValidateVoteValue(req.VoteValue); err != nil {
		return nil, err
	}
	if err := s.throttle(req.UserID, "vote"); err != nil {
		return nil, err
	}
	_, weight, err := s.gateVote(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	vote := &models.ElementVote{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		ElementType: req.ElementType,
		ElementID:   req.ElementID,
		SongID:      req.SongID,
		Value:       req.Value,
		VoteValue:   req.VoteValue,
		Weight:      weight,
		Comment:     strings.TrimSpace(req.Comment),
	}
	prev, err := s.repo.UpsertElementVote(ctx, vote)
	if err != nil {
		s.log.Error("Failed to record element vote", "session_id", req.SessionID, "element_id", req.ElementID, "error", err)
		return nil, errors.Internal(err)
	}
	if prev == nil {
		s.recordVoteStats(ctx, req.SessionID, req.UserID, 1)
	}

	s.log.Info("Element vote recorded", "session_id", req.SessionID, "element_type", req.ElementType, "element_id", req.ElementID,
		"user_id", req.UserID, "vote_value", req.VoteValue)
	result := &VoteResult{Vote: *vote, Previous: prev}
	s.publish(models.EventOptionVoteRecorded, req.SessionID, result)
	return result, nil
}

// Results returns grouped options, the current winners and the ledger summary
func (s *ElementService) Results(ctx context.Context, sessionID, songID string) (*models.ElementResults, error) {
	options, err := s.ListOptions(ctx, sessionID, songID)
	if err != nil {
		return nil, err
	}
	votes, err := s.repo.ListElementVotes(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if songID != "" {
		filtered := votes[:0]
		for _, v := range votes {
			if v.SongID == songID {
				filtered = append(filtered, v)
			}
		}
		votes = filtered
	}
	return &models.ElementResults{
		Groups:  elements.Group(options),
		Winners: elements.Winners(options),
		Summary: elements.Summarize(votes),
	}, nil
}

// Progress reports how many element types have been decided
func (s *ElementService) Progress(ctx context.Context, sessionID string) (*models.ElementProgress, error) {
	options, err := s.ListOptions(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	p := elements.Progress(options)
	return &p, nil
}

// Finalize decides an element type from the current tallies
func (s *ElementService) Finalize(ctx context.Context, sessionID, userID string, elementType models.ElementType) (*FinalizeResult, error) {
	if !elementType.Valid() {
		return nil, errors.Validationf("unknown element type %q", elementType)
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireStaff(session, userID, s.now()); err != nil {
		return nil, err
	}

	options, err := s.repo.ListOptions(ctx, repository.OptionFilter{SessionID: sessionID, ElementType: elementType})
	if err != nil {
		return nil, errors.Internal(err)
	}
	decided, err := elements.Finalize(options)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]models.OptionStatus, len(decided))
	for _, o := range decided {
		statuses[o.OptionID] = o.Status
	}
	if err := s.repo.SetOptionStatuses(ctx, sessionID, statuses); err != nil {
		s.log.Error("Failed to store finalized options", "session_id", sessionID, "element_type", elementType, "error", err)
		return nil, mapRepoError(err, ErrOptionNotFound)
	}

	result := &FinalizeResult{ElementType: elementType, Selected: decided[0], Options: decided}
	s.log.Info("Element finalized", "session_id", sessionID, "element_type", elementType, "selected", decided[0].OptionID, "user_id", userID)
	s.publish(models.EventElementFinalized, sessionID, result)
	return result, nil
}

// MyVotes returns the caller's ledger rows
func (s *ElementService) MyVotes(ctx context.Context, sessionID, userID string) ([]models.ElementVote, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	votes, err := s.repo.ListUserElementVotes(ctx, sessionID, userID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return votes, nil
}

// RecomputeTallies rebuilds option counters from the ledger and reports how many had drifted
func (s *ElementService) RecomputeTallies(ctx context.Context, sessionID, userID string) (*RecomputeResult, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := requireStaff(session, userID, s.now()); err != nil {
		return nil, err
	}

	options, err := s.repo.ListOptions(ctx, repository.OptionFilter{SessionID: sessionID})
	if err != nil {
		return nil, errors.Internal(err)
	}
	votes, err := s.repo.ListElementVotes(ctx, sessionID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	expected := elements.Recount(options, votes)
	drifted := 0
	for i := range options {
		if options[i].Votes != expected[i].Votes || !sameWeight(options[i].WeightedVotes, expected[i].WeightedVotes) {
			drifted++
		}
	}

	if err := s.repo.RecomputeTallies(ctx, sessionID); err != nil {
		s.log.Error("Failed to recompute tallies", "session_id", sessionID, "error", err)
		return nil, errors.Internal(err)
	}

	result := &RecomputeResult{Options: len(options), Drifted: drifted}
	if drifted > 0 {
		s.log.Warn("Option tallies had drifted from the ledger", "session_id", sessionID, "drifted", drifted)
	}
	s.log.Info("Tallies recomputed", "session_id", sessionID, "options", len(options), "user_id", userID)
	s.publish(models.EventTalliesRecomputed, sessionID, result)
	return result, nil
}

func sameWeight(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
