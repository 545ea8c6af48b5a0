package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/crowdsong/crowdsong/internal/access"
	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/lifecycle"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

const (
	defaultMaxParticipants = 100
	maxCodeAttempts        = 10
)

// SessionService handles session lifecycle, membership, songs and feedback
type SessionService struct {
	core
	repo    repository.SessionRepository
	baseURL string
}

// NewSessionService creates a new SessionService
func NewSessionService(log logger.Logger, repo repository.SessionRepository, rep reputation.Client) *SessionService {
	return &SessionService{
		core: newCore(log, repo, rep),
		repo: repo,
	}
}

// SetBaseURL sets the public URL used in join links
func (s *SessionService) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// CreateSessionRequest holds the fields a host supplies when creating a session
type CreateSessionRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Genre       string                 `json:"genre"`
	Mood        string                 `json:"mood"`
	Theme       string                 `json:"theme"`
	Visibility  models.Visibility      `json:"visibility"`
	Settings    models.SessionSettings `json:"settings"`
}

// UpdateSessionRequest is a partial update. Nil fields are left unchanged.
type UpdateSessionRequest struct {
	Title                 *string              `json:"title"`
	Description           *string              `json:"description"`
	Genre                 *string              `json:"genre"`
	Mood                  *string              `json:"mood"`
	Theme                 *string              `json:"theme"`
	Visibility            *models.Visibility   `json:"visibility"`
	MaxParticipants       *int                 `json:"max_participants"`
	VotingSystem          *models.VotingSystem `json:"voting_system"`
	MinReputation         *float64             `json:"min_reputation"`
	MaxSubmissionsPerUser *int                 `json:"max_submissions_per_user"`
	LyricsDeadline        *time.Time           `json:"lyrics_deadline"`
	VotingDeadline        *time.Time           `json:"voting_deadline"`
	EndsAt                *time.Time           `json:"ends_at"`
	AllowSongRequests     *bool                `json:"allow_song_requests"`
	AllowUserOptions      *bool                `json:"allow_user_options"`
	AllowFeedback         *bool                `json:"allow_feedback"`
}

// AddSongRequest describes a song to queue
type AddSongRequest struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AudioURL string `json:"audio_url"`
}

// StageChange is the payload of stage events
type StageChange struct {
	SessionID string               `json:"session_id"`
	From      models.SessionStatus `json:"from"`
	To        models.SessionStatus `json:"to"`
	Stage     int                  `json:"stage"`
}

// ParticipantChange is the payload of membership events
type ParticipantChange struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role,omitempty"`
	By        string      `json:"by,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// GenerateReadableCode creates a human-friendly join code like "AB-CDE".
// The alphabet leaves out characters that are easy to confuse (0/O, 1/I/L).
func GenerateReadableCode(seed string) string {
	const chars = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

	hash := sha256.Sum256([]byte(seed))
	num := binary.BigEndian.Uint64(hash[:8])

	code := make([]byte, 5)
	for i := 0; i < 5; i++ {
		code[i] = chars[num%uint64(len(chars))]
		num /= uint64(len(chars))
	}

	return fmt.Sprintf("%s-%s", string(code[:2]), string(code[2:]))
}

func (s *SessionService) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := GenerateReadableCode(uuid.NewString())
		exists, err := s.repo.SessionCodeExists(ctx, code)
		if err != nil {
			return "", errors.Internal(fmt.Errorf("error checking code uniqueness: %w", err))
		}
		if !exists {
			return code, nil
		}
		s.log.Debug("Generated code already exists, retrying", "code", code, "attempt", i+1)
	}
	return "", errors.Internalf("failed to generate unique code after %d attempts", maxCodeAttempts)
}

func validVisibility(v models.Visibility) bool {
	switch v {
	case models.VisibilityPublic, models.VisibilityUnlisted, models.VisibilityPrivate:
		return true
	}
	return false
}

func validateSettings(st models.SessionSettings) error {
	if st.MaxParticipants < 0 {
		return errors.Validation("max_participants must not be negative")
	}
	if st.MaxSubmissionsPerUser < 0 {
		return errors.Validation("max_submissions_per_user must not be negative")
	}
	if st.MinReputation < 0 {
		return errors.Validation("min_reputation must not be negative")
	}
	switch st.VotingSystem {
	case models.VotingSimple, models.VotingWeighted:
	default:
		return errors.Validationf("unknown voting system %q", st.VotingSystem)
	}
	if st.LyricsDeadline != nil && st.VotingDeadline != nil && st.VotingDeadline.Before(*st.LyricsDeadline) {
		return errors.Validation("voting_deadline must not be before lyrics_deadline")
	}
	return nil
}

// CreateSession creates a draft session owned by hostID
func (s *SessionService) CreateSession(ctx context.Context, hostID string, req CreateSessionRequest) (*models.Session, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, errors.Validation("title is required")
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}
	if !validVisibility(req.Visibility) {
		return nil, errors.Validationf("unknown visibility %q", req.Visibility)
	}
	settings := req.Settings
	if settings.MaxParticipants == 0 {
		settings.MaxParticipants = defaultMaxParticipants
	}
	if settings.VotingSystem == "" {
		settings.VotingSystem = models.VotingWeighted
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.Session{
		ID:          uuid.NewString(),
		Code:        code,
		HostID:      hostID,
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
		Mood:        req.Mood,
		Theme:       req.Theme,
		Visibility:  req.Visibility,
		Status:      models.StatusDraft,
		Settings:    settings,
		Participants: []models.Participant{
			{UserID: hostID, Role: models.RoleHost, IsActive: true, JoinedAt: now},
		},
		Songs:       []models.Song{},
		Feedback:    []models.Feedback{},
		BannedUsers: []models.ModerationEntry{},
		MutedUsers:  []models.ModerationEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	session.Stage, _ = lifecycle.StageOf(session.Status)
	participants.RefreshStats(session)

	if err := s.repo.CreateSession(ctx, session); err != nil {
		s.log.Error("Failed to create session", "host_id", hostID, "error", err)
		return nil, mapRepoError(err, ErrSessionNotFound)
	}

	s.log.Info("Session created", "session_id", session.ID, "code", session.Code, "host_id", hostID)
	s.publish(models.EventSessionCreated, session.ID, session)
	return session, nil
}

// ListSessions returns sessions matching filter
func (s *SessionService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return sessions, nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.loadSession(ctx, id)
}

// GetSessionByCode retrieves a session by its join code
func (s *SessionService) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.repo.GetSessionByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, mapRepoError(err, ErrSessionNotFound)
	}
	return session, nil
}

func requireHost(session *models.Session, userID string) error {
	if session.HostID != userID {
		return ErrHostOnly
	}
	return nil
}

// UpdateSession applies a partial update. Only the host may edit, and
// finished sessions are read-only.
func (s *SessionService) UpdateSession(ctx context.Context, id, userID string, req UpdateSessionRequest) (*models.Session, error) {
	session, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if err := requireHost(session, userID); err != nil {
			return err
		}
		if session.Status.IsTerminal() {
			return errors.BadRequestf("Session has been %s and can no longer be edited", session.Status)
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return errors.Validation("title must not be empty")
			}
			session.Title = title
		}
		if req.Description != nil {
			session.Description = *req.Description
		}
		if req.Genre != nil {
			session.Genre = *req.Genre
		}
		if req.Mood != nil {
			session.Mood = *req.Mood
		}
		if req.Theme != nil {
			session.Theme = *req.Theme
		}
		if req.Visibility != nil {
			if !validVisibility(*req.Visibility) {
				return errors.Validationf("unknown visibility %q", *req.Visibility)
			}
			session.Visibility = *req.Visibility
		}

		st := &session.Settings
		if req.MaxParticipants != nil {
			st.MaxParticipants = *req.MaxParticipants
		}
		if req.VotingSystem != nil {
			st.VotingSystem = *req.VotingSystem
		}
		if req.MinReputation != nil {
			st.MinReputation = *req.MinReputation
		}
		if req.MaxSubmissionsPerUser != nil {
			st.MaxSubmissionsPerUser = *req.MaxSubmissionsPerUser
		}
		if req.LyricsDeadline != nil {
			st.LyricsDeadline = req.LyricsDeadline
		}
		if req.VotingDeadline != nil {
			st.VotingDeadline = req.VotingDeadline
		}
		if req.EndsAt != nil {
			st.EndsAt = req.EndsAt
		}
		if req.AllowSongRequests != nil {
			st.AllowSongRequests = *req.AllowSongRequests
		}
		if req.AllowUserOptions != nil {
			st.AllowUserOptions = *req.AllowUserOptions
		}
		if req.AllowFeedback != nil {
			st.AllowFeedback = *req.AllowFeedback
		}
		return validateSettings(*st)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Session updated", "session_id", id, "user_id", userID)
	s.publish(models.EventSessionUpdated, id, session)
	return session, nil
}

// transition runs a host-only status change and publishes the stage event
func (s *SessionService) transition(ctx context.Context, id, userID, action string, fn func(session *models.Session, now time.Time) error) (*models.Session, error) {
	var from models.SessionStatus
	session, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if err := requireHost(session, userID); err != nil {
			return err
		}
		from = session.Status
		return fn(session, now)
	})
	if err != nil {
		if errors.IsInvalidTransition(err) {
			s.log.Debug("Stage change refused", "session_id", id, "action", action, "error", err)
		}
		return nil, err
	}

	s.log.Info("Session stage changed", "session_id", id, "action", action, "from", from, "to", session.Status, "stage", session.Stage)
	eventType := models.EventStageAdvanced
	if session.Status == models.StatusCancelled {
		eventType = models.EventSessionCancelled
	}
	s.publish(eventType, id, StageChange{SessionID: id, From: from, To: session.Status, Stage: session.Stage})
	return session, nil
}

// Advance moves the session to the next stage of the pipeline
func (s *SessionService) Advance(ctx context.Context, id, userID string) (*models.Session, error) {
	return s.transition(ctx, id, userID, "advance", func(session *models.Session, now time.Time) error {
		_, err := lifecycle.Advance(session, now)
		return err
	})
}

// Start takes a waiting session live
func (s *SessionService) Start(ctx context.Context, id, userID string) (*models.Session, error) {
	return s.transition(ctx, id, userID, "start", lifecycle.Start)
}

// Pause suspends an active session
func (s *SessionService) Pause(ctx context.Context, id, userID string) (*models.Session, error) {
	return s.transition(ctx, id, userID, "pause", lifecycle.Pause)
}

// Resume continues a paused session
func (s *SessionService) Resume(ctx context.Context, id, userID string) (*models.Session, error) {
	return s.transition(ctx, id, userID, "resume", lifecycle.Resume)
}

// Cancel ends a session permanently
func (s *SessionService) Cancel(ctx context.Context, id, userID string) (*models.Session, error) {
	return s.transition(ctx, id, userID, "cancel", lifecycle.Cancel)
}

// CompleteExpired completes every live session whose end time has passed
func (s *SessionService) CompleteExpired(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListSessionsEndingBefore(ctx, now)
	if err != nil {
		return 0, errors.Internal(err)
	}

	completed := 0
	for _, d := range due {
		var from models.SessionStatus
		session, err := s.mutateSession(ctx, d.ID, func(session *models.Session, now time.Time) error {
			from = session.Status
			return lifecycle.Complete(session, now)
		})
		if err != nil {
			if !errors.IsInvalidTransition(err) {
				s.log.Warn("Failed to complete expired session", "session_id", d.ID, "error", err)
			}
			continue
		}
		completed++
		s.log.Info("Session completed at end time", "session_id", d.ID, "from", from)
		s.publish(models.EventStageAdvanced, d.ID, StageChange{SessionID: d.ID, From: from, To: session.Status, Stage: session.Stage})
	}
	return completed, nil
}

// Join adds userID to the session. Banned users are refused with the ban's
// expiry, and joining twice is a Conflict.
func (s *SessionService) Join(ctx context.Context, id, userID string) (*models.Participant, error) {
	if err := s.throttle(userID, "join"); err != nil {
		return nil, err
	}

	var result participants.JoinResult
	_, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if ban, banned := moderation.ActiveBan(session, userID, now); banned {
			if ban.ExpiresAt != nil {
				return errors.Forbiddenf("You are banned from this session until %s", ban.ExpiresAt.Format(time.RFC3339))
			}
			return errors.Forbidden("You are banned from this session")
		}
		var err error
		result, err = participants.Join(session, userID, models.RoleParticipant, now)
		if err != nil {
			return err
		}
		if result.AlreadyActive {
			return errors.Conflict("You have already joined this session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Participant joined", "session_id", id, "user_id", userID, "rejoined", result.Rejoined)
	s.publish(models.EventParticipantJoined, id, ParticipantChange{SessionID: id, UserID: userID, Role: result.Participant.Role})
	return &result.Participant, nil
}

// Leave deactivates the caller's membership
func (s *SessionService) Leave(ctx context.Context, id, userID string) error {
	_, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		return participants.Leave(session, userID, now)
	})
	if err != nil {
		return err
	}

	s.log.Info("Participant left", "session_id", id, "user_id", userID)
	s.publish(models.EventParticipantLeft, id, ParticipantChange{SessionID: id, UserID: userID})
	return nil
}

// Permissions resolves what userID may do in the session right now
func (s *SessionService) Permissions(ctx context.Context, id, userID string) (*access.Permissions, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	score, _ := s.standing(ctx, userID)
	p := access.Resolve(session, userID, score, s.now())
	return &p, nil
}

// JoinURL returns the link participants open to join the session
func (s *SessionService) JoinURL(session *models.Session) (string, error) {
	if s.baseURL == "" {
		return "", errors.BadRequest("Base URL is not configured")
	}
	return fmt.Sprintf("%s/join/%s", s.baseURL, session.Code), nil
}

// JoinQRCode renders the session's join link as a PNG QR code
func (s *SessionService) JoinQRCode(ctx context.Context, id string) ([]byte, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	joinURL, err := s.JoinURL(session)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("encode join QR: %w", err))
	}
	return png, nil
}

// AddSong queues a song for the session
func (s *SessionService) AddSong(ctx context.Context, id, userID string, req AddSongRequest) (*models.Song, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, errors.Validation("title is required")
	}
	if err := s.throttle(userID, "add_song"); err != nil {
		return nil, err
	}
	score, _ := s.standing(ctx, userID)

	var song models.Song
	_, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if err := requireMember(session, userID); err != nil {
			return err
		}
		d := lifecycle.CanAddSong(session, userID, score, now)
		if err := refusal(session, userID, score, d, true, now); err != nil {
			return err
		}
		song = models.Song{
			ID:       uuid.NewString(),
			Title:    req.Title,
			Artist:   req.Artist,
			AudioURL: req.AudioURL,
			AddedBy:  userID,
			AddedAt:  now,
			Votes:    []models.SongVote{},
		}
		session.Songs = append(session.Songs, song)
		session.Stats.TotalSongs = len(session.Songs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Song added", "session_id", id, "song_id", song.ID, "user_id", userID)
	s.publish(models.EventSongAdded, id, song)
	return &song, nil
}

func songScore(song *models.Song) float64 {
	score := 0.0
	for _, v := range song.Votes {
		score += float64(v.Value) * v.Weight
	}
	return score
}

// VoteSong records an up (1) or down (-1) vote on a queued song. Changing
// the value replaces the earlier vote; repeating it is a Conflict.
func (s *SessionService) VoteSong(ctx context.Context, id, songID, userID string, value int) (*models.Song, error) {
	if value != 1 && value != -1 {
		return nil, errors.BadRequestf("Song vote must be 1 or -1, got %d", value)
	}
	if err := s.throttle(userID, "vote"); err != nil {
		return nil, err
	}
	score, weight := s.standing(ctx, userID)

	var song models.Song
	_, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if err := requireMember(session, userID); err != nil {
			return err
		}
		d := lifecycle.CanVote(session, userID, score, now)
		if err := refusal(session, userID, score, d, false, now); err != nil {
			return err
		}

		idx := -1
		for i := range session.Songs {
			if session.Songs[i].ID == songID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errors.NotFound("Song not found")
		}
		target := &session.Songs[idx]

		w := weight
		if session.Settings.VotingSystem == models.VotingSimple {
			w = 1.0
		}
		vote := models.SongVote{UserID: userID, Value: value, Weight: w, VotedAt: now}

		replaced := false
		for i := range target.Votes {
			if target.Votes[i].UserID != userID {
				continue
			}
			if target.Votes[i].Value == value {
				return errors.Conflict("You have already voted on this song")
			}
			target.Votes[i] = vote
			replaced = true
			break
		}
		if !replaced {
			target.Votes = append(target.Votes, vote)
			participants.RecordVote(session, userID, 1)
		}
		target.Score = songScore(target)
		song = *target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Song vote recorded", "session_id", id, "song_id", songID, "user_id", userID, "value", value)
	s.publish(models.EventSongVoteRecorded, id, song)
	return &song, nil
}

// AddFeedback records the caller's 1-5 rating of the session, replacing any earlier one
func (s *SessionService) AddFeedback(ctx context.Context, id, userID string, rating int, comment string) (*models.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, errors.BadRequestf("Rating must be between 1 and 5, got %d", rating)
	}
	if err := s.throttle(userID, "feedback"); err != nil {
		return nil, err
	}

	var fb models.Feedback
	_, err := s.mutateSession(ctx, id, func(session *models.Session, now time.Time) error {
		if err := requireMember(session, userID); err != nil {
			return err
		}
		if moderation.IsBanned(session, userID, now) {
			return errors.Forbidden("You are banned from this session")
		}
		if !session.Settings.AllowFeedback {
			return errors.BadRequest("Feedback is disabled for this session")
		}
		fb = models.Feedback{UserID: userID, Rating: rating, Comment: strings.TrimSpace(comment), CreatedAt: now}
		for i := range session.Feedback {
			if session.Feedback[i].UserID == userID {
				session.Feedback[i] = fb
				return nil
			}
		}
		session.Feedback = append(session.Feedback, fb)
		session.Stats.TotalFeedback = len(session.Feedback)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Feedback recorded", "session_id", id, "user_id", userID, "rating", rating)
	s.publish(models.EventFeedbackAdded, id, fb)
	return &fb, nil
}
