package services

import (
	"context"
	"time"

	"github.com/crowdsong/crowdsong/internal/access"
	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

// ModerationService bans, mutes, kicks and changes roles of participants
type ModerationService struct {
	core
}

// NewModerationService creates a new ModerationService
func NewModerationService(log logger.Logger, repo repository.SessionRepository, rep reputation.Client) *ModerationService {
	return &ModerationService{core: newCore(log, repo, rep)}
}

// ModerationRequest carries the optional reason and duration of a ban or mute.
// The duration may be given in seconds or milliseconds, not both. A zero
// duration is permanent.
type ModerationRequest struct {
	Reason          string `json:"reason"`
	DurationSeconds int64  `json:"duration_seconds"`
	DurationMs      int64  `json:"duration_ms"`
}

func (r ModerationRequest) duration() (time.Duration, error) {
	switch {
	case r.DurationSeconds < 0:
		return 0, errors.Validation("duration_seconds must not be negative")
	case r.DurationMs < 0:
		return 0, errors.Validation("duration_ms must not be negative")
	case r.DurationSeconds > 0 && r.DurationMs > 0:
		return 0, errors.Validation("give duration_seconds or duration_ms, not both")
	case r.DurationMs > 0:
		return time.Duration(r.DurationMs) * time.Millisecond, nil
	}
	return time.Duration(r.DurationSeconds) * time.Second, nil
}

// ModerationEvent is the payload of moderation events
type ModerationEvent struct {
	SessionID string                  `json:"session_id"`
	UserID    string                  `json:"user_id"`
	By        string                  `json:"by"`
	Entry     *models.ModerationEntry `json:"entry,omitempty"`
}

func canModerate(session *models.Session, actor, target string, now time.Time) error {
	if d := access.CanModerate(session, actor, target, now); !d.Allowed {
		return errors.Forbidden(d.Reason)
	}
	return nil
}

// Ban bans target from the session and deactivates their membership
func (s *ModerationService) Ban(ctx context.Context, sessionID, actorID, target string, req ModerationRequest) (*models.ModerationEntry, error) {
	duration, err := req.duration()
	if err != nil {
		return nil, err
	}
	var entry models.ModerationEntry
	_, err = s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := canModerate(session, actorID, target, now); err != nil {
			return err
		}
		var err error
		entry, err = moderation.Ban(session, target, actorID, req.Reason, duration, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Participant banned", "session_id", sessionID, "user_id", target, "by", actorID, "permanent", entry.ExpiresAt == nil)
	s.publish(models.EventParticipantBanned, sessionID, ModerationEvent{SessionID: sessionID, UserID: target, By: actorID, Entry: &entry})
	return &entry, nil
}

// Unban lifts target's ban
func (s *ModerationService) Unban(ctx context.Context, sessionID, actorID, target string) error {
	_, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := requireStaff(session, actorID, now); err != nil {
			return err
		}
		return moderation.Unban(session, target, now)
	})
	if err != nil {
		return err
	}

	s.log.Info("Participant unbanned", "session_id", sessionID, "user_id", target, "by", actorID)
	s.publish(models.EventParticipantUnbanned, sessionID, ModerationEvent{SessionID: sessionID, UserID: target, By: actorID})
	return nil
}

// Mute stops target from submitting content while still letting them vote
func (s *ModerationService) Mute(ctx context.Context, sessionID, actorID, target string, req ModerationRequest) (*models.ModerationEntry, error) {
	duration, err := req.duration()
	if err != nil {
		return nil, err
	}
	var entry models.ModerationEntry
	_, err = s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := canModerate(session, actorID, target, now); err != nil {
			return err
		}
		var err error
		entry, err = moderation.Mute(session, target, actorID, req.Reason, duration, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Participant muted", "session_id", sessionID, "user_id", target, "by", actorID, "permanent", entry.ExpiresAt == nil)
	s.publish(models.EventParticipantMuted, sessionID, ModerationEvent{SessionID: sessionID, UserID: target, By: actorID, Entry: &entry})
	return &entry, nil
}

// Unmute lifts target's mute
func (s *ModerationService) Unmute(ctx context.Context, sessionID, actorID, target string) error {
	_, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := requireStaff(session, actorID, now); err != nil {
			return err
		}
		return moderation.Unmute(session, target, now)
	})
	if err != nil {
		return err
	}

	s.log.Info("Participant unmuted", "session_id", sessionID, "user_id", target, "by", actorID)
	s.publish(models.EventParticipantUnmuted, sessionID, ModerationEvent{SessionID: sessionID, UserID: target, By: actorID})
	return nil
}

// Kick removes target from the session; they may join again
func (s *ModerationService) Kick(ctx context.Context, sessionID, actorID, target, reason string) error {
	_, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := canModerate(session, actorID, target, now); err != nil {
			return err
		}
		return participants.Kick(session, target, actorID, reason, now)
	})
	if err != nil {
		return err
	}

	s.log.Info("Participant kicked", "session_id", sessionID, "user_id", target, "by", actorID)
	s.publish(models.EventParticipantKicked, sessionID, ParticipantChange{SessionID: sessionID, UserID: target, By: actorID, Reason: reason})
	return nil
}

// Promote makes target a moderator. Only the host manages roles.
func (s *ModerationService) Promote(ctx context.Context, sessionID, actorID, target string) (*models.Participant, error) {
	return s.setRole(ctx, sessionID, actorID, target, participants.Promote)
}

// Demote returns a moderator to participant
func (s *ModerationService) Demote(ctx context.Context, sessionID, actorID, target string) (*models.Participant, error) {
	return s.setRole(ctx, sessionID, actorID, target, participants.Demote)
}

func (s *ModerationService) setRole(ctx context.Context, sessionID, actorID, target string, change func(*models.Session, string, time.Time) error) (*models.Participant, error) {
	var p models.Participant
	_, err := s.mutateSession(ctx, sessionID, func(session *models.Session, now time.Time) error {
		if err := requireHost(session, actorID); err != nil {
			return err
		}
		if err := change(session, target, now); err != nil {
			return err
		}
		i, _ := participants.Find(session, target)
		p = session.Participants[i]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Participant role changed", "session_id", sessionID, "user_id", target, "role", p.Role, "by", actorID)
	s.publish(models.EventRoleChanged, sessionID, ParticipantChange{SessionID: sessionID, UserID: target, Role: p.Role, By: actorID})
	return &p, nil
}
