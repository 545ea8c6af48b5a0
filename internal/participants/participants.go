// Package participants tracks session membership. Participants are never
// removed from a session; leaving, kicks and bans all deactivate in place.
package participants

import (
	"time"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/models"
)

// JoinResult describes what Join did
type JoinResult struct {
	Participant   models.Participant
	AlreadyActive bool // no-op: the user was already an active participant
	Rejoined      bool // a previously inactive participant was reactivated
}

// Find returns the index of userID in the session's participant list
func Find(s *models.Session, userID string) (int, bool) {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// IsActive reports whether userID is currently an active participant
func IsActive(s *models.Session, userID string) bool {
	i, ok := Find(s, userID)
	return ok && s.Participants[i].IsActive
}

// RoleOf returns the user's role. The session host is always the host.
func RoleOf(s *models.Session, userID string) (models.Role, bool) {
	if userID != "" && userID == s.HostID {
		return models.RoleHost, true
	}
	if i, ok := Find(s, userID); ok {
		return s.Participants[i].Role, true
	}
	return "", false
}

// ActiveCount counts active participants
func ActiveCount(s *models.Session) int {
	n := 0
	for _, p := range s.Participants {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Join adds or reactivates userID. Joining twice while active is a no-op, not an error.
func Join(s *models.Session, userID string, role models.Role, now time.Time) (JoinResult, error) {
	if s.Status.IsTerminal() {
		return JoinResult{}, errors.BadRequestf("Session has been %s and cannot be joined", s.Status)
	}
	if role == "" {
		role = models.RoleParticipant
	}
	if userID == s.HostID {
		role = models.RoleHost
	} else if role == models.RoleHost {
		return JoinResult{}, errors.Forbidden("Only the session owner can join as host")
	}

	i, exists := Find(s, userID)
	if exists && s.Participants[i].IsActive {
		return JoinResult{Participant: s.Participants[i], AlreadyActive: true}, nil
	}

	if max := s.Settings.MaxParticipants; max > 0 && ActiveCount(s) >= max {
		return JoinResult{}, errors.BadRequestf("Session is full (%d participants)", max)
	}

	if exists {
		p := &s.Participants[i]
		p.IsActive = true
		p.JoinedAt = now
		p.LeftAt = nil
		p.KickedBy = ""
		p.KickReason = ""
		if userID == s.HostID {
			p.Role = models.RoleHost
		}
		RefreshStats(s)
		s.UpdatedAt = now
		return JoinResult{Participant: *p, Rejoined: true}, nil
	}

	p := models.Participant{
		UserID:   userID,
		Role:     role,
		IsActive: true,
		JoinedAt: now,
	}
	s.Participants = append(s.Participants, p)
	RefreshStats(s)
	s.UpdatedAt = now
	return JoinResult{Participant: p}, nil
}

// Leave deactivates the caller's own membership
func Leave(s *models.Session, userID string, now time.Time) error {
	if userID == s.HostID {
		return errors.Forbidden("The host cannot leave their own session; cancel it instead")
	}
	i, ok := Find(s, userID)
	if !ok || !s.Participants[i].IsActive {
		return errors.NotFoundf("User %s is not an active participant", userID)
	}
	deactivate(&s.Participants[i], "", "", now)
	RefreshStats(s)
	s.UpdatedAt = now
	return nil
}

// Kick deactivates target with kick metadata
func Kick(s *models.Session, target, by, reason string, now time.Time) error {
	if target == s.HostID {
		return errors.Forbidden("The host cannot be kicked")
	}
	i, ok := Find(s, target)
	if !ok || !s.Participants[i].IsActive {
		return errors.NotFoundf("User %s is not an active participant", target)
	}
	deactivate(&s.Participants[i], by, reason, now)
	RefreshStats(s)
	s.UpdatedAt = now
	return nil
}

// Deactivate is the ban cascade: it marks userID inactive with kick metadata if they are a participant.
func Deactivate(s *models.Session, userID, by, reason string, now time.Time) bool {
	i, ok := Find(s, userID)
	if !ok {
		return false
	}
	deactivate(&s.Participants[i], by, reason, now)
	RefreshStats(s)
	return true
}

func deactivate(p *models.Participant, by, reason string, now time.Time) {
	p.IsActive = false
	t := now
	p.LeftAt = &t
	p.KickedBy = by
	p.KickReason = reason
}

// Promote makes a participant a moderator
func Promote(s *models.Session, userID string, now time.Time) error {
	return setRole(s, userID, models.RoleModerator, now)
}

// Demote makes a moderator a regular participant
func Demote(s *models.Session, userID string, now time.Time) error {
	return setRole(s, userID, models.RoleParticipant, now)
}

func setRole(s *models.Session, userID string, role models.Role, now time.Time) error {
	if userID == s.HostID {
		return errors.Forbidden("The host role cannot be changed")
	}
	i, ok := Find(s, userID)
	if !ok {
		return errors.NotFoundf("User %s is not a participant", userID)
	}
	p := &s.Participants[i]
	if p.Role == models.RoleHost {
		return errors.Forbidden("The host role cannot be changed")
	}
	if p.Role == role {
		return errors.Conflictf("User %s is already a %s", userID, role)
	}
	p.Role = role
	s.UpdatedAt = now
	return nil
}

// RecordVote bumps the per-participant and session vote counters
func RecordVote(s *models.Session, userID string, delta int) {
	if i, ok := Find(s, userID); ok {
		s.Participants[i].VotesCast += delta
		if s.Participants[i].VotesCast < 0 {
			s.Participants[i].VotesCast = 0
		}
	}
	s.Stats.TotalVotes += delta
	if s.Stats.TotalVotes < 0 {
		s.Stats.TotalVotes = 0
	}
}

// RecordSubmission bumps the per-participant and session submission counters
func RecordSubmission(s *models.Session, userID string) {
	if i, ok := Find(s, userID); ok {
		s.Participants[i].SubmissionsMade++
	}
	s.Stats.TotalSubmissions++
}

// RefreshStats recomputes the membership counters from the participant list
func RefreshStats(s *models.Session) {
	s.Stats.TotalParticipants = len(s.Participants)
	s.Stats.ActiveParticipants = ActiveCount(s)
}
