// Package access resolves what a user may do in a session into one
// permission record, computed once per request.
package access

import (
	"time"

	"github.com/crowdsong/crowdsong/internal/lifecycle"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
)

// Permissions is the capability set of one user in one session
type Permissions struct {
	UserID           string      `json:"user_id"`
	Role             models.Role `json:"role,omitempty"`
	IsParticipant    bool        `json:"is_participant"`
	IsBanned         bool        `json:"is_banned"`
	IsMuted          bool        `json:"is_muted"`
	CanVote          bool        `json:"can_vote"`
	CanSubmitLyrics  bool        `json:"can_submit_lyrics"`
	CanAddSong       bool        `json:"can_add_song"`
	CanSubmitOption  bool        `json:"can_submit_option"`
	CanGiveFeedback  bool        `json:"can_give_feedback"`
	CanKick          bool        `json:"can_kick"`
	CanBan           bool        `json:"can_ban"`
	CanMute          bool        `json:"can_mute"`
	CanManageRoles   bool        `json:"can_manage_roles"`
	CanManageOptions bool        `json:"can_manage_options"`
	CanManageStage   bool        `json:"can_manage_stage"`
	CanEdit          bool        `json:"can_edit"`

	// Reasons holds the refusal reason for each action predicate that denied
	Reasons map[string]string `json:"reasons,omitempty"`
}

// Resolve builds the permission record for userID
func Resolve(s *models.Session, userID string, reputation float64, now time.Time) Permissions {
	p := Permissions{
		UserID:   userID,
		IsBanned: moderation.IsBanned(s, userID, now),
		IsMuted:  moderation.IsMuted(s, userID, now),
		Reasons:  map[string]string{},
	}
	role, known := participants.RoleOf(s, userID)
	if known {
		p.Role = role
	}
	p.IsParticipant = userID == s.HostID || participants.IsActive(s, userID)

	isHost := role == models.RoleHost
	isStaff := known && (isHost || role == models.RoleModerator) && !p.IsBanned && (isHost || participants.IsActive(s, userID))

	decide := func(name string, d models.Decision) bool {
		if !d.Allowed {
			p.Reasons[name] = d.Reason
			return false
		}
		if !p.IsParticipant {
			p.Reasons[name] = "You must join the session first"
			return false
		}
		return true
	}

	p.CanVote = decide("vote", lifecycle.CanVote(s, userID, reputation, now))
	p.CanSubmitLyrics = decide("submit_lyrics", lifecycle.CanSubmitLyrics(s, userID, reputation, now))
	p.CanAddSong = decide("add_song", lifecycle.CanAddSong(s, userID, reputation, now))
	p.CanSubmitOption = p.CanVote && !p.IsMuted && s.Settings.AllowUserOptions
	p.CanGiveFeedback = p.IsParticipant && !p.IsBanned && s.Settings.AllowFeedback

	p.CanKick = isStaff
	p.CanBan = isStaff
	p.CanMute = isStaff
	p.CanManageOptions = isStaff
	p.CanManageRoles = isHost
	p.CanManageStage = isHost
	p.CanEdit = isHost

	if len(p.Reasons) == 0 {
		p.Reasons = nil
	}
	return p
}

// IsStaff reports whether userID is the host or an active moderator
func IsStaff(s *models.Session, userID string) bool {
	if userID == s.HostID {
		return true
	}
	i, ok := participants.Find(s, userID)
	return ok && s.Participants[i].IsActive && s.Participants[i].Role == models.RoleModerator
}

// CanModerate reports whether actor may kick, ban or mute target.
// Moderators cannot act on other moderators; nobody can act on the host.
func CanModerate(s *models.Session, actor, target string, now time.Time) models.Decision {
	if actor == target {
		return models.Deny("You cannot moderate yourself")
	}
	if target == s.HostID {
		return models.Deny("The host cannot be moderated")
	}
	if !IsStaff(s, actor) || moderation.IsBanned(s, actor, now) {
		return models.Deny("Only the host or a moderator can moderate participants")
	}
	if actor != s.HostID {
		if role, ok := participants.RoleOf(s, target); ok && role == models.RoleModerator {
			return models.Deny("Only the host can moderate another moderator")
		}
	}
	return models.Allow()
}
