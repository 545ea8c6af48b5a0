// Package moderation answers whether a user is banned or muted in a session
// and maintains the session's ban and mute lists.
package moderation

import (
	"time"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/participants"
)

// IsBanned reports whether userID has a non-expired ban
func IsBanned(s *models.Session, userID string, now time.Time) bool {
	_, ok := activeEntry(s.BannedUsers, userID, now)
	return ok
}

// IsMuted reports whether userID has a non-expired mute
func IsMuted(s *models.Session, userID string, now time.Time) bool {
	_, ok := activeEntry(s.MutedUsers, userID, now)
	return ok
}

// ActiveBan returns the ban currently in force for userID
func ActiveBan(s *models.Session, userID string, now time.Time) (models.ModerationEntry, bool) {
	return activeEntry(s.BannedUsers, userID, now)
}

// Ban replaces any earlier ban for userID and deactivates their participation.
// A zero duration bans permanently.
func Ban(s *models.Session, userID, by, reason string, duration time.Duration, now time.Time) (models.ModerationEntry, error) {
	if userID == s.HostID {
		return models.ModerationEntry{}, errors.Forbidden("The host cannot be banned from their own session")
	}
	entry := newEntry(userID, by, reason, duration, now)
	s.BannedUsers = replace(s.BannedUsers, entry)
	participants.Deactivate(s, userID, by, reason, now)
	s.UpdatedAt = now
	return entry, nil
}

// Mute replaces any earlier mute for userID. Muted users keep voting rights.
func Mute(s *models.Session, userID, by, reason string, duration time.Duration, now time.Time) (models.ModerationEntry, error) {
	if userID == s.HostID {
		return models.ModerationEntry{}, errors.Forbidden("The host cannot be muted in their own session")
	}
	entry := newEntry(userID, by, reason, duration, now)
	s.MutedUsers = replace(s.MutedUsers, entry)
	s.UpdatedAt = now
	return entry, nil
}

// Unban removes userID's ban, expired or not
func Unban(s *models.Session, userID string, now time.Time) error {
	list, ok := remove(s.BannedUsers, userID)
	if !ok {
		return errors.NotFoundf("No ban found for user %s", userID)
	}
	s.BannedUsers = list
	s.UpdatedAt = now
	return nil
}

// Unmute removes userID's mute, expired or not
func Unmute(s *models.Session, userID string, now time.Time) error {
	list, ok := remove(s.MutedUsers, userID)
	if !ok {
		return errors.NotFoundf("No mute found for user %s", userID)
	}
	s.MutedUsers = list
	s.UpdatedAt = now
	return nil
}

// Active filters entries down to the ones still in force
func Active(entries []models.ModerationEntry, now time.Time) []models.ModerationEntry {
	var active []models.ModerationEntry
	for _, e := range entries {
		if inForce(e, now) {
			active = append(active, e)
		}
	}
	return active
}

func newEntry(userID, by, reason string, duration time.Duration, now time.Time) models.ModerationEntry {
	entry := models.ModerationEntry{
		UserID:    userID,
		By:        by,
		Reason:    reason,
		CreatedAt: now,
	}
	if duration > 0 {
		expires := now.Add(duration)
		entry.ExpiresAt = &expires
	}
	return entry
}

func inForce(e models.ModerationEntry, now time.Time) bool {
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

func activeEntry(entries []models.ModerationEntry, userID string, now time.Time) (models.ModerationEntry, bool) {
	for _, e := range entries {
		if e.UserID == userID && inForce(e, now) {
			return e, true
		}
	}
	return models.ModerationEntry{}, false
}

// replace keeps at most one entry per user; the latest wins
func replace(entries []models.ModerationEntry, entry models.ModerationEntry) []models.ModerationEntry {
	out, _ := remove(entries, entry.UserID)
	return append(out, entry)
}

func remove(entries []models.ModerationEntry, userID string) ([]models.ModerationEntry, bool) {
	out := entries[:0:0]
	found := false
	for _, e := range entries {
		if e.UserID == userID {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}
