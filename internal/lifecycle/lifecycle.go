// Package lifecycle owns the session stage state machine and the predicates
// that gate every participant action on the session's current stage.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
)

// nextStatus is the fixed advance table. Statuses missing here cannot advance.
var nextStatus = map[models.SessionStatus]models.SessionStatus{
	models.StatusDraft:        models.StatusWaiting,
	models.StatusWaiting:      models.StatusLyricsOpen,
	models.StatusLyricsOpen:   models.StatusLyricsVoting,
	models.StatusLyricsVoting: models.StatusGeneration,
	models.StatusGeneration:   models.StatusSongVoting,
	models.StatusSongVoting:   models.StatusCompleted,
	models.StatusActive:       models.StatusCompleted,
}

var stageOf = map[models.SessionStatus]int{
	models.StatusDraft:        1,
	models.StatusWaiting:      1,
	models.StatusLyricsOpen:   2,
	models.StatusActive:       2,
	models.StatusPaused:       2,
	models.StatusLyricsVoting: 3,
	models.StatusGeneration:   4,
	models.StatusSongVoting:   5,
	models.StatusCompleted:    6,
	models.StatusCancelled:    6,
}

// StageOf returns the numeric stage for a status
func StageOf(status models.SessionStatus) (int, bool) {
	stage, ok := stageOf[status]
	return stage, ok
}

// ValidPair reports whether (status, stage) appears in the stage table
func ValidPair(status models.SessionStatus, stage int) bool {
	want, ok := stageOf[status]
	return ok && want == stage
}

// Next returns the status advance would move to
func Next(status models.SessionStatus) (models.SessionStatus, bool) {
	next, ok := nextStatus[status]
	return next, ok
}

// ValidStatus reports whether status is one of the known statuses
func ValidStatus(status models.SessionStatus) bool {
	_, ok := stageOf[status]
	return ok
}

// Advance moves the session one step along the pipeline and returns the status it left.
func Advance(s *models.Session, now time.Time) (models.SessionStatus, error) {
	from := s.Status
	next, ok := nextStatus[from]
	if !ok {
		return from, errors.InvalidTransitionf("Cannot advance a session from status %q", from)
	}
	setStatus(s, next, now)
	return from, nil
}

// Start takes a waiting session live in free-form mode
func Start(s *models.Session, now time.Time) error {
	if s.Status != models.StatusWaiting {
		return errors.InvalidTransitionf("Only a waiting session can be started (current status %q)", s.Status)
	}
	setStatus(s, models.StatusActive, now)
	return nil
}

// Pause suspends an active session, remembering where it was
func Pause(s *models.Session, now time.Time) error {
	if s.Status != models.StatusActive {
		return errors.InvalidTransitionf("Only an active session can be paused (current status %q)", s.Status)
	}
	s.PreviousStatus = s.Status
	setStatus(s, models.StatusPaused, now)
	return nil
}

// Resume restores the status recorded by Pause
func Resume(s *models.Session, now time.Time) error {
	if s.Status != models.StatusPaused {
		return errors.InvalidTransitionf("Only a paused session can be resumed (current status %q)", s.Status)
	}
	previous := s.PreviousStatus
	if previous == "" {
		previous = models.StatusActive
	}
	s.PreviousStatus = ""
	setStatus(s, previous, now)
	return nil
}

// Cancel ends the session permanently
func Cancel(s *models.Session, now time.Time) error {
	if s.Status.IsTerminal() {
		return errors.InvalidTransitionf("Session is already %s", s.Status)
	}
	setStatus(s, models.StatusCancelled, now)
	return nil
}

// Complete ends the session successfully from any non-terminal status; used by the deadline sweeper
func Complete(s *models.Session, now time.Time) error {
	if s.Status.IsTerminal() {
		return errors.InvalidTransitionf("Session is already %s", s.Status)
	}
	setStatus(s, models.StatusCompleted, now)
	return nil
}

func setStatus(s *models.Session, status models.SessionStatus, now time.Time) {
	s.Status = status
	s.Stage = stageOf[status]
	s.UpdatedAt = now

	stamp := func(field **time.Time) {
		t := now
		*field = &t
	}

	switch status {
	case models.StatusLyricsOpen:
		stamp(&s.Schedule.LyricsOpenAt)
		if s.Schedule.StartedAt == nil {
			stamp(&s.Schedule.StartedAt)
		}
	case models.StatusLyricsVoting:
		stamp(&s.Schedule.VotingStartAt)
	case models.StatusGeneration:
		stamp(&s.Schedule.GenerationStartedAt)
	case models.StatusSongVoting:
		stamp(&s.Schedule.SongVotingStartAt)
	case models.StatusActive:
		if s.Schedule.StartedAt == nil {
			stamp(&s.Schedule.StartedAt)
		}
	case models.StatusCompleted:
		stamp(&s.Schedule.CompletedAt)
		stamp(&s.Schedule.EndedAt)
	case models.StatusCancelled:
		stamp(&s.Schedule.EndedAt)
	}
}

// ==================== Action predicates ====================

var (
	lyricsStatuses = map[models.SessionStatus]bool{
		models.StatusLyricsOpen: true,
	}
	votingStatuses = map[models.SessionStatus]bool{
		models.StatusLyricsOpen:   true,
		models.StatusLyricsVoting: true,
		models.StatusSongVoting:   true,
		models.StatusActive:       true,
	}
	songStatuses = map[models.SessionStatus]bool{
		models.StatusWaiting:    true,
		models.StatusActive:     true,
		models.StatusGeneration: true,
	}
)

// CanSubmitLyrics reports whether userID may submit lyrics right now
func CanSubmitLyrics(s *models.Session, userID string, reputation float64, now time.Time) models.Decision {
	if d := commonChecks(s, userID, reputation, now); !d.Allowed {
		return d
	}
	if moderation.IsMuted(s, userID, now) {
		return models.Deny("You are muted in this session")
	}
	if !lyricsStatuses[s.Status] {
		return models.Deny(fmt.Sprintf("Lyrics submissions are not open in the current stage (%s)", s.Status))
	}
	if deadlinePassed(s.Settings.LyricsDeadline, now) {
		return models.Deny("Lyrics submission deadline has passed")
	}
	return models.Allow()
}

// CanVote reports whether userID may vote right now
func CanVote(s *models.Session, userID string, reputation float64, now time.Time) models.Decision {
	if d := commonChecks(s, userID, reputation, now); !d.Allowed {
		return d
	}
	if !votingStatuses[s.Status] {
		return models.Deny(fmt.Sprintf("Voting is not open in the current stage (%s)", s.Status))
	}
	if deadlinePassed(s.Settings.VotingDeadline, now) {
		return models.Deny("Voting deadline has passed")
	}
	return models.Allow()
}

// CanAddSong reports whether userID may queue a song right now
func CanAddSong(s *models.Session, userID string, reputation float64, now time.Time) models.Decision {
	if d := commonChecks(s, userID, reputation, now); !d.Allowed {
		return d
	}
	if moderation.IsMuted(s, userID, now) {
		return models.Deny("You are muted in this session")
	}
	if !s.Settings.AllowSongRequests {
		return models.Deny("Song requests are disabled for this session")
	}
	if !songStatuses[s.Status] {
		return models.Deny(fmt.Sprintf("Songs cannot be added in the current stage (%s)", s.Status))
	}
	return models.Allow()
}

// commonChecks covers the terminal, paused, ban and reputation rules shared by every predicate
func commonChecks(s *models.Session, userID string, reputation float64, now time.Time) models.Decision {
	switch s.Status {
	case models.StatusCancelled:
		return models.Deny("Session has been cancelled")
	case models.StatusCompleted:
		return models.Deny("Session has been completed")
	case models.StatusPaused:
		return models.Deny("Session is paused")
	}
	if moderation.IsBanned(s, userID, now) {
		return models.Deny("You are banned from this session")
	}
	if userID != s.HostID && reputation < s.Settings.MinReputation {
		return models.Deny(fmt.Sprintf("Reputation %.0f is below the session minimum of %.0f", reputation, s.Settings.MinReputation))
	}
	return models.Allow()
}

func deadlinePassed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && now.After(*deadline)
}
