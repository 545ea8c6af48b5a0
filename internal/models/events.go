package models

import "time"

// Event types published to the real-time transport
const (
	EventSessionCreated       = "session.created"
	EventSessionUpdated       = "session.updated"
	EventStageAdvanced        = "session.stage_advanced"
	EventSessionCancelled     = "session.cancelled"
	EventParticipantJoined    = "participant.joined"
	EventParticipantLeft      = "participant.left"
	EventParticipantKicked    = "participant.kicked"
	EventParticipantBanned    = "participant.banned"
	EventParticipantUnbanned  = "participant.unbanned"
	EventParticipantMuted     = "participant.muted"
	EventParticipantUnmuted   = "participant.unmuted"
	EventRoleChanged          = "participant.role_changed"
	EventSongAdded            = "song.added"
	EventSongVoteRecorded     = "song.vote_recorded"
	EventFeedbackAdded        = "feedback.added"
	EventOptionCreated        = "option.created"
	EventOptionVoteRecorded   = "option.vote_recorded"
	EventOptionVoteRemoved    = "option.vote_removed"
	EventElementFinalized     = "element.finalized"
	EventTalliesRecomputed    = "element.tallies_recomputed"
	EventCompetitionCreated   = "competition.created"
	EventCompetitionOpened    = "competition.opened"
	EventSubmissionAdded      = "competition.submission_added"
	EventCompetitionVoting    = "competition.voting_started"
	EventCompetitionVote      = "competition.vote_recorded"
	EventCompetitionClosed    = "competition.closed"
	EventCompetitionCancelled = "competition.cancelled"
)

// Event is a semantic state change consumed by the real-time transport
type Event struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"session_id"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
