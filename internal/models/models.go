package models

import "time"

// SessionStatus is the position of a session in its creative pipeline
type SessionStatus string

const (
	StatusDraft        SessionStatus = "draft"
	StatusWaiting      SessionStatus = "waiting"
	StatusLyricsOpen   SessionStatus = "lyrics-open"
	StatusLyricsVoting SessionStatus = "lyrics-voting"
	StatusGeneration   SessionStatus = "generation"
	StatusSongVoting   SessionStatus = "song-voting"
	StatusActive       SessionStatus = "active"
	StatusPaused       SessionStatus = "paused"
	StatusCompleted    SessionStatus = "completed"
	StatusCancelled    SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role is a participant's role inside one session
type Role string

const (
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
	RoleHost        Role = "host"
)

// Visibility controls whether a session shows up in public listings
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// VotingSystem selects how votes are counted
type VotingSystem string

const (
	VotingSimple   VotingSystem = "simple"
	VotingWeighted VotingSystem = "weighted"
)

// Session is the aggregate root. Participants, songs, feedback and the
// moderation lists are embedded and always persisted together.
type Session struct {
	ID             string            `json:"id"`
	Code           string            `json:"code"`
	HostID         string            `json:"host_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Genre          string            `json:"genre,omitempty"`
	Mood           string            `json:"mood,omitempty"`
	Theme          string            `json:"theme,omitempty"`
	Visibility     Visibility        `json:"visibility"`
	Status         SessionStatus     `json:"status"`
	Stage          int               `json:"stage"`
	PreviousStatus SessionStatus     `json:"previous_status,omitempty"`
	Settings       SessionSettings   `json:"settings"`
	Schedule       SessionSchedule   `json:"schedule"`
	Participants   []Participant     `json:"participants"`
	Songs          []Song            `json:"songs"`
	Feedback       []Feedback        `json:"feedback"`
	BannedUsers    []ModerationEntry `json:"banned_users"`
	MutedUsers     []ModerationEntry `json:"muted_users"`
	Stats          SessionStats      `json:"stats"`
	Version        int               `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// SessionSettings holds deadlines, caps and feature toggles
type SessionSettings struct {
	MaxParticipants       int          `json:"max_participants"`
	VotingSystem          VotingSystem `json:"voting_system"`
	MinReputation         float64      `json:"min_reputation"`
	MaxSubmissionsPerUser int          `json:"max_submissions_per_user"`
	LyricsDeadline        *time.Time   `json:"lyrics_deadline,omitempty"`
	VotingDeadline        *time.Time   `json:"voting_deadline,omitempty"`
	EndsAt                *time.Time   `json:"ends_at,omitempty"`
	AllowSongRequests     bool         `json:"allow_song_requests"`
	AllowUserOptions      bool         `json:"allow_user_options"`
	AllowFeedback         bool         `json:"allow_feedback"`
}

// SessionSchedule records when each stage was entered
type SessionSchedule struct {
	StartedAt           *time.Time `json:"started_at,omitempty"`
	LyricsOpenAt        *time.Time `json:"lyrics_open_at,omitempty"`
	VotingStartAt       *time.Time `json:"voting_start_at,omitempty"`
	GenerationStartedAt *time.Time `json:"generation_started_at,omitempty"`
	SongVotingStartAt   *time.Time `json:"song_voting_start_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

// SessionStats are aggregate counters kept on the session document
type SessionStats struct {
	TotalParticipants  int `json:"total_participants"`
	ActiveParticipants int `json:"active_participants"`
	TotalVotes         int `json:"total_votes"`
	TotalSubmissions   int `json:"total_submissions"`
	TotalSongs         int `json:"total_songs"`
	TotalFeedback      int `json:"total_feedback"`
}

// Participant is a user's membership in one session. Never removed, only deactivated.
type Participant struct {
	UserID          string     `json:"user_id"`
	Role            Role       `json:"role"`
	IsActive        bool       `json:"is_active"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	KickedBy        string     `json:"kicked_by,omitempty"`
	KickReason      string     `json:"kick_reason,omitempty"`
	VotesCast       int        `json:"votes_cast"`
	SubmissionsMade int        `json:"submissions_made"`
}

// ModerationEntry is one ban or mute. A nil ExpiresAt is permanent.
type ModerationEntry struct {
	UserID    string     `json:"user_id"`
	By        string     `json:"by"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Song is a queued track with its embedded votes
type Song struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Artist   string     `json:"artist,omitempty"`
	AudioURL string     `json:"audio_url,omitempty"`
	AddedBy  string     `json:"added_by"`
	AddedAt  time.Time  `json:"added_at"`
	Votes    []SongVote `json:"votes"`
	Score    float64    `json:"score"`
}

// SongVote is one user's weighted vote on a queued song
type SongVote struct {
	UserID  string    `json:"user_id"`
	Value   int       `json:"value"`
	Weight  float64   `json:"weight"`
	VotedAt time.Time `json:"voted_at"`
}

// Feedback is a participant's rating of the session
type Feedback struct {
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionFilter narrows session listings
type SessionFilter struct {
	Status     SessionStatus
	Genre      string
	Visibility Visibility
	HostID     string
	Limit      int
	Offset     int
}

// Decision is the answer of an action predicate. Reason is set whenever Allowed is false.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns an allowing decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing decision carrying the reason
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
