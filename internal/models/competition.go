package models

import "time"

// CompetitionStatus is the lifecycle state of an element competition
type CompetitionStatus string

const (
	CompetitionDraft     CompetitionStatus = "draft"
	CompetitionOpen      CompetitionStatus = "open"
	CompetitionVoting    CompetitionStatus = "voting"
	CompetitionClosed    CompetitionStatus = "closed"
	CompetitionCancelled CompetitionStatus = "cancelled"
)

// SubmissionStatus marks a submission's standing once the competition closes
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionWinner   SubmissionStatus = "winner"
	SubmissionRunnerUp SubmissionStatus = "runnerUp"
)

// ElementCompetition is a judged contest filling one element slot with
// user-generated content. Submissions are embedded and addressed by index.
type ElementCompetition struct {
	ID                     string             `json:"id"`
	SessionID              string             `json:"session_id"`
	ElementType            ElementType        `json:"element_type"`
	Title                  string             `json:"title"`
	Description            string             `json:"description,omitempty"`
	SubmissionDeadline     *time.Time         `json:"submission_deadline,omitempty"`
	VotingDeadline         *time.Time         `json:"voting_deadline,omitempty"`
	MaxSubmissionsPerUser  int                `json:"max_submissions_per_user"`
	Submissions            []Submission       `json:"submissions"`
	Status                 CompetitionStatus  `json:"status"`
	Winner                 *CompetitionWinner `json:"winner,omitempty"`
	WinningSubmissionIndex *int               `json:"winning_submission_index,omitempty"`
	Prize                  Prize              `json:"prize"`
	Stats                  CompetitionStats   `json:"stats"`
	CreatedBy              string             `json:"created_by"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
	VotingStartedAt        *time.Time         `json:"voting_started_at,omitempty"`
	ClosedAt               *time.Time         `json:"closed_at,omitempty"`
	Version                int                `json:"version"`
}

// Submission is one entry in a competition
type Submission struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	AudioURL      string           `json:"audio_url"`
	Waveform      []float64        `json:"waveform,omitempty"`
	DurationSecs  float64          `json:"duration_secs,omitempty"`
	Votes         int              `json:"votes"`
	WeightedVotes float64          `json:"weighted_votes"`
	VoterIDs      []string         `json:"voter_ids"`
	Status        SubmissionStatus `json:"status"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

// CompetitionWinner is frozen when the competition closes
type CompetitionWinner struct {
	UserID          string    `json:"user_id"`
	SubmissionID    string    `json:"submission_id"`
	SubmissionIndex int       `json:"submission_index"`
	WeightedVotes   float64   `json:"weighted_votes"`
	Votes           int       `json:"votes"`
	DecidedAt       time.Time `json:"decided_at"`
}

// Prize is applied by the caller after the winner is determined
type Prize struct {
	Reputation  float64 `json:"reputation"`
	Description string  `json:"description,omitempty"`
}

// CompetitionStats are aggregate counters
type CompetitionStats struct {
	TotalSubmissions   int `json:"total_submissions"`
	UniqueParticipants int `json:"unique_participants"`
	TotalVotes         int `json:"total_votes"`
}

// RankedSubmission is a submission with its position in the results
type RankedSubmission struct {
	Rank       int        `json:"rank"`
	Index      int        `json:"index"`
	Submission Submission `json:"submission"`
}

// CompetitionResults is the ranked view of a competition
type CompetitionResults struct {
	Competition ElementCompetition `json:"competition"`
	Ranking     []RankedSubmission `json:"ranking"`
}
