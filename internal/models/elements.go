package models

import (
	"encoding/json"
	"time"
)

// ElementType names a votable property of a song
type ElementType string

const (
	ElementTempo            ElementType = "tempo"
	ElementKey              ElementType = "key"
	ElementTimeSignature    ElementType = "time-signature"
	ElementGenre            ElementType = "genre"
	ElementMood             ElementType = "mood"
	ElementEnergy           ElementType = "energy"
	ElementDrumPattern      ElementType = "drum-pattern"
	ElementBassLine         ElementType = "bass-line"
	ElementChordProgression ElementType = "chord-progression"
	ElementMelody           ElementType = "melody"
	ElementHarmony          ElementType = "harmony"
	ElementLeadInstrument   ElementType = "lead-instrument"
	ElementInstrumentation  ElementType = "instrumentation"
	ElementVocalStyle       ElementType = "vocal-style"
	ElementVocalGender      ElementType = "vocal-gender"
	ElementLyricTheme       ElementType = "lyric-theme"
	ElementLyricVerse       ElementType = "lyric-verse"
	ElementLyricChorus      ElementType = "lyric-chorus"
	ElementLyricBridge      ElementType = "lyric-bridge"
	ElementHook             ElementType = "hook"
	ElementTitle            ElementType = "title"
	ElementSongStructure    ElementType = "song-structure"
	ElementIntro            ElementType = "intro"
	ElementOutro            ElementType = "outro"
	ElementSongLength       ElementType = "song-length"
	ElementDynamics         ElementType = "dynamics"
	ElementEffects          ElementType = "effects"
	ElementReverb           ElementType = "reverb"
	ElementMixBalance       ElementType = "mix-balance"
	ElementMasteringStyle   ElementType = "mastering-style"
)

// ElementTypes lists every known element type in display order
var ElementTypes = []ElementType{
	ElementTempo, ElementKey, ElementTimeSignature, ElementGenre, ElementMood, ElementEnergy,
	ElementDrumPattern, ElementBassLine, ElementChordProgression, ElementMelody, ElementHarmony,
	ElementLeadInstrument, ElementInstrumentation, ElementVocalStyle, ElementVocalGender,
	ElementLyricTheme, ElementLyricVerse, ElementLyricChorus, ElementLyricBridge, ElementHook,
	ElementTitle, ElementSongStructure, ElementIntro, ElementOutro, ElementSongLength,
	ElementDynamics, ElementEffects, ElementReverb, ElementMixBalance, ElementMasteringStyle,
}

// Valid reports whether t is a known element type
func (t ElementType) Valid() bool {
	for _, known := range ElementTypes {
		if known == t {
			return true
		}
	}
	return false
}

// OptionStatus is the lifecycle state of an element option
type OptionStatus string

const (
	OptionPending     OptionStatus = "pending"
	OptionSelected    OptionStatus = "selected"
	OptionRejected    OptionStatus = "rejected"
	OptionAlternative OptionStatus = "alternative"
)

// ElementOption is one candidate value for one element type. VoterIDs holds
// each counted voter exactly once and Votes always equals len(VoterIDs).
type ElementOption struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	SongID          string          `json:"song_id,omitempty"`
	ElementType     ElementType     `json:"element_type"`
	OptionID        string          `json:"option_id"`
	Label           string          `json:"label"`
	Description     string          `json:"description,omitempty"`
	Value           json.RawMessage `json:"value,omitempty"`
	Votes           int             `json:"votes"`
	WeightedVotes   float64         `json:"weighted_votes"`
	VoterIDs        []string        `json:"voter_ids"`
	Status          OptionStatus    `json:"status"`
	CreatedBy       string          `json:"created_by"`
	IsUserSubmitted bool            `json:"is_user_submitted"`
	Order           int             `json:"order"`
	Percentage      float64         `json:"percentage"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Vote values accepted by the ledger
const (
	VoteReject    = -1
	VoteApprove   = 1
	VoteRatingMin = 1
	VoteRatingMax = 5
)

// ElementVote is the durable vote-intent record, unique per
// (session, user, element type, element id).
type ElementVote struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	ElementType ElementType     `json:"element_type"`
	ElementID   string          `json:"element_id"`
	SongID      string          `json:"song_id,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	VoteValue   int             `json:"vote_value"`
	Weight      float64         `json:"weight"`
	Comment     string          `json:"comment,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OptionGroup is every option of one element type with descriptive percentages
type OptionGroup struct {
	ElementType ElementType     `json:"element_type"`
	TotalVotes  int             `json:"total_votes"`
	Options     []ElementOption `json:"options"`
}

// ElementVoteSummary aggregates ledger records for one (element type, element id)
type ElementVoteSummary struct {
	ElementType          ElementType `json:"element_type"`
	ElementID            string      `json:"element_id"`
	TotalVotes           int         `json:"total_votes"`
	Approvals            int         `json:"approvals"`
	Rejections           int         `json:"rejections"`
	Ratings              int         `json:"ratings"`
	AverageRating        float64     `json:"average_rating"`
	TotalWeight          float64     `json:"total_weight"`
	WeightedApprovals    float64     `json:"weighted_approvals"`
	WeightedApprovalRate float64     `json:"weighted_approval_rate"`
}

// ElementProgress reports how many element types have a decided option
type ElementProgress struct {
	TotalElements   int           `json:"total_elements"`
	DecidedElements int           `json:"decided_elements"`
	PendingElements int           `json:"pending_elements"`
	Percentage      float64       `json:"percentage"`
	Decided         []ElementType `json:"decided"`
	Pending         []ElementType `json:"pending"`
}

// ElementResults combines grouped options, winners and the ledger summary
type ElementResults struct {
	Groups  []OptionGroup                 `json:"groups"`
	Winners map[ElementType]ElementOption `json:"winners"`
	Summary []ElementVoteSummary          `json:"summary"`
}
