package handlers

import "github.com/crowdsong/crowdsong/internal/models"

// SessionListResponse is the response for session listings
type SessionListResponse struct {
	Sessions []models.Session `json:"sessions"`
	Count    int              `json:"count"`
}

// OptionListResponse is the flat listing of a session's options
type OptionListResponse struct {
	Options []models.ElementOption `json:"options"`
}

// OptionGroupsResponse is the listing grouped by element type
type OptionGroupsResponse struct {
	Groups []models.OptionGroup `json:"groups"`
}

// CompetitionListResponse is the response for competition listings
type CompetitionListResponse struct {
	Competitions []models.ElementCompetition `json:"competitions"`
}

// VotesResponse lists the caller's ledger entries
type VotesResponse struct {
	Votes []models.ElementVote `json:"votes"`
}

// StatusResponse acknowledges an action with no resource to return
type StatusResponse struct {
	Status string `json:"status"`
}
