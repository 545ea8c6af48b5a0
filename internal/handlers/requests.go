package handlers

import "github.com/crowdsong/crowdsong/internal/services"

// SongVoteRequest is an up or down vote on a queued song
type SongVoteRequest struct {
	Value int `json:"value"`
}

// FeedbackRequest rates the session
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SeedOptionsRequest carries the host-defined options for one or more element types
type SeedOptionsRequest struct {
	Options []services.OptionInput `json:"options"`
}

// KickRequest carries the optional reason for a kick
type KickRequest struct {
	Reason string `json:"reason"`
}
