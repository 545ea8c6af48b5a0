// Package elements holds the tally rules for element options and the
// read-side aggregations over options and the vote ledger.
package elements

import (
	"sort"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/models"
)

// ValidateVoteValue accepts -1 (reject), 1 (approve) and 2..5 (rating)
func ValidateVoteValue(v int) error {
	if v == models.VoteReject || (v >= models.VoteRatingMin && v <= models.VoteRatingMax) {
		return nil
	}
	return errors.BadRequestf("Vote value %d is invalid: use -1 to reject, 1 to approve or 2-5 to rate", v)
}

// Counts reports whether a vote value contributes to an option's counters.
// Rejections are recorded in the ledger only.
func Counts(voteValue int) bool {
	return voteValue >= models.VoteApprove
}

// HasVoted reports whether userID is among the option's counted voters
func HasVoted(o *models.ElementOption, userID string) bool {
	for _, id := range o.VoterIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddVote counts userID once on the option
func AddVote(o *models.ElementOption, userID string, weight float64) error {
	if HasVoted(o, userID) {
		return errors.Conflictf("You have already voted for %q", o.Label)
	}
	o.VoterIDs = append(o.VoterIDs, userID)
	o.Votes++
	o.WeightedVotes += weight
	return nil
}

// RemoveVote is the exact inverse of AddVote
func RemoveVote(o *models.ElementOption, userID string, weight float64) error {
	idx := -1
	for i, id := range o.VoterIDs {
		if id == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.NotFoundf("You have not voted for %q", o.Label)
	}
	o.VoterIDs = append(o.VoterIDs[:idx:idx], o.VoterIDs[idx+1:]...)
	o.Votes--
	o.WeightedVotes -= weight
	if o.WeightedVotes < 0 {
		o.WeightedVotes = 0
	}
	return nil
}

// Group buckets options by element type in catalogue order and annotates
// each option with its share of the group's raw votes.
func Group(options []models.ElementOption) []models.OptionGroup {
	byType := make(map[models.ElementType]*models.OptionGroup)
	var order []models.ElementType
	for _, o := range options {
		g, ok := byType[o.ElementType]
		if !ok {
			g = &models.OptionGroup{ElementType: o.ElementType}
			byType[o.ElementType] = g
			order = append(order, o.ElementType)
		}
		g.TotalVotes += o.Votes
		g.Options = append(g.Options, o)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return typeRank(order[i]) < typeRank(order[j])
	})

	groups := make([]models.OptionGroup, 0, len(order))
	for _, t := range order {
		g := byType[t]
		for i := range g.Options {
			g.Options[i].Percentage = percentage(g.Options[i].Votes, g.TotalVotes)
		}
		sort.SliceStable(g.Options, func(i, j int) bool {
			return g.Options[i].Order < g.Options[j].Order
		})
		groups = append(groups, *g)
	}
	return groups
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func typeRank(t models.ElementType) int {
	for i, known := range models.ElementTypes {
		if known == t {
			return i
		}
	}
	return len(models.ElementTypes)
}

// better orders options by weighted votes, then raw votes, then display order
func better(a, b models.ElementOption) bool {
	if a.WeightedVotes != b.WeightedVotes {
		return a.WeightedVotes > b.WeightedVotes
	}
	if a.Votes != b.Votes {
		return a.Votes > b.Votes
	}
	return a.Order < b.Order
}

// Winners picks the leading option of every element type in one pass
func Winners(options []models.ElementOption) map[models.ElementType]models.ElementOption {
	winners := make(map[models.ElementType]models.ElementOption)
	for _, o := range options {
		if o.Status == models.OptionRejected {
			continue
		}
		cur, ok := winners[o.ElementType]
		if !ok || better(o, cur) {
			winners[o.ElementType] = o
		}
	}
	return winners
}

// Rank sorts options best first
func Rank(options []models.ElementOption) []models.ElementOption {
	ranked := append([]models.ElementOption(nil), options...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i], ranked[j])
	})
	return ranked
}

// Finalize decides one element type: the leader becomes selected, the
// runner-up an alternative and everything else rejected.
func Finalize(options []models.ElementOption) ([]models.ElementOption, error) {
	if len(options) == 0 {
		return nil, errors.BadRequest("There are no options to finalize")
	}
	for _, o := range options {
		if o.Status == models.OptionSelected {
			return nil, errors.Conflictf("Element %s has already been finalized", o.ElementType)
		}
	}
	ranked := Rank(options)
	for i := range ranked {
		switch i {
		case 0:
			ranked[i].Status = models.OptionSelected
		case 1:
			ranked[i].Status = models.OptionAlternative
		default:
			ranked[i].Status = models.OptionRejected
		}
	}
	return ranked, nil
}

// Progress counts element types that have a selected option
func Progress(options []models.ElementOption) models.ElementProgress {
	seen := make(map[models.ElementType]bool)
	for _, o := range options {
		if o.Status == models.OptionSelected {
			seen[o.ElementType] = true
		} else if _, ok := seen[o.ElementType]; !ok {
			seen[o.ElementType] = false
		}
	}

	p := models.ElementProgress{Decided: []models.ElementType{}, Pending: []models.ElementType{}}
	for _, t := range models.ElementTypes {
		decided, ok := seen[t]
		if !ok {
			continue
		}
		if decided {
			p.Decided = append(p.Decided, t)
		} else {
			p.Pending = append(p.Pending, t)
		}
	}
	p.TotalElements = len(p.Decided) + len(p.Pending)
	p.DecidedElements = len(p.Decided)
	p.PendingElements = len(p.Pending)
	p.Percentage = percentage(p.DecidedElements, p.TotalElements)
	return p
}

type summaryKey struct {
	elementType models.ElementType
	elementID   string
}

// Summarize aggregates ledger records per (element type, element id)
func Summarize(votes []models.ElementVote) []models.ElementVoteSummary {
	type acc struct {
		summary     models.ElementVoteSummary
		ratingTotal int
	}
	byKey := make(map[summaryKey]*acc)
	var keys []summaryKey

	for _, v := range votes {
		k := summaryKey{v.ElementType, v.ElementID}
		a, ok := byKey[k]
		if !ok {
			a = &acc{summary: models.ElementVoteSummary{ElementType: v.ElementType, ElementID: v.ElementID}}
			byKey[k] = a
			keys = append(keys, k)
		}
		s := &a.summary
		s.TotalVotes++
		s.TotalWeight += v.Weight
		switch {
		case v.VoteValue == models.VoteApprove:
			s.Approvals++
			s.WeightedApprovals += v.Weight
		case v.VoteValue == models.VoteReject:
			s.Rejections++
		case v.VoteValue > models.VoteApprove && v.VoteValue <= models.VoteRatingMax:
			s.Ratings++
			a.ratingTotal += v.VoteValue
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].elementType != keys[j].elementType {
			return typeRank(keys[i].elementType) < typeRank(keys[j].elementType)
		}
		return keys[i].elementID < keys[j].elementID
	})

	out := make([]models.ElementVoteSummary, 0, len(keys))
	for _, k := range keys {
		a := byKey[k]
		s := a.summary
		if s.Ratings > 0 {
			s.AverageRating = float64(a.ratingTotal) / float64(s.Ratings)
		}
		if s.TotalWeight > 0 {
			s.WeightedApprovalRate = s.WeightedApprovals / s.TotalWeight
		}
		out = append(out, s)
	}
	return out
}

// Recount rebuilds every option's counters from the ledger. A ledger row
// counts toward an option only when both its element type and ID match.
func Recount(options []models.ElementOption, votes []models.ElementVote) []models.ElementOption {
	byKey := make(map[summaryKey]int, len(options))
	out := make([]models.ElementOption, len(options))
	for i, o := range options {
		o.Votes = 0
		o.WeightedVotes = 0
		o.VoterIDs = nil
		out[i] = o
		byKey[summaryKey{o.ElementType, o.OptionID}] = i
	}
	for _, v := range votes {
		i, ok := byKey[summaryKey{v.ElementType, v.ElementID}]
		if !ok || !Counts(v.VoteValue) {
			continue
		}
		// ledger rows are unique per (user, element type, element ID)
		if err := AddVote(&out[i], v.UserID, v.Weight); err != nil {
			continue
		}
	}
	return out
}
