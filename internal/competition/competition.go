// Package competition runs the submission, voting and winner workflow of an
// element competition. It only mutates the competition value it is handed;
// persistence and prize payout belong to the caller.
package competition

import (
	"fmt"
	"sort"
	"time"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/models"
)

// IsFinished reports whether the competition accepts no further changes
func IsFinished(c *models.ElementCompetition) bool {
	return c.Status == models.CompetitionClosed || c.Status == models.CompetitionCancelled
}

// Open moves a draft competition to open so it accepts submissions
func Open(c *models.ElementCompetition, now time.Time) error {
	if c.Status != models.CompetitionDraft {
		return errors.InvalidTransitionf("Only a draft competition can be opened (current status %q)", c.Status)
	}
	c.Status = models.CompetitionOpen
	c.UpdatedAt = now
	return nil
}

// CountSubmissions returns how many entries userID has made
func CountSubmissions(c *models.ElementCompetition, userID string) int {
	n := 0
	for _, s := range c.Submissions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// CanSubmit reports whether userID may add an entry right now
func CanSubmit(c *models.ElementCompetition, userID string, now time.Time) models.Decision {
	switch c.Status {
	case models.CompetitionCancelled:
		return models.Deny("Competition has been cancelled")
	case models.CompetitionClosed:
		return models.Deny("Competition is closed")
	case models.CompetitionDraft:
		return models.Deny("Competition is not open for submissions yet")
	case models.CompetitionVoting:
		return models.Deny("Submissions are closed; voting is in progress")
	}
	if c.SubmissionDeadline != nil && now.After(*c.SubmissionDeadline) {
		return models.Deny("Submission deadline has passed")
	}
	if c.MaxSubmissionsPerUser > 0 && CountSubmissions(c, userID) >= c.MaxSubmissionsPerUser {
		return models.Deny("Maximum submissions reached")
	}
	return models.Allow()
}

// AddSubmission appends sub after CanSubmit and returns its index
func AddSubmission(c *models.ElementCompetition, sub models.Submission, now time.Time) (int, error) {
	if d := CanSubmit(c, sub.UserID, now); !d.Allowed {
		return -1, errors.BadRequest(d.Reason)
	}
	if sub.AudioURL == "" {
		return -1, errors.BadRequest("A submission needs an audio reference")
	}
	sub.Votes = 0
	sub.WeightedVotes = 0
	sub.VoterIDs = []string{}
	sub.Status = models.SubmissionPending
	sub.SubmittedAt = now
	c.Submissions = append(c.Submissions, sub)
	refreshStats(c)
	c.UpdatedAt = now
	return len(c.Submissions) - 1, nil
}

func refreshStats(c *models.ElementCompetition) {
	users := make(map[string]struct{}, len(c.Submissions))
	votes := 0
	for _, s := range c.Submissions {
		users[s.UserID] = struct{}{}
		votes += s.Votes
	}
	c.Stats.TotalSubmissions = len(c.Submissions)
	c.Stats.UniqueParticipants = len(users)
	c.Stats.TotalVotes = votes
}

// StartVoting closes submissions and opens voting
func StartVoting(c *models.ElementCompetition, now time.Time) error {
	if c.Status != models.CompetitionOpen {
		return errors.InvalidTransitionf("Only an open competition can start voting (current status %q)", c.Status)
	}
	if len(c.Submissions) == 0 {
		return errors.BadRequest("Voting cannot start without submissions")
	}
	c.Status = models.CompetitionVoting
	t := now
	c.VotingStartedAt = &t
	c.UpdatedAt = now
	return nil
}

// CanVote reports whether userID may vote on the submission at index
func CanVote(c *models.ElementCompetition, index int, userID string, now time.Time) models.Decision {
	switch c.Status {
	case models.CompetitionCancelled:
		return models.Deny("Competition has been cancelled")
	case models.CompetitionClosed:
		return models.Deny("Competition is closed")
	case models.CompetitionVoting:
	default:
		return models.Deny("Voting has not started for this competition")
	}
	if c.VotingDeadline != nil && now.After(*c.VotingDeadline) {
		return models.Deny("Voting deadline has passed")
	}
	if index < 0 || index >= len(c.Submissions) {
		return models.Deny(fmt.Sprintf("Submission %d does not exist", index))
	}
	if c.Submissions[index].UserID == userID {
		return models.Deny("You cannot vote for your own submission")
	}
	return models.Allow()
}

// Vote records userID's weighted vote for the submission at index
func Vote(c *models.ElementCompetition, index int, userID string, weight float64, now time.Time) error {
	if index < 0 || index >= len(c.Submissions) {
		return errors.NotFoundf("Submission %d does not exist", index)
	}
	if d := CanVote(c, index, userID, now); !d.Allowed {
		if c.Submissions[index].UserID == userID {
			return errors.Forbidden(d.Reason)
		}
		return errors.BadRequest(d.Reason)
	}
	sub := &c.Submissions[index]
	for _, id := range sub.VoterIDs {
		if id == userID {
			return errors.Conflict("You have already voted for this submission")
		}
	}
	sub.VoterIDs = append(sub.VoterIDs, userID)
	sub.Votes++
	sub.WeightedVotes += weight
	c.Stats.TotalVotes++
	c.UpdatedAt = now
	return nil
}

// Ranked returns submissions best first: weighted votes, then raw votes,
// then the earlier entry.
func Ranked(c *models.ElementCompetition) []models.RankedSubmission {
	ranked := make([]models.RankedSubmission, len(c.Submissions))
	for i, s := range c.Submissions {
		ranked[i] = models.RankedSubmission{Index: i, Submission: s}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Submission, ranked[j].Submission
		if a.WeightedVotes != b.WeightedVotes {
			return a.WeightedVotes > b.WeightedVotes
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return ranked[i].Index < ranked[j].Index
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// DetermineWinner closes the competition and freezes its winner. It is
// a one-way transition: a closed competition returns Conflict untouched.
func DetermineWinner(c *models.ElementCompetition, now time.Time) (models.CompetitionWinner, error) {
	switch c.Status {
	case models.CompetitionClosed:
		return models.CompetitionWinner{}, errors.Conflict("Competition is already closed")
	case models.CompetitionCancelled:
		return models.CompetitionWinner{}, errors.InvalidTransition("Competition has been cancelled")
	case models.CompetitionVoting:
	default:
		return models.CompetitionWinner{}, errors.InvalidTransitionf("Only a competition in voting can be closed (current status %q)", c.Status)
	}
	if len(c.Submissions) == 0 {
		return models.CompetitionWinner{}, errors.BadRequest("Competition has no submissions")
	}

	ranked := Ranked(c)
	top := ranked[0]
	c.Submissions[top.Index].Status = models.SubmissionWinner
	if len(ranked) > 1 {
		c.Submissions[ranked[1].Index].Status = models.SubmissionRunnerUp
	}

	winner := models.CompetitionWinner{
		UserID:          top.Submission.UserID,
		SubmissionID:    top.Submission.ID,
		SubmissionIndex: top.Index,
		WeightedVotes:   top.Submission.WeightedVotes,
		Votes:           top.Submission.Votes,
		DecidedAt:       now,
	}
	idx := top.Index
	c.Winner = &winner
	c.WinningSubmissionIndex = &idx
	c.Status = models.CompetitionClosed
	t := now
	c.ClosedAt = &t
	c.UpdatedAt = now
	return winner, nil
}

// Cancel ends a competition that has not closed yet
func Cancel(c *models.ElementCompetition, now time.Time) error {
	if IsFinished(c) {
		return errors.InvalidTransitionf("Competition is already %s", c.Status)
	}
	c.Status = models.CompetitionCancelled
	t := now
	c.ClosedAt = &t
	c.UpdatedAt = now
	return nil
}
