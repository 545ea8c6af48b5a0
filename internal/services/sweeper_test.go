package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/services"
)

func TestSweeper_AppliesDeadlines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "SW-EEP", models.StatusActive, "alice", "bob")

	subDeadline := f.clock.Now().Add(10 * time.Minute)
	voteDeadline := f.clock.Now().Add(20 * time.Minute)
	deadlines := services.CreateCompetitionRequest{SubmissionDeadline: &subDeadline, VotingDeadline: &voteDeadline}

	toVoting := f.openCompetition(t, s.ID, deadlines)
	f.submit(t, toVoting.ID, "alice")
	empty := f.openCompetition(t, s.ID, deadlines)

	toClose := f.openCompetition(t, s.ID, services.CreateCompetitionRequest{VotingDeadline: &subDeadline})
	f.submit(t, toClose.ID, "bob")
	if _, err := f.competitions.StartVoting(ctx, toClose.ID, "host"); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}

	sweeper := services.NewSweeper(logger.Discard(), f.sessions, f.competitions, time.Minute)

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.VotingStarted+report.Closed+report.Cancelled != 0 {
		t.Errorf("nothing is due yet, got %+v", report)
	}

	f.clock.Advance(15 * time.Minute)
	report, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.VotingStarted != 1 || report.Closed != 1 || report.Cancelled != 1 {
		t.Errorf("report = %+v, want one of each", report)
	}

	for id, want := range map[string]models.CompetitionStatus{
		toVoting.ID: models.CompetitionVoting,
		empty.ID:    models.CompetitionCancelled,
		toClose.ID:  models.CompetitionClosed,
	} {
		c, err := f.competitions.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if c.Status != want {
			t.Errorf("competition %s status = %s, want %s", id, c.Status, want)
		}
	}

	f.clock.Advance(10 * time.Minute)
	report, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Closed != 1 {
		t.Errorf("second sweep closed %d, want 1", report.Closed)
	}
}

func TestSweeper_CompletesEndedSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "SW-END", models.StatusSongVoting)

	ends := f.clock.Now().Add(time.Minute)
	if _, err := f.sessions.UpdateSession(ctx, s.ID, "host", services.UpdateSessionRequest{EndsAt: &ends}); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	sweeper := services.NewSweeper(logger.Discard(), f.sessions, f.competitions, 0)
	f.clock.Advance(time.Hour)
	report, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.SessionsCompleted != 1 {
		t.Errorf("SessionsCompleted = %d, want 1", report.SessionsCompleted)
	}
	if got := f.session(t, s.ID); got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := services.NewSweeper(logger.Discard(), f.sessions, f.competitions, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSweeper_CancelledSessionCompetitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "SW-CAN", models.StatusActive, "alice", "bob")

	deadline := f.clock.Now().Add(10 * time.Minute)
	c := f.openCompetition(t, s.ID, services.CreateCompetitionRequest{Prize: models.Prize{Reputation: 5}, VotingDeadline: &deadline})
	f.submit(t, c.ID, "alice")
	if _, err := f.competitions.StartVoting(ctx, c.ID, "host"); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}
	if _, err := f.sessions.Cancel(ctx, s.ID, "host"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	f.clock.Advance(15 * time.Minute)
	report, err := services.NewSweeper(logger.Discard(), f.sessions, f.competitions, time.Minute).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if report.Cancelled != 1 || report.Closed != 0 {
		t.Errorf("report = %+v, want one cancelled", report)
	}
	got, err := f.competitions.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.CompetitionCancelled {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}
	if len(f.rep.Awards()) != 0 {
		t.Errorf("awards = %+v, want none", f.rep.Awards())
	}
}
