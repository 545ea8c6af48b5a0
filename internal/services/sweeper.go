package services

import (
	"context"
	"time"

	"github.com/crowdsong/crowdsong/internal/logger"
)

// Sweeper applies deadlines that nobody acted on: competitions past their
// submission or voting deadline and sessions past their end time
type Sweeper struct {
	log          logger.Logger
	sessions     *SessionService
	competitions *CompetitionService
	interval     time.Duration
}

// NewSweeper creates a new Sweeper
func NewSweeper(log logger.Logger, sessions *SessionService, competitions *CompetitionService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		log:          log,
		sessions:     sessions,
		competitions: competitions,
		interval:     interval,
	}
}

// SweepReport counts what one pass changed
type SweepReport struct {
	SweepResult
	SessionsCompleted int `json:"sessions_completed"`
}

// Sweep runs one pass
func (w *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	res, err := w.competitions.AdvanceDue(ctx)
	if err != nil {
		return report, err
	}
	report.SweepResult = res

	completed, err := w.sessions.CompleteExpired(ctx)
	if err != nil {
		return report, err
	}
	report.SessionsCompleted = completed

	if report.VotingStarted+report.Closed+report.Cancelled+report.SessionsCompleted > 0 {
		w.log.Info("Deadline sweep applied changes",
			"voting_started", report.VotingStarted,
			"closed", report.Closed,
			"cancelled", report.Cancelled,
			"sessions_completed", report.SessionsCompleted)
	}
	return report, nil
}

// Run sweeps every interval until ctx is done
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Debug("Deadline sweeper started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Deadline sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("Deadline sweep failed", "error", err)
			}
		}
	}
}
