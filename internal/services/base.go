package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/crowdsong/crowdsong/internal/errors"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/moderation"
	"github.com/crowdsong/crowdsong/internal/participants"
	"github.com/crowdsong/crowdsong/internal/ratelimit"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

// maxUpdateAttempts bounds the re-fetch/compare-and-set loop of document updates
const maxUpdateAttempts = 5

// Broadcaster defines the interface for publishing events to connected clients
type Broadcaster interface {
	Publish(evt models.Event)
}

// core holds the collaborators shared by every service
type core struct {
	log         logger.Logger
	sessions    repository.SessionRepository
	reputation  reputation.Client
	broadcaster Broadcaster
	limiter     ratelimit.Limiter
	now         func() time.Time
}

func newCore(log logger.Logger, sessions repository.SessionRepository, rep reputation.Client) core {
	if rep == nil {
		rep = reputation.Offline{}
	}
	return core{
		log:        log,
		sessions:   sessions,
		reputation: rep,
		limiter:    ratelimit.Unlimited{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcaster sets the event sink
func (c *core) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// SetLimiter sets the per-user action throttle
func (c *core) SetLimiter(l ratelimit.Limiter) {
	if l == nil {
		l = ratelimit.Unlimited{}
	}
	c.limiter = l
}

// SetClock replaces the time source (for tests)
func (c *core) SetClock(now func() time.Time) {
	c.now = now
}

func (c *core) publish(eventType, sessionID string, payload interface{}) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Publish(models.Event{
		Type:       eventType,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: c.now(),
	})
}

func (c *core) throttle(userID, action string) error {
	if c.limiter.Allow(userID, action) {
		return nil
	}
	c.log.Debug("Action rate limited", "user_id", userID, "action", action)
	return errors.RateLimited("Too many requests, please slow down")
}

// standing returns the user's reputation score and vote weight.
// Lookup failures fall back to score 0 and weight 1.
func (c *core) standing(ctx context.Context, userID string) (float64, float64) {
	score, weight, err := reputation.WeightFor(ctx, c.reputation, userID)
	if err != nil {
		c.log.Warn("Reputation lookup failed, using default weight", "user_id", userID, "error", err)
	}
	return score, weight
}

func (c *core) loadSession(ctx context.Context, id string) (*models.Session, error) {
	s, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrSessionNotFound)
	}
	return s, nil
}

// mutateSession re-reads the session, applies fn and writes it back with
// compare-and-set, retrying when another writer got there first
func (c *core) mutateSession(ctx context.Context, id string, fn func(s *models.Session, now time.Time) error) (*models.Session, error) {
	for attempt := 1; ; attempt++ {
		s, err := c.loadSession(ctx, id)
		if err != nil {
			return nil, err
		}
		now := c.now()
		if err := fn(s, now); err != nil {
			return nil, err
		}
		s.UpdatedAt = now
		err = c.sessions.UpdateSession(ctx, s)
		if err == nil {
			return s, nil
		}
		if !stderrors.Is(err, repository.ErrStaleVersion) || attempt == maxUpdateAttempts {
			if !stderrors.Is(err, repository.ErrStaleVersion) {
				c.log.Error("Failed to update session", "session_id", id, "error", err)
			}
			return nil, mapRepoError(err, ErrSessionNotFound)
		}
		c.log.Debug("Session changed during update, retrying", "session_id", id, "attempt", attempt)
	}
}

// requireMember fails unless userID is the host or an active participant
func requireMember(s *models.Session, userID string) error {
	if userID == s.HostID || participants.IsActive(s, userID) {
		return nil
	}
	return errors.Forbidden("You must join the session first")
}

// refusal turns a denied stage predicate into an error. Ban, reputation and
// mute refusals are Forbidden; stage, deadline and toggle refusals are BadRequest.
func refusal(s *models.Session, userID string, score float64, d models.Decision, checksMute bool, now time.Time) error {
	if d.Allowed {
		return nil
	}
	if s.Status.IsTerminal() || s.Status == models.StatusPaused {
		return errors.BadRequest(d.Reason)
	}
	if moderation.IsBanned(s, userID, now) {
		return errors.Forbidden(d.Reason)
	}
	if userID != s.HostID && score < s.Settings.MinReputation {
		return errors.Forbidden(d.Reason)
	}
	if checksMute && moderation.IsMuted(s, userID, now) {
		return errors.Forbidden(d.Reason)
	}
	return errors.BadRequest(d.Reason)
}
