package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/models"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/internal/services"
	"github.com/crowdsong/crowdsong/internal/testutil"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

// recorder is a Broadcaster that keeps every published event
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) has(eventType string) bool {
	for _, t := range r.types() {
		if t == eventType {
			return true
		}
	}
	return false
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires every service over one in-memory repository
type fixture struct {
	repo         *repository.Repository
	rep          *reputation.MockClient
	events       *recorder
	clock        *clock
	sessions     *services.SessionService
	elements     *services.ElementService
	competitions *services.CompetitionService
	moderation   *services.ModerationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	repo := testutil.NewTestRepository(t)
	rep := reputation.NewMockClient()

	f := &fixture{
		repo:         repo,
		rep:          rep,
		events:       &recorder{},
		clock:        newClock(),
		sessions:     services.NewSessionService(log, repo, rep),
		elements:     services.NewElementService(log, repo, rep),
		competitions: services.NewCompetitionService(log, repo, rep),
		moderation:   services.NewModerationService(log, repo, rep),
	}
	f.sessions.SetBroadcaster(f.events)
	f.elements.SetBroadcaster(f.events)
	f.competitions.SetBroadcaster(f.events)
	f.moderation.SetBroadcaster(f.events)
	f.sessions.SetClock(f.clock.Now)
	f.elements.SetClock(f.clock.Now)
	f.competitions.SetClock(f.clock.Now)
	f.moderation.SetClock(f.clock.Now)
	return f
}

// seed stores a session in status with the given users joined as participants
func (f *fixture) seed(t *testing.T, code string, status models.SessionStatus, members ...string) *models.Session {
	t.Helper()
	s := testutil.SeedSession(t, f.repo, code, "host", status)
	for _, m := range members {
		if _, err := f.sessions.Join(context.Background(), s.ID, m); err != nil {
			t.Fatalf("Join(%s) failed: %v", m, err)
		}
	}
	got, err := f.repo.GetSession(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	return got
}

func (f *fixture) session(t *testing.T, id string) *models.Session {
	t.Helper()
	s, err := f.repo.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	return s
}
