package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crowdsong/crowdsong/internal/models"
)

// newTestRepo creates a new in-memory repository for testing.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newSession(code, hostID string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		Code:       code,
		HostID:     hostID,
		Title:      "Night Drive",
		Genre:      "synthwave",
		Visibility: models.VisibilityPublic,
		Status:     models.StatusDraft,
		Stage:      1,
		Participants: []models.Participant{
			{UserID: hostID, Role: models.RoleHost, IsActive: true, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func createSession(t *testing.T, repo *Repository, code string) *models.Session {
	t.Helper()
	s := newSession(code, "host-"+code)
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return s
}

func createOption(t *testing.T, repo *Repository, sessionID string, elementType models.ElementType, optionID string, order int) *models.ElementOption {
	t.Helper()
	now := time.Now().UTC()
	o := &models.ElementOption{
		SessionID:   sessionID,
		ElementType: elementType,
		OptionID:    optionID,
		Label:       optionID,
		CreatedBy:   "system",
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateOption(context.Background(), o); err != nil {
		t.Fatalf("CreateOption failed: %v", err)
	}
	return o
}

func vote(sessionID, userID, optionID string, value int, weight float64) *models.ElementVote {
	return &models.ElementVote{
		SessionID: sessionID,
		UserID:    userID,
		ElementID: optionID,
		VoteValue: value,
		Weight:    weight,
	}
}

// ==================== Session Tests ====================

func TestCreateSession_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s := createSession(t, repo, "AB-CDE")
	if s.ID == "" {
		t.Fatal("expected generated ID")
	}
	if s.Version != 1 {
		t.Errorf("expected version 1, got %d", s.Version)
	}

	got, err := repo.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Code != "AB-CDE" || got.Title != "Night Drive" || got.Version != 1 {
		t.Errorf("unexpected session: %+v", got)
	}
	if len(got.Participants) != 1 || got.Participants[0].Role != models.RoleHost {
		t.Errorf("participants not persisted: %+v", got.Participants)
	}
}

func TestCreateSession_DuplicateCode(t *testing.T) {
	repo := newTestRepo(t)
	createSession(t, repo, "AB-CDE")

	err := repo.CreateSession(context.Background(), newSession("AB-CDE", "other"))
	if err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.GetSession(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetSessionByCode(context.Background(), "ZZ-ZZZ"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSessionByCode_CaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	s := createSession(t, repo, "AB-CDE")

	got, err := repo.GetSessionByCode(context.Background(), "ab-cde")
	if err != nil {
		t.Fatalf("GetSessionByCode failed: %v", err)
	}
	if got.ID != s.ID {
		t.Errorf("expected %s, got %s", s.ID, got.ID)
	}

	exists, err := repo.SessionCodeExists(context.Background(), "AB-CDE")
	if err != nil || !exists {
		t.Errorf("expected code to exist, got %v, %v", exists, err)
	}
}

func TestUpdateSession_CompareAndSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")

	first, _ := repo.GetSession(ctx, s.ID)
	second, _ := repo.GetSession(ctx, s.ID)

	first.Title = "First writer"
	if err := repo.UpdateSession(ctx, first); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2, got %d", first.Version)
	}

	second.Title = "Second writer"
	if err := repo.UpdateSession(ctx, second); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	if second.Version != 1 {
		t.Errorf("version should not change on a failed write, got %d", second.Version)
	}

	got, _ := repo.GetSession(ctx, s.ID)
	if got.Title != "First writer" || got.Version != 2 {
		t.Errorf("unexpected stored session: title=%q version=%d", got.Title, got.Version)
	}
}

func TestUpdateSession_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	s := newSession("AB-CDE", "host")
	s.ID = "missing"
	s.Version = 1

	if err := repo.UpdateSession(context.Background(), s); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessions_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := createSession(t, repo, "AA-AAA")
	b := newSession("BB-BBB", "host-b")
	b.Genre = "jazz"
	b.Visibility = models.VisibilityPrivate
	if err := repo.CreateSession(ctx, b); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	all, err := repo.ListSessions(ctx, models.SessionFilter{})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(all))
	}

	jazz, _ := repo.ListSessions(ctx, models.SessionFilter{Genre: "jazz"})
	if len(jazz) != 1 || jazz[0].ID != b.ID {
		t.Errorf("genre filter failed: %+v", jazz)
	}

	public, _ := repo.ListSessions(ctx, models.SessionFilter{Visibility: models.VisibilityPublic})
	if len(public) != 1 || public[0].ID != a.ID {
		t.Errorf("visibility filter failed: %+v", public)
	}

	byHost, _ := repo.ListSessions(ctx, models.SessionFilter{HostID: "host-b"})
	if len(byHost) != 1 {
		t.Errorf("host filter failed: %+v", byHost)
	}

	paged, _ := repo.ListSessions(ctx, models.SessionFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 {
		t.Errorf("expected one paged session, got %d", len(paged))
	}
}

func TestListSessionsEndingBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newSession("AA-AAA", "h1")
	due.Status = models.StatusActive
	due.Settings.EndsAt = &past
	later := newSession("BB-BBB", "h2")
	later.Settings.EndsAt = &future
	done := newSession("CC-CCC", "h3")
	done.Status = models.StatusCompleted
	done.Settings.EndsAt = &past
	for _, s := range []*models.Session{due, later, done} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	sessions, err := repo.ListSessionsEndingBefore(ctx, now)
	if err != nil {
		t.Fatalf("ListSessionsEndingBefore failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != due.ID {
		t.Errorf("expected only the due session, got %+v", sessions)
	}
}

// ==================== Option Tests ====================

func TestCreateOption_Duplicate(t *testing.T) {
	repo := newTestRepo(t)
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)

	o := &models.ElementOption{SessionID: s.ID, ElementType: models.ElementTempo, OptionID: "tempo-fast", Label: "Fast", CreatedBy: "u1"}
	if err := repo.CreateOption(context.Background(), o); err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestListOptions_OrderAndFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")

	createOption(t, repo, s.ID, models.ElementTempo, "tempo-slow", 2)
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 1)
	createOption(t, repo, s.ID, models.ElementMood, "mood-dark", 0)

	options, err := repo.ListOptions(ctx, OptionFilter{SessionID: s.ID, ElementType: models.ElementTempo})
	if err != nil {
		t.Fatalf("ListOptions failed: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected 2 tempo options, got %d", len(options))
	}
	if options[0].OptionID != "tempo-fast" || options[1].OptionID != "tempo-slow" {
		t.Errorf("expected display order, got %s, %s", options[0].OptionID, options[1].OptionID)
	}
	if options[0].VoterIDs == nil {
		t.Error("expected empty voter list, not nil")
	}
}

func TestCountUserOptions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")

	for i := 0; i < 3; i++ {
		o := &models.ElementOption{
			SessionID:       s.ID,
			ElementType:     models.ElementHook,
			OptionID:        fmt.Sprintf("hook-%d", i),
			Label:           "hook",
			CreatedBy:       "u1",
			IsUserSubmitted: true,
		}
		if err := repo.CreateOption(ctx, o); err != nil {
			t.Fatalf("CreateOption failed: %v", err)
		}
	}
	createOption(t, repo, s.ID, models.ElementHook, "hook-seed", 9)

	count, err := repo.CountUserOptions(ctx, s.ID, "u1")
	if err != nil {
		t.Fatalf("CountUserOptions failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestSetOptionStatuses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementKey, "key-c", 0)
	createOption(t, repo, s.ID, models.ElementKey, "key-am", 1)

	err := repo.SetOptionStatuses(ctx, s.ID, map[string]models.OptionStatus{
		"key-c":  models.OptionSelected,
		"key-am": models.OptionAlternative,
	})
	if err != nil {
		t.Fatalf("SetOptionStatuses failed: %v", err)
	}
	o, _ := repo.GetOption(ctx, s.ID, "key-c")
	if o.Status != models.OptionSelected {
		t.Errorf("expected selected, got %s", o.Status)
	}

	err = repo.SetOptionStatuses(ctx, s.ID, map[string]models.OptionStatus{"key-missing": models.OptionRejected})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ==================== Vote Ledger Tests ====================

func TestCastOptionVote_UpdatesCountersAndLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)

	prev, err := repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteApprove, 1.5))
	if err != nil {
		t.Fatalf("CastOptionVote failed: %v", err)
	}
	if prev != nil {
		t.Errorf("expected no previous vote, got %+v", prev)
	}
	if _, err := repo.CastOptionVote(ctx, vote(s.ID, "u2", "tempo-fast", 4, 1.0)); err != nil {
		t.Fatalf("CastOptionVote failed: %v", err)
	}

	o, err := repo.GetOption(ctx, s.ID, "tempo-fast")
	if err != nil {
		t.Fatalf("GetOption failed: %v", err)
	}
	if o.Votes != 2 || o.WeightedVotes != 2.5 {
		t.Errorf("expected 2 votes / 2.5 weighted, got %d / %v", o.Votes, o.WeightedVotes)
	}
	if len(o.VoterIDs) != 2 || o.VoterIDs[0] != "u1" {
		t.Errorf("unexpected voters: %v", o.VoterIDs)
	}

	votes, _ := repo.ListElementVotes(ctx, s.ID)
	if len(votes) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(votes))
	}
	if votes[0].ElementType != models.ElementTempo {
		t.Errorf("expected element type from option, got %q", votes[0].ElementType)
	}
}

func TestCastOptionVote_SameValueIsDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)

	if _, err := repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteApprove, 1)); err != nil {
		t.Fatalf("CastOptionVote failed: %v", err)
	}
	if _, err := repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteApprove, 1)); err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	o, _ := repo.GetOption(ctx, s.ID, "tempo-fast")
	if o.Votes != 1 {
		t.Errorf("expected 1 vote, got %d", o.Votes)
	}
}

func TestCastOptionVote_ChangedValueReconciles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)

	repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteApprove, 2))

	prev, err := repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteReject, 2))
	if err != nil {
		t.Fatalf("CastOptionVote failed: %v", err)
	}
	if prev == nil || prev.VoteValue != models.VoteApprove {
		t.Errorf("expected previous approve, got %+v", prev)
	}
	o, _ := repo.GetOption(ctx, s.ID, "tempo-fast")
	if o.Votes != 0 || o.WeightedVotes != 0 || len(o.VoterIDs) != 0 {
		t.Errorf("reject should remove the counted vote, got %d / %v / %v", o.Votes, o.WeightedVotes, o.VoterIDs)
	}

	if _, err := repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", 5, 1.25)); err != nil {
		t.Fatalf("CastOptionVote failed: %v", err)
	}
	o, _ = repo.GetOption(ctx, s.ID, "tempo-fast")
	if o.Votes != 1 || o.WeightedVotes != 1.25 {
		t.Errorf("expected 1 / 1.25, got %d / %v", o.Votes, o.WeightedVotes)
	}

	votes, _ := repo.ListUserElementVotes(ctx, s.ID, "u1")
	if len(votes) != 1 || votes[0].VoteValue != 5 {
		t.Errorf("expected a single upserted ledger row, got %+v", votes)
	}
}

func TestCastOptionVote_UnknownOption(t *testing.T) {
	repo := newTestRepo(t)
	s := createSession(t, repo, "AB-CDE")

	if _, err := repo.CastOptionVote(context.Background(), vote(s.ID, "u1", "nope", 1, 1)); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveOptionVote(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementMood, "mood-dark", 0)

	repo.CastOptionVote(ctx, vote(s.ID, "u1", "mood-dark", models.VoteApprove, 1.5))

	removed, err := repo.RemoveOptionVote(ctx, s.ID, "u1", "mood-dark")
	if err != nil {
		t.Fatalf("RemoveOptionVote failed: %v", err)
	}
	if removed.Weight != 1.5 {
		t.Errorf("expected removed weight 1.5, got %v", removed.Weight)
	}
	o, _ := repo.GetOption(ctx, s.ID, "mood-dark")
	if o.Votes != 0 || o.WeightedVotes != 0 {
		t.Errorf("expected empty counters, got %d / %v", o.Votes, o.WeightedVotes)
	}

	if _, err := repo.RemoveOptionVote(ctx, s.ID, "u1", "mood-dark"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestUpsertElementVote_LedgerOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")

	v := &models.ElementVote{SessionID: s.ID, UserID: "u1", ElementType: models.ElementLyricVerse, ElementID: "verse-1", VoteValue: 3, Weight: 1}
	prev, err := repo.UpsertElementVote(ctx, v)
	if err != nil {
		t.Fatalf("UpsertElementVote failed: %v", err)
	}
	if prev != nil {
		t.Errorf("expected no previous vote")
	}

	v2 := &models.ElementVote{SessionID: s.ID, UserID: "u1", ElementType: models.ElementLyricVerse, ElementID: "verse-1", VoteValue: 5, Weight: 1, Comment: "better"}
	prev, err = repo.UpsertElementVote(ctx, v2)
	if err != nil {
		t.Fatalf("UpsertElementVote failed: %v", err)
	}
	if prev == nil || prev.VoteValue != 3 {
		t.Errorf("expected previous value 3, got %+v", prev)
	}
	if v2.ID != v.ID {
		t.Errorf("upsert should keep the row ID, got %s and %s", v.ID, v2.ID)
	}

	votes, _ := repo.ListElementVotes(ctx, s.ID)
	if len(votes) != 1 || votes[0].Comment != "better" {
		t.Errorf("expected one updated row, got %+v", votes)
	}
}

func TestRecomputeTallies_RepairsDrift(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-slow", 1)

	repo.CastOptionVote(ctx, vote(s.ID, "u1", "tempo-fast", models.VoteApprove, 2))
	repo.CastOptionVote(ctx, vote(s.ID, "u2", "tempo-fast", models.VoteReject, 1))
	repo.CastOptionVote(ctx, vote(s.ID, "u3", "tempo-slow", 3, 1))

	if _, err := repo.db.Exec(`UPDATE element_options SET votes = 99, weighted_votes = 42`); err != nil {
		t.Fatalf("corrupting counters failed: %v", err)
	}
	if _, err := repo.db.Exec(`DELETE FROM element_option_voters`); err != nil {
		t.Fatalf("corrupting voters failed: %v", err)
	}

	if err := repo.RecomputeTallies(ctx, s.ID); err != nil {
		t.Fatalf("RecomputeTallies failed: %v", err)
	}

	fast, _ := repo.GetOption(ctx, s.ID, "tempo-fast")
	if fast.Votes != 1 || fast.WeightedVotes != 2 || len(fast.VoterIDs) != 1 || fast.VoterIDs[0] != "u1" {
		t.Errorf("unexpected fast tallies: %d / %v / %v", fast.Votes, fast.WeightedVotes, fast.VoterIDs)
	}
	slow, _ := repo.GetOption(ctx, s.ID, "tempo-slow")
	if slow.Votes != 1 || slow.WeightedVotes != 1 {
		t.Errorf("unexpected slow tallies: %d / %v", slow.Votes, slow.WeightedVotes)
	}
}

func TestCastOptionVote_Concurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	createOption(t, repo, s.ID, models.ElementTempo, "tempo-fast", 0)

	const voters = 25
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			// each user votes twice with the same value; the second must be refused
			for j := 0; j < 2; j++ {
				if _, err := repo.CastOptionVote(ctx, vote(s.ID, userID, "tempo-fast", models.VoteApprove, 1)); err != nil && err != ErrDuplicate {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	o, _ := repo.GetOption(ctx, s.ID, "tempo-fast")
	if o.Votes != voters || len(o.VoterIDs) != voters || o.WeightedVotes != voters {
		t.Errorf("expected %d votes, got %d / %d / %v", voters, o.Votes, len(o.VoterIDs), o.WeightedVotes)
	}
}

// ==================== Competition Tests ====================

func newCompetition(sessionID string) *models.ElementCompetition {
	now := time.Now().UTC()
	return &models.ElementCompetition{
		SessionID:             sessionID,
		ElementType:           models.ElementHook,
		Title:                 "Best hook",
		Status:                models.CompetitionOpen,
		MaxSubmissionsPerUser: 2,
		Submissions:           []models.Submission{},
		CreatedBy:             "host",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestCompetition_CreateGetUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")

	c := newCompetition(s.ID)
	if err := repo.CreateCompetition(ctx, c); err != nil {
		t.Fatalf("CreateCompetition failed: %v", err)
	}

	stale, _ := repo.GetCompetition(ctx, c.ID)

	c.Submissions = append(c.Submissions, models.Submission{ID: "sub-1", UserID: "u1", AudioURL: "https://a/1.mp3"})
	if err := repo.UpdateCompetition(ctx, c); err != nil {
		t.Fatalf("UpdateCompetition failed: %v", err)
	}
	if err := repo.UpdateCompetition(ctx, stale); err != ErrStaleVersion {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}

	got, err := repo.GetCompetition(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCompetition failed: %v", err)
	}
	if len(got.Submissions) != 1 || got.Version != 2 {
		t.Errorf("unexpected competition: %d submissions, version %d", len(got.Submissions), got.Version)
	}

	list, _ := repo.ListCompetitions(ctx, s.ID)
	if len(list) != 1 {
		t.Errorf("expected 1 competition, got %d", len(list))
	}

	if _, err := repo.GetCompetition(ctx, "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListCompetitionsDue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	s := createSession(t, repo, "AB-CDE")
	now := time.Now().UTC()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	submissionsDue := newCompetition(s.ID)
	submissionsDue.SubmissionDeadline = &past

	votingDue := newCompetition(s.ID)
	votingDue.Status = models.CompetitionVoting
	votingDue.VotingDeadline = &past

	notDue := newCompetition(s.ID)
	notDue.SubmissionDeadline = &future

	closed := newCompetition(s.ID)
	closed.Status = models.CompetitionClosed
	closed.VotingDeadline = &past

	for _, c := range []*models.ElementCompetition{submissionsDue, votingDue, notDue, closed} {
		if err := repo.CreateCompetition(ctx, c); err != nil {
			t.Fatalf("CreateCompetition failed: %v", err)
		}
	}

	due, err := repo.ListCompetitionsDue(ctx, now)
	if err != nil {
		t.Fatalf("ListCompetitionsDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due competitions, got %d", len(due))
	}
	ids := map[string]bool{due[0].ID: true, due[1].ID: true}
	if !ids[submissionsDue.ID] || !ids[votingDue.ID] {
		t.Errorf("unexpected due set: %v", ids)
	}
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if repo.DB() == nil {
		t.Error("expected DB handle")
	}
}
