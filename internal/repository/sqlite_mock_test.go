package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crowdsong/crowdsong/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Repository{db: db}, mock
}

// TestGetSession_QueryError tests database failure on lookup
func TestGetSession_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").WillReturnError(errors.New("disk I/O error"))

	_, err := repo.GetSession(context.Background(), "s1")
	if err == nil || err == ErrNotFound {
		t.Errorf("expected raw database error, got %v", err)
	}
}

// TestGetSession_CorruptDocument tests undecodable JSON data
func TestGetSession_CorruptDocument(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "version", "data"}).AddRow("s1", 3, "{not json")
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").WillReturnRows(rows)

	if _, err := repo.GetSession(context.Background(), "s1"); err == nil {
		t.Error("expected decode error, got nil")
	}
}

// TestUpdateSession_StaleVersion tests a lost compare-and-set race
func TestUpdateSession_StaleVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	s := &models.Session{ID: "s1", Version: 4, UpdatedAt: time.Now()}

	mock.ExpectExec("UPDATE sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sessions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	if err := repo.UpdateSession(context.Background(), s); err != ErrStaleVersion {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}
	if s.Version != 4 {
		t.Errorf("version must not change on failure, got %d", s.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestUpdateSession_ExecError tests write failure
func TestUpdateSession_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE sessions").WillReturnError(errors.New("database is locked"))

	err := repo.UpdateSession(context.Background(), &models.Session{ID: "s1", Version: 1})
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// TestUpdateCompetition_Missing tests compare-and-set on a deleted row
func TestUpdateCompetition_Missing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE competitions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM competitions").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := repo.UpdateCompetition(context.Background(), &models.ElementCompetition{ID: "c1", Version: 1})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestCastOptionVote_BeginError tests transaction start failure
func TestCastOptionVote_BeginError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("cannot begin"))

	_, err := repo.CastOptionVote(context.Background(), &models.ElementVote{SessionID: "s1", UserID: "u1", ElementID: "o1", VoteValue: 1})
	if err == nil {
		t.Error("expected error, got nil")
	}
}

// TestCastOptionVote_RollsBackOnFailure tests that a failed counter update rolls back the ledger write
func TestCastOptionVote_RollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, element_type FROM element_options").
		WillReturnRows(sqlmock.NewRows([]string{"id", "element_type"}).AddRow("pk1", "tempo"))
	mock.ExpectQuery("SELECT (.+) FROM element_votes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM element_votes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO element_votes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO element_option_voters").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.CastOptionVote(context.Background(), &models.ElementVote{SessionID: "s1", UserID: "u1", ElementID: "o1", VoteValue: 1, Weight: 1})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestRemoveOptionVote_UnknownOption tests lookup miss inside the transaction
func TestRemoveOptionVote_UnknownOption(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, element_type FROM element_options").
		WillReturnRows(sqlmock.NewRows([]string{"id", "element_type"}))
	mock.ExpectRollback()

	_, err := repo.RemoveOptionVote(context.Background(), "s1", "u1", "o1")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestListOptions_ScanError tests row scanning error
func TestListOptions_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("only-one-column")
	mock.ExpectQuery("SELECT (.+) FROM element_options o").WillReturnRows(rows)

	if _, err := repo.ListOptions(context.Background(), OptionFilter{SessionID: "s1"}); err == nil {
		t.Error("expected error from scan failure, got nil")
	}
}

// TestRecomputeTallies_DeleteError tests failure on the first rebuild step
func TestRecomputeTallies_DeleteError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM element_option_voters").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	if err := repo.RecomputeTallies(context.Background(), "s1"); err == nil {
		t.Error("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestListCompetitionsDue_QueryError tests database failure
func TestListCompetitionsDue_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM competitions").WillReturnError(errors.New("boom"))

	if _, err := repo.ListCompetitionsDue(context.Background(), time.Now()); err == nil {
		t.Error("expected error, got nil")
	}
}
