package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/crowdsong/crowdsong/internal/elements"
	"github.com/crowdsong/crowdsong/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			code TEXT UNIQUE NOT NULL,
			host_id TEXT NOT NULL,
			status TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'public',
			genre TEXT NOT NULL DEFAULT '',
			ends_at INTEGER,
			version INTEGER NOT NULL DEFAULT 1,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS element_options (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			song_id TEXT NOT NULL DEFAULT '',
			option_id TEXT NOT NULL,
			element_type TEXT NOT NULL,
			label TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			value TEXT,
			votes INTEGER NOT NULL DEFAULT 0,
			weighted_votes REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			created_by TEXT NOT NULL,
			is_user_submitted BOOLEAN NOT NULL DEFAULT 0,
			display_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id),
			UNIQUE(session_id, option_id)
		)`,
		`CREATE TABLE IF NOT EXISTS element_option_voters (
			option_pk TEXT NOT NULL,
			user_id TEXT NOT NULL,
			weight REAL NOT NULL,
			voted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (option_pk, user_id),
			FOREIGN KEY (option_pk) REFERENCES element_options(id)
		)`,
		`CREATE TABLE IF NOT EXISTS element_votes (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			element_type TEXT NOT NULL,
			element_id TEXT NOT NULL,
			song_id TEXT NOT NULL DEFAULT '',
			value TEXT,
			vote_value INTEGER NOT NULL,
			weight REAL NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id),
			UNIQUE(session_id, user_id, element_type, element_id)
		)`,
		`CREATE TABLE IF NOT EXISTS competitions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			element_type TEXT NOT NULL,
			status TEXT NOT NULL,
			submission_deadline INTEGER,
			voting_deadline INTEGER,
			version INTEGER NOT NULL DEFAULT 1,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_host ON sessions(host_id)`,
		`CREATE INDEX IF NOT EXISTS idx_options_session ON element_options(session_id, element_type)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_session ON element_votes(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_user ON element_votes(session_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_competitions_session ON competitions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_competitions_status ON competitions(status)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func unixMillis(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// ==================== Session Methods ====================

const sessionColumns = `id, version, data`

// CreateSession inserts a new session document at version 1
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Version = 1
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, code, host_id, status, visibility, genre, ends_at, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Code, s.HostID, s.Status, s.Visibility, s.Genre, unixMillis(s.Settings.EndsAt), s.Version, string(data), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanSession(row interface{ Scan(...interface{}) error }) (*models.Session, error) {
	var (
		id      string
		version int
		data    string
	)
	if err := row.Scan(&id, &version, &data); err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.ID = id
	s.Version = version
	return &s, nil
}

// GetSession retrieves a session by ID
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// GetSessionByCode retrieves a session by its join code
func (r *Repository) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE code = ?`, strings.ToUpper(code)))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// SessionCodeExists checks whether a join code is taken
func (r *Repository) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE code = ?`, code).Scan(&count)
	return count > 0, err
}

// ListSessions returns sessions matching filter, newest first
func (r *Repository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Genre != "" {
		where = append(where, "genre = ?")
		args = append(args, filter.Genre)
	}
	if filter.Visibility != "" {
		where = append(where, "visibility = ?")
		args = append(args, filter.Visibility)
	}
	if filter.HostID != "" {
		where = append(where, "host_id = ?")
		args = append(args, filter.HostID)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSession writes the session if nobody else did since it was read
func (r *Repository) UpdateSession(ctx context.Context, s *models.Session) error {
	next := *s
	next.Version = s.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, visibility = ?, genre = ?, ends_at = ?, data = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, s.Status, s.Visibility, s.Genre, unixMillis(s.Settings.EndsAt), string(data), s.UpdatedAt.UTC(), s.ID, s.Version)
	if err != nil {
		return err
	}
	if err := r.checkVersioned(ctx, res, "sessions", s.ID); err != nil {
		return err
	}
	s.Version = next.Version
	return nil
}

// checkVersioned turns a zero-row compare-and-set into ErrStaleVersion or ErrNotFound
func (r *Repository) checkVersioned(ctx context.Context, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleVersion
}

// ListSessionsEndingBefore returns live sessions whose end time is at or before t
func (r *Repository) ListSessionsEndingBefore(ctx context.Context, t time.Time) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE ends_at IS NOT NULL AND ends_at <= ? AND status NOT IN (?, ?)
		ORDER BY ends_at
	`, t.UnixMilli(), models.StatusCompleted, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ==================== Element Option Methods ====================

const optionColumns = `o.id, o.session_id, o.song_id, o.option_id, o.element_type, o.label, o.description, o.value,
	o.votes, o.weighted_votes, o.status, o.created_by, o.is_user_submitted, o.display_order, o.created_at, o.updated_at`

func scanOption(row interface{ Scan(...interface{}) error }) (*models.ElementOption, error) {
	var (
		o     models.ElementOption
		value sql.NullString
	)
	err := row.Scan(&o.ID, &o.SessionID, &o.SongID, &o.OptionID, &o.ElementType, &o.Label, &o.Description, &value,
		&o.Votes, &o.WeightedVotes, &o.Status, &o.CreatedBy, &o.IsUserSubmitted, &o.Order, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if value.Valid {
		o.Value = json.RawMessage(value.String)
	}
	o.VoterIDs = []string{}
	return &o, nil
}

// CreateOption inserts an option with empty counters
func (r *Repository) CreateOption(ctx context.Context, o *models.ElementOption) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.OptionID == "" {
		o.OptionID = o.ID
	}
	if o.Status == "" {
		o.Status = models.OptionPending
	}
	o.Votes = 0
	o.WeightedVotes = 0
	o.VoterIDs = []string{}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO element_options (id, session_id, song_id, option_id, element_type, label, description, value,
			status, created_by, is_user_submitted, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.SessionID, o.SongID, o.OptionID, o.ElementType, o.Label, o.Description, nullJSON(o.Value),
		o.Status, o.CreatedBy, o.IsUserSubmitted, o.Order, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetOption retrieves one option with its voter list
func (r *Repository) GetOption(ctx context.Context, sessionID, optionID string) (*models.ElementOption, error) {
	o, err := scanOption(r.db.QueryRowContext(ctx, `
		SELECT `+optionColumns+` FROM element_options o WHERE o.session_id = ? AND o.option_id = ?
	`, sessionID, optionID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM element_option_voters WHERE option_pk = ? ORDER BY voted_at, rowid
	`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		o.VoterIDs = append(o.VoterIDs, userID)
	}
	return o, rows.Err()
}

// ListOptions returns options in display order with voter lists, loaded in one pass
func (r *Repository) ListOptions(ctx context.Context, filter OptionFilter) ([]models.ElementOption, error) {
	where := []string{"o.session_id = ?"}
	args := []interface{}{filter.SessionID}
	if filter.SongID != "" {
		where = append(where, "o.song_id = ?")
		args = append(args, filter.SongID)
	}
	if filter.ElementType != "" {
		where = append(where, "o.element_type = ?")
		args = append(args, filter.ElementType)
	}
	cond := strings.Join(where, " AND ")

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+optionColumns+` FROM element_options o
		WHERE `+cond+`
		ORDER BY o.element_type, o.display_order, o.created_at, o.id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []models.ElementOption{}
	index := make(map[string]int)
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(options)
		options = append(options, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	voterRows, err := r.db.QueryContext(ctx, `
		SELECT v.option_pk, v.user_id FROM element_option_voters v
		JOIN element_options o ON o.id = v.option_pk
		WHERE `+cond+`
		ORDER BY v.voted_at, v.rowid
	`, args...)
	if err != nil {
		return nil, err
	}
	defer voterRows.Close()
	for voterRows.Next() {
		var optionPK, userID string
		if err := voterRows.Scan(&optionPK, &userID); err != nil {
			return nil, err
		}
		if i, ok := index[optionPK]; ok {
			options[i].VoterIDs = append(options[i].VoterIDs, userID)
		}
	}
	return options, voterRows.Err()
}

// CountUserOptions counts options a user submitted in a session
func (r *Repository) CountUserOptions(ctx context.Context, sessionID, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM element_options WHERE session_id = ? AND created_by = ? AND is_user_submitted = 1
	`, sessionID, userID).Scan(&count)
	return count, err
}

// SetOptionStatuses updates several option statuses atomically
func (r *Repository) SetOptionStatuses(ctx context.Context, sessionID string, statuses map[string]models.OptionStatus) error {
	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for optionID, status := range statuses {
			res, err := tx.ExecContext(ctx, `
				UPDATE element_options SET status = ?, updated_at = ? WHERE session_id = ? AND option_id = ?
			`, status, now, sessionID, optionID)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

// ==================== Vote Ledger Methods ====================

const voteColumns = `id, session_id, user_id, element_type, element_id, song_id, value, vote_value, weight, comment, created_at, updated_at`

func scanVote(row interface{ Scan(...interface{}) error }) (*models.ElementVote, error) {
	var (
		v     models.ElementVote
		value sql.NullString
	)
	err := row.Scan(&v.ID, &v.SessionID, &v.UserID, &v.ElementType, &v.ElementID, &v.SongID, &value,
		&v.VoteValue, &v.Weight, &v.Comment, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if value.Valid {
		v.Value = json.RawMessage(value.String)
	}
	return &v, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getVote(ctx context.Context, q queryRower, sessionID, userID string, elementType models.ElementType, elementID string) (*models.ElementVote, error) {
	v, err := scanVote(q.QueryRowContext(ctx, `
		SELECT `+voteColumns+` FROM element_votes
		WHERE session_id = ? AND user_id = ? AND element_type = ? AND element_id = ?
	`, sessionID, userID, elementType, elementID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// upsertVote writes the ledger row for v's slot and returns the row it replaced, if any
func upsertVote(ctx context.Context, tx *sql.Tx, v *models.ElementVote) (*models.ElementVote, error) {
	prev, err := getVote(ctx, tx, v.SessionID, v.UserID, v.ElementType, v.ElementID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if prev != nil {
		v.ID = prev.ID
		v.CreatedAt = prev.CreatedAt
	} else {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO element_votes (id, session_id, user_id, element_type, element_id, song_id, value, vote_value, weight, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, user_id, element_type, element_id) DO UPDATE SET
			song_id = excluded.song_id,
			value = excluded.value,
			vote_value = excluded.vote_value,
			weight = excluded.weight,
			comment = excluded.comment,
			updated_at = excluded.updated_at
	`, v.ID, v.SessionID, v.UserID, v.ElementType, v.ElementID, v.SongID, nullJSON(v.Value), v.VoteValue, v.Weight, v.Comment, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// UpsertElementVote records a ledger-only vote, replacing any earlier vote on the same slot
func (r *Repository) UpsertElementVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error) {
	var prev *models.ElementVote
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		prev, err = upsertVote(ctx, tx, v)
		return err
	})
	return prev, err
}

func optionPK(ctx context.Context, tx *sql.Tx, sessionID, optionID string) (string, models.ElementType, error) {
	var (
		pk          string
		elementType models.ElementType
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, element_type FROM element_options WHERE session_id = ? AND option_id = ?
	`, sessionID, optionID).Scan(&pk, &elementType)
	if err == sql.ErrNoRows {
		return "", "", ErrNotFound
	}
	return pk, elementType, err
}

func addVoter(ctx context.Context, tx *sql.Tx, pk, userID string, weight float64, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO element_option_voters (option_pk, user_id, weight, voted_at) VALUES (?, ?, ?, ?)
	`, pk, userID, weight, at); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE element_options SET votes = votes + 1, weighted_votes = weighted_votes + ?, updated_at = ? WHERE id = ?
	`, weight, at, pk)
	return err
}

func removeVoter(ctx context.Context, tx *sql.Tx, pk, userID string, at time.Time) error {
	var weight float64
	err := tx.QueryRowContext(ctx, `
		SELECT weight FROM element_option_voters WHERE option_pk = ? AND user_id = ?
	`, pk, userID).Scan(&weight)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM element_option_voters WHERE option_pk = ? AND user_id = ?`, pk, userID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE element_options
		SET votes = votes - 1, weighted_votes = MAX(weighted_votes - ?, 0), updated_at = ?
		WHERE id = ?
	`, weight, at, pk)
	return err
}

// CastOptionVote records v against an option. The ledger row is upserted and
// the option counters are reconciled with the previous vote in the same
// transaction. Repeating the same vote value returns ErrDuplicate.
func (r *Repository) CastOptionVote(ctx context.Context, v *models.ElementVote) (*models.ElementVote, error) {
	var prev *models.ElementVote
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		pk, elementType, err := optionPK(ctx, tx, v.SessionID, v.ElementID)
		if err != nil {
			return err
		}
		v.ElementType = elementType

		existing, err := getVote(ctx, tx, v.SessionID, v.UserID, v.ElementType, v.ElementID)
		if err != nil {
			return err
		}
		if existing != nil && existing.VoteValue == v.VoteValue {
			return ErrDuplicate
		}

		prev, err = upsertVote(ctx, tx, v)
		if err != nil {
			return err
		}
		if prev != nil && elements.Counts(prev.VoteValue) {
			if err := removeVoter(ctx, tx, pk, v.UserID, v.UpdatedAt); err != nil {
				return err
			}
		}
		if elements.Counts(v.VoteValue) {
			return addVoter(ctx, tx, pk, v.UserID, v.Weight, v.UpdatedAt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// RemoveOptionVote deletes the user's ledger row for an option and its counter contribution
func (r *Repository) RemoveOptionVote(ctx context.Context, sessionID, userID, optionID string) (*models.ElementVote, error) {
	var removed *models.ElementVote
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		pk, elementType, err := optionPK(ctx, tx, sessionID, optionID)
		if err != nil {
			return err
		}
		removed, err = getVote(ctx, tx, sessionID, userID, elementType, optionID)
		if err != nil {
			return err
		}
		if removed == nil {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM element_votes WHERE id = ?`, removed.ID); err != nil {
			return err
		}
		return removeVoter(ctx, tx, pk, userID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *Repository) listVotes(ctx context.Context, query string, args ...interface{}) ([]models.ElementVote, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []models.ElementVote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, *v)
	}
	return votes, rows.Err()
}

// ListElementVotes returns every ledger row of a session
func (r *Repository) ListElementVotes(ctx context.Context, sessionID string) ([]models.ElementVote, error) {
	return r.listVotes(ctx, `
		SELECT `+voteColumns+` FROM element_votes WHERE session_id = ? ORDER BY element_type, element_id, created_at
	`, sessionID)
}

// ListUserElementVotes returns a user's ledger rows in a session
func (r *Repository) ListUserElementVotes(ctx context.Context, sessionID, userID string) ([]models.ElementVote, error) {
	return r.listVotes(ctx, `
		SELECT `+voteColumns+` FROM element_votes WHERE session_id = ? AND user_id = ? ORDER BY updated_at DESC
	`, sessionID, userID)
}

// RecomputeTallies rebuilds every option counter of a session from the ledger
func (r *Repository) RecomputeTallies(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM element_option_voters
			WHERE option_pk IN (SELECT id FROM element_options WHERE session_id = ?)
		`, sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO element_option_voters (option_pk, user_id, weight, voted_at)
			SELECT o.id, v.user_id, v.weight, v.updated_at
			FROM element_votes v
			JOIN element_options o
				ON o.session_id = v.session_id AND o.option_id = v.element_id AND o.element_type = v.element_type
			WHERE v.session_id = ? AND v.vote_value >= ?
		`, sessionID, models.VoteApprove); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE element_options SET
				votes = (SELECT COUNT(*) FROM element_option_voters WHERE option_pk = element_options.id),
				weighted_votes = (SELECT COALESCE(SUM(weight), 0) FROM element_option_voters WHERE option_pk = element_options.id),
				updated_at = ?
			WHERE session_id = ?
		`, now, sessionID)
		return err
	})
}

// ==================== Competition Methods ====================

const competitionColumns = `id, version, data`

// CreateCompetition inserts a new competition document at version 1
func (r *Repository) CreateCompetition(ctx context.Context, c *models.ElementCompetition) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version = 1
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode competition: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO competitions (id, session_id, element_type, status, submission_deadline, voting_deadline, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.ElementType, c.Status, unixMillis(c.SubmissionDeadline), unixMillis(c.VotingDeadline),
		c.Version, string(data), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanCompetition(row interface{ Scan(...interface{}) error }) (*models.ElementCompetition, error) {
	var (
		id      string
		version int
		data    string
	)
	if err := row.Scan(&id, &version, &data); err != nil {
		return nil, err
	}
	var c models.ElementCompetition
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode competition %s: %w", id, err)
	}
	c.ID = id
	c.Version = version
	return &c, nil
}

// GetCompetition retrieves a competition by ID
func (r *Repository) GetCompetition(ctx context.Context, id string) (*models.ElementCompetition, error) {
	c, err := scanCompetition(r.db.QueryRowContext(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *Repository) listCompetitions(ctx context.Context, query string, args ...interface{}) ([]models.ElementCompetition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	competitions := []models.ElementCompetition{}
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		competitions = append(competitions, *c)
	}
	return competitions, rows.Err()
}

// ListCompetitions returns a session's competitions, oldest first
func (r *Repository) ListCompetitions(ctx context.Context, sessionID string) ([]models.ElementCompetition, error) {
	return r.listCompetitions(ctx, `
		SELECT `+competitionColumns+` FROM competitions WHERE session_id = ? ORDER BY created_at, id
	`, sessionID)
}

// UpdateCompetition writes the competition if nobody else did since it was read
func (r *Repository) UpdateCompetition(ctx context.Context, c *models.ElementCompetition) error {
	next := *c
	next.Version = c.Version + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode competition: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE competitions
		SET status = ?, submission_deadline = ?, voting_deadline = ?, data = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, c.Status, unixMillis(c.SubmissionDeadline), unixMillis(c.VotingDeadline), string(data), c.UpdatedAt.UTC(), c.ID, c.Version)
	if err != nil {
		return err
	}
	if err := r.checkVersioned(ctx, res, "competitions", c.ID); err != nil {
		return err
	}
	c.Version = next.Version
	return nil
}

// ListCompetitionsDue returns open competitions past their submission
// deadline and voting competitions past their voting deadline
func (r *Repository) ListCompetitionsDue(ctx context.Context, now time.Time) ([]models.ElementCompetition, error) {
	ms := now.UnixMilli()
	return r.listCompetitions(ctx, `
		SELECT `+competitionColumns+` FROM competitions
		WHERE (status = ? AND submission_deadline IS NOT NULL AND submission_deadline <= ?)
		   OR (status = ? AND voting_deadline IS NOT NULL AND voting_deadline <= ?)
		ORDER BY created_at, id
	`, models.CompetitionOpen, ms, models.CompetitionVoting, ms)
}
