package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KanishkKundu05/scrapeX/pkg/models"
)

// SessionStore persists authenticated sending identities. Login cookies
// never leave this package except through Credential.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a session store backed by Postgres
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// SessionCredential is the secret material needed to post as a session.
// It is handed to the dispatch path and nowhere else.
type SessionCredential struct {
	LoginCookie string
	Proxy       string
}

const sessionColumns = `id, session_name, username, email,
	(proxy IS NOT NULL AND proxy <> '') AS has_proxy, is_active, created_at, last_used_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.TwitterSession, error) {
	var s models.TwitterSession
	err := row.Scan(
		&s.ID, &s.SessionName, &s.Username, &s.Email,
		&s.HasProxy, &s.IsActive, &s.CreatedAt, &s.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create registers a session with its secret cookie and returns its id
func (s *SessionStore) Create(ctx context.Context, sessionName, loginCookie, proxy, username, email string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO twitter_sessions (id, session_name, login_cookie, proxy, username, email)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, id, sessionName, loginCookie, proxy, username, email)
	if err != nil {
		return "", fmt.Errorf("create session %s: %w", sessionName, err)
	}
	return id, nil
}

// Get returns a session by id without its credential, or nil when absent
func (s *SessionStore) Get(ctx context.Context, id string) (*models.TwitterSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM twitter_sessions WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// List returns all sessions without credentials, oldest first
func (s *SessionStore) List(ctx context.Context) ([]models.TwitterSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM twitter_sessions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.TwitterSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// FirstActive returns the oldest active session, or nil when none exists.
// The ordering is deterministic so every dispatch picks the same identity.
func (s *SessionStore) FirstActive(ctx context.Context) (*models.TwitterSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM twitter_sessions
		WHERE is_active = TRUE
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first active session: %w", err)
	}
	return sess, nil
}

// Credential returns the secret login material for a session. Callers other
// than the dispatch path have no business calling this.
func (s *SessionStore) Credential(ctx context.Context, id string) (*SessionCredential, error) {
	var cred SessionCredential
	var proxy sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT login_cookie, proxy FROM twitter_sessions WHERE id = $1`, id).
		Scan(&cred.LoginCookie, &proxy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session credential %s: %w", id, err)
	}
	cred.Proxy = proxy.String
	return &cred, nil
}

// SetActive flips a session's active flag, returning false when the id is
// unknown
func (s *SessionStore) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE twitter_sessions SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return false, fmt.Errorf("set session %s active=%t: %w", id, active, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set session %s active=%t: %w", id, active, err)
	}
	return rows == 1, nil
}

// TouchLastUsed records that a session just posted
func (s *SessionStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE twitter_sessions SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	return nil
}
