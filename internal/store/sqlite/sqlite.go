package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-room/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
}

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the time source used for mute expiry and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *SQLiteStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// New opens the database at dbPath and applies pending migrations.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, migrateUp, opts...)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	s := &SQLiteStore{db: db, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) now() time.Time {
	return s.clock.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// ==== UserStore implementation ====

const userColumns = `id, username, password_hash, email, is_admin, status, created_at, last_login`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var (
		user      store.User
		email     sql.NullString
		status    string
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&email,
		&user.IsAdmin,
		&status,
		&user.CreatedAt,
		&lastLogin,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = &email.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	user.Status = store.UserStatus(status)
	return &user, nil
}

// CreateUser inserts a new account with an already hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string, email *string, isAdmin bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, email, is_admin, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var emailArg sql.NullString
	if email != nil && *email != "" {
		emailArg = sql.NullString{String: *email, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query, username, passwordHash, emailArg, isAdmin, store.UserStatusActive, s.now())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// SetUserStatus switches a user between active and banned.
func (s *SQLiteStore) SetUserStatus(ctx context.Context, id int64, status store.UserStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// TouchLastLogin records a successful login.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CountAdmins returns the number of admin accounts.
func (s *SQLiteStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// ==== MuteStore implementation ====

// MuteUser creates a mute record expiring d from now.
func (s *SQLiteStore) MuteUser(ctx context.Context, userID, adminID int64, d time.Duration, reason string) (*store.Mute, error) {
	now := s.now()
	mute := &store.Mute{
		UserID:     userID,
		MutedBy:    adminID,
		MutedUntil: now.Add(d),
		Reason:     reason,
		CreatedAt:  now,
	}

	var reasonArg sql.NullString
	if reason != "" {
		reasonArg = sql.NullString{String: reason, Valid: true}
	}

	query := `
		INSERT INTO mutes (user_id, muted_by, muted_until, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, adminID, mute.MutedUntil.UnixMilli(), reasonArg, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert mute: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	mute.ID = id
	return mute, nil
}

// UnmuteUser expires every active mute of the user by pulling muted_until back to now.
func (s *SQLiteStore) UnmuteUser(ctx context.Context, userID int64) error {
	now := s.now().UnixMilli()
	query := `UPDATE mutes SET muted_until = ? WHERE user_id = ? AND muted_until > ?`
	if _, err := s.db.ExecContext(ctx, query, now, userID, now); err != nil {
		return fmt.Errorf("expire mutes: %w", err)
	}
	return nil
}

// IsMuted reports whether any mute of the user is still in the future.
func (s *SQLiteStore) IsMuted(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM mutes WHERE user_id = ? AND muted_until > ?)`
	var muted bool
	if err := s.db.QueryRowContext(ctx, query, userID, s.now().UnixMilli()).Scan(&muted); err != nil {
		return false, fmt.Errorf("query mute state: %w", err)
	}
	return muted, nil
}

// ActiveMute returns the most recent unexpired mute, or nil when there is none.
func (s *SQLiteStore) ActiveMute(ctx context.Context, userID int64) (*store.Mute, error) {
	query := `
		SELECT id, user_id, muted_by, muted_until, reason, created_at
		FROM mutes
		WHERE user_id = ? AND muted_until > ?
		ORDER BY id DESC
		LIMIT 1
	`
	var (
		mute      store.Mute
		untilMS   int64
		createdMS int64
		reason    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, userID, s.now().UnixMilli()).Scan(
		&mute.ID,
		&mute.UserID,
		&mute.MutedBy,
		&untilMS,
		&reason,
		&createdMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active mute: %w", err)
	}

	mute.MutedUntil = time.UnixMilli(untilMS).UTC()
	mute.CreatedAt = time.UnixMilli(createdMS).UTC()
	mute.Reason = reason.String
	return &mute, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	query := `
		INSERT INTO messages (user_id, username, text, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.UserID, msg.Username, msg.Text, msg.IsAdmin, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// RecentMessages returns up to limit latest messages, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}

	query := `
		SELECT id, user_id, username, text, is_admin, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Username, &msg.Text, &msg.IsAdmin, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// ==== FileStore implementation ====

// SaveFile persists an upload record and fills in its ID.
func (s *SQLiteStore) SaveFile(ctx context.Context, f *store.FileRecord) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	query := `
		INSERT INTO files (user_id, filename, storage_filename, filetype, filesize, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, f.UserID, f.Filename, f.StorageFilename, f.FileType, f.FileSize, f.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert file %q: %w", f.StorageFilename, store.ErrConflict)
		}
		return fmt.Errorf("insert file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	f.ID = id
	return nil
}
