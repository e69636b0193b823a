package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned (wrapped) when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned (wrapped) when a unique column already holds the value.
	ErrConflict = errors.New("already exists")
)

// UserStatus is the account-level moderation state of a user.
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	IsAdmin      bool
	Status       UserStatus
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Banned reports whether the account is blocked.
func (u *User) Banned() bool {
	return u.Status == UserStatusBanned
}

// Mute is a time-bounded suppression record. Several may exist per user.
type Mute struct {
	ID         int64
	UserID     int64
	MutedBy    int64
	MutedUntil time.Time
	Reason     string
	CreatedAt  time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	UserID    int64
	Username  string
	Text      string
	IsAdmin   bool
	CreatedAt time.Time
}

// FileRecord is the metadata of an uploaded attachment.
type FileRecord struct {
	ID              int64
	UserID          int64
	Filename        string
	StorageFilename string
	FileType        string
	FileSize        int64
	CreatedAt       time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a new account with an already hashed password.
	CreateUser(ctx context.Context, username, passwordHash string, email *string, isAdmin bool) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserStatus switches a user between active and banned.
	SetUserStatus(ctx context.Context, id int64, status UserStatus) error

	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error

	// CountAdmins returns the number of admin accounts.
	CountAdmins(ctx context.Context) (int, error)
}

// MuteStore handles mute records.
type MuteStore interface {
	// MuteUser creates a mute record expiring d from now.
	MuteUser(ctx context.Context, userID, adminID int64, d time.Duration, reason string) (*Mute, error)

	// UnmuteUser expires every active mute of the user. Succeeds when none is active.
	UnmuteUser(ctx context.Context, userID int64) error

	// IsMuted reports whether any mute of the user is still in the future.
	IsMuted(ctx context.Context, userID int64) (bool, error)

	// ActiveMute returns the most recent unexpired mute, or nil when there is none.
	ActiveMute(ctx context.Context, userID int64) (*Mute, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// RecentMessages returns up to limit latest messages, oldest first.
	RecentMessages(ctx context.Context, limit int) ([]*Message, error)
}

// FileStore handles attachment metadata.
type FileStore interface {
	// SaveFile persists an upload record and fills in its ID.
	SaveFile(ctx context.Context, f *FileRecord) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MuteStore
	MessageStore
	FileStore

	// Close closes the underlying database connection.
	Close() error
}
