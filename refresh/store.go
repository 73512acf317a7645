package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of a newly created refresh token.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidRefreshToken is returned by Rotate for unknown, already
	// rotated or expired values.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrNotFound is the repository-level miss. Store never returns it.
	ErrNotFound = errors.New("refresh token not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("refresh token store unavailable")
	// ErrMissingUser is returned by Create for an empty user id.
	ErrMissingUser = errors.New("refresh token requires a user id")
)

// Token is a refresh token as handed to callers. Value is the opaque
// credential; it is only known to the store at creation and lookup time.
type Token struct {
	ID        string
	Value     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Record is the persisted form of a Token. Hash is the hex SHA-256 of the
// value; the value itself is never stored.
type Record struct {
	ID        string
	UserID    string
	Hash      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repository persists refresh token records.
//
// TakeByHash must find and delete a record in one atomic step so that two
// concurrent callers can never both receive the same record.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	FindByHash(ctx context.Context, hash string) (Record, error)
	TakeByHash(ctx context.Context, hash string) (Record, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Config controls token lifetime.
type Config struct {
	TTL time.Duration
	Now func() time.Time
}

// Store issues, looks up, invalidates and rotates single-use refresh tokens.
type Store struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewStore wraps repo. Zero config values fall back to defaults.
func NewStore(repo Repository, cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, ttl: ttl, now: now}
}

// HashValue returns the lookup key persisted for a refresh token value.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Create issues a new refresh token for userID.
func (s *Store) Create(ctx context.Context, userID string) (Token, error) {
	if userID == "" {
		return Token{}, ErrMissingUser
	}

	now := s.now().UTC()
	value := uuid.NewString()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Hash:      HashValue(value),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return Token{}, err
	}

	return tokenFromRecord(rec, value), nil
}

// FindByValue looks up value. A missing or expired token yields false with
// a nil error.
func (s *Store) FindByValue(ctx context.Context, value string) (Token, bool, error) {
	if value == "" {
		return Token{}, false, nil
	}

	rec, err := s.repo.FindByHash(ctx, HashValue(value))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, false, nil
		}
		return Token{}, false, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return Token{}, false, nil
	}

	return tokenFromRecord(rec, value), true, nil
}

// Invalidate deletes the token with the given id. Unknown ids are ignored.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.DeleteByID(ctx, id)
}

// Rotate consumes oldValue and issues its replacement for the same user.
//
// The old record is removed before the new one is created; if creation
// fails the caller holds no valid refresh token and must log in again.
func (s *Store) Rotate(ctx context.Context, oldValue string) (Token, error) {
	if oldValue == "" {
		return Token{}, ErrInvalidRefreshToken
	}

	rec, err := s.repo.TakeByHash(ctx, HashValue(oldValue))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrInvalidRefreshToken
		}
		return Token{}, err
	}
	if !rec.ExpiresAt.After(s.now()) {
		return Token{}, fmt.Errorf("%w: expired", ErrInvalidRefreshToken)
	}

	return s.Create(ctx, rec.UserID)
}

// InvalidateUser deletes every refresh token owned by userID.
func (s *Store) InvalidateUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}
	return s.repo.DeleteByUser(ctx, userID)
}

// Purge deletes expired records and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

func tokenFromRecord(rec Record, value string) Token {
	return Token{
		ID:        rec.ID,
		Value:     value,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
}
